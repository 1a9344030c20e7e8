package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sandwichproject/coordinator/internal/users"
)

type roleUpdatePayload struct {
	Role string `json:"role"`
}

type activeUpdatePayload struct {
	IsActive *bool `json:"isActive"`
}

func (h *httpHandler) handleCurrentUser(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *httpHandler) handleListUsers(c *gin.Context) {
	all, err := h.users.List(c.Request.Context())
	if err != nil {
		h.respondStoreError(c, "failed_to_fetch_users", err)
		return
	}
	c.JSON(http.StatusOK, all)
}

func (h *httpHandler) handleUpdateUserRole(c *gin.Context) {
	var payload roleUpdatePayload
	if err := c.ShouldBindJSON(&payload); err != nil || strings.TrimSpace(payload.Role) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	updated, err := h.users.UpdateRole(c.Request.Context(), c.Param("id"), payload.Role)
	if err != nil {
		h.respondUserError(c, "failed_to_update_user", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleSetUserActive(c *gin.Context) {
	var payload activeUpdatePayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.IsActive == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	updated, err := h.users.SetActive(c.Request.Context(), c.Param("id"), *payload.IsActive)
	if err != nil {
		h.respondUserError(c, "failed_to_update_user", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) respondUserError(c *gin.Context, code string, err error) {
	switch {
	case errors.Is(err, users.ErrUnknownRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_role"})
	case errors.Is(err, users.ErrUserNotFound):
		respondNotFound(c)
	default:
		h.respondStoreError(c, code, err)
	}
}
