package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sandwichproject/coordinator/internal/projects"
)

type claimPayload struct {
	AssigneeName string `json:"assigneeName"`
}

func (h *httpHandler) handleListProjects(c *gin.Context) {
	listEntities(h, c, "failed_to_fetch_projects", h.repository.GetAllProjects)
}

func (h *httpHandler) handleGetProject(c *gin.Context) {
	getEntity(h, c, "failed_to_fetch_project", h.repository.GetProject)
}

func (h *httpHandler) handleCreateProject(c *gin.Context) {
	createEntity[projects.Project, projects.ProjectInput](h, c, "failed_to_create_project", h.repository.CreateProject)
}

func (h *httpHandler) handleUpdateProject(c *gin.Context) {
	updateEntity(h, c, "failed_to_update_project", h.repository.UpdateProject)
}

func (h *httpHandler) handleDeleteProject(c *gin.Context) {
	deleteEntity(h, c, "failed_to_delete_project", h.repository.DeleteProject)
}

// handleClaimProject assigns the project to the named assignee, or to the
// caller when the body names nobody.
func (h *httpHandler) handleClaimProject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var payload claimPayload
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		respondInvalid(c, err)
		return
	}
	assignee := payload.AssigneeName
	if assignee == "" {
		if user, found := currentUser(c); found {
			assignee = user.Name()
		}
	}
	claimed, err := h.repository.UpdateProject(c.Request.Context(), id, projects.Claim(assignee))
	if err != nil {
		h.respondStoreError(c, "failed_to_claim_project", err)
		return
	}
	if claimed == nil {
		respondNotFound(c)
		return
	}
	c.JSON(http.StatusOK, claimed)
}
