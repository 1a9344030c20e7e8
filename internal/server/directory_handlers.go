package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sandwichproject/coordinator/internal/collections"
	"github.com/sandwichproject/coordinator/internal/directory"
	"go.uber.org/zap"
)

type recordInput[T any] interface {
	Record() T
}

func listEntities[T any](h *httpHandler, c *gin.Context, code string, list func(context.Context) ([]T, error)) {
	entries, err := list(c.Request.Context())
	if err != nil {
		h.respondStoreError(c, code, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func getEntity[T any](h *httpHandler, c *gin.Context, code string, get func(context.Context, int64) (*T, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entry, err := get(c.Request.Context(), id)
	if err != nil {
		h.respondStoreError(c, code, err)
		return
	}
	if entry == nil {
		respondNotFound(c)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func createEntity[T any, In recordInput[T]](h *httpHandler, c *gin.Context, code string, create func(context.Context, T) (T, error)) {
	var input In
	if err := c.ShouldBindJSON(&input); err != nil {
		respondInvalid(c, err)
		return
	}
	if err := collections.Validate(input); err != nil {
		respondInvalid(c, err)
		return
	}
	created, err := create(c.Request.Context(), input.Record())
	if err != nil {
		h.respondStoreError(c, code, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func updateEntity[T any, U any](h *httpHandler, c *gin.Context, code string, update func(context.Context, int64, U) (*T, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var changes U
	if err := c.ShouldBindJSON(&changes); err != nil {
		respondInvalid(c, err)
		return
	}
	if err := collections.Validate(changes); err != nil {
		respondInvalid(c, err)
		return
	}
	updated, err := update(c.Request.Context(), id, changes)
	if err != nil {
		h.respondStoreError(c, code, err)
		return
	}
	if updated == nil {
		respondNotFound(c)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func deleteEntity(h *httpHandler, c *gin.Context, code string, remove func(context.Context, int64) (bool, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	deleted, err := remove(c.Request.Context(), id)
	if err != nil {
		h.respondStoreError(c, code, err)
		return
	}
	if !deleted {
		respondNotFound(c)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListHosts(c *gin.Context) {
	listEntities(h, c, "failed_to_fetch_hosts", h.repository.GetAllHosts)
}

func (h *httpHandler) handleGetHost(c *gin.Context) {
	getEntity(h, c, "failed_to_fetch_host", h.repository.GetHost)
}

func (h *httpHandler) handleCreateHost(c *gin.Context) {
	createEntity[directory.Host, directory.HostInput](h, c, "failed_to_create_host", h.repository.CreateHost)
}

// handleUpdateHost renames the host's collections along with the host so the
// collection log keeps pointing at it.
func (h *httpHandler) handleUpdateHost(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var update directory.HostUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondInvalid(c, err)
		return
	}
	if err := collections.Validate(update); err != nil {
		respondInvalid(c, err)
		return
	}
	ctx := c.Request.Context()

	previousName := ""
	if update.Name != nil {
		existing, err := h.repository.GetHost(ctx, id)
		if err != nil {
			h.respondStoreError(c, "failed_to_fetch_host", err)
			return
		}
		if existing == nil {
			respondNotFound(c)
			return
		}
		previousName = existing.Name
	}

	updated, err := h.repository.UpdateHost(ctx, id, update)
	if err != nil {
		h.respondStoreError(c, "failed_to_update_host", err)
		return
	}
	if updated == nil {
		respondNotFound(c)
		return
	}

	var renamed int64
	if previousName != "" && previousName != updated.Name {
		renamed, err = h.repository.UpdateCollectionHostNames(ctx, previousName, updated.Name)
		if err != nil {
			h.respondStoreError(c, "failed_to_rename_collections", err)
			return
		}
		h.logger.Info("host renamed",
			zap.Int64("host_id", id),
			zap.String("previous_name", previousName),
			zap.String("name", updated.Name),
			zap.Int64("collections_updated", renamed),
		)
	}
	c.JSON(http.StatusOK, gin.H{"host": updated, "collectionsUpdated": renamed})
}

func (h *httpHandler) handleDeleteHost(c *gin.Context) {
	deleteEntity(h, c, "failed_to_delete_host", h.repository.DeleteHost)
}

func (h *httpHandler) handleListRecipients(c *gin.Context) {
	listEntities(h, c, "failed_to_fetch_recipients", h.repository.GetAllRecipients)
}

func (h *httpHandler) handleGetRecipient(c *gin.Context) {
	getEntity(h, c, "failed_to_fetch_recipient", h.repository.GetRecipient)
}

func (h *httpHandler) handleCreateRecipient(c *gin.Context) {
	createEntity[directory.Recipient, directory.RecipientInput](h, c, "failed_to_create_recipient", h.repository.CreateRecipient)
}

func (h *httpHandler) handleUpdateRecipient(c *gin.Context) {
	updateEntity(h, c, "failed_to_update_recipient", h.repository.UpdateRecipient)
}

func (h *httpHandler) handleDeleteRecipient(c *gin.Context) {
	deleteEntity(h, c, "failed_to_delete_recipient", h.repository.DeleteRecipient)
}

func (h *httpHandler) handleListDrivers(c *gin.Context) {
	listEntities(h, c, "failed_to_fetch_drivers", h.repository.GetAllDrivers)
}

func (h *httpHandler) handleGetDriver(c *gin.Context) {
	getEntity(h, c, "failed_to_fetch_driver", h.repository.GetDriver)
}

func (h *httpHandler) handleCreateDriver(c *gin.Context) {
	createEntity[directory.Driver, directory.DriverInput](h, c, "failed_to_create_driver", h.repository.CreateDriver)
}

func (h *httpHandler) handleUpdateDriver(c *gin.Context) {
	updateEntity(h, c, "failed_to_update_driver", h.repository.UpdateDriver)
}

func (h *httpHandler) handleDeleteDriver(c *gin.Context) {
	deleteEntity(h, c, "failed_to_delete_driver", h.repository.DeleteDriver)
}
