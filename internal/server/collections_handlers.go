package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sandwichproject/coordinator/internal/analytics"
	"github.com/sandwichproject/coordinator/internal/collections"
	"go.uber.org/zap"
)

type batchEditPayload struct {
	IDs     []int64                      `json:"ids"`
	Updates collections.CollectionUpdate `json:"updates"`
}

type batchDeletePayload struct {
	IDs []int64 `json:"ids"`
}

func (h *httpHandler) handleListCollections(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	result, err := h.repository.ListSandwichCollections(c.Request.Context(), page, limit)
	if err != nil {
		h.respondStoreError(c, "failed_to_fetch_collections", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleCollectionStats(c *gin.Context) {
	stats, err := h.repository.GetCollectionStats(c.Request.Context())
	if err != nil {
		h.respondStoreError(c, "failed_to_fetch_stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *httpHandler) handleCollectionAnalytics(c *gin.Context) {
	filter, ok := parseAnalyticsFilter(c)
	if !ok {
		return
	}
	records, err := h.repository.GetAllSandwichCollections(c.Request.Context())
	if err != nil {
		h.respondStoreError(c, "failed_to_fetch_collections", err)
		return
	}
	c.JSON(http.StatusOK, analytics.Compute(records, filter))
}

func parseAnalyticsFilter(c *gin.Context) (analytics.Filter, bool) {
	category, ok := analytics.ParseCategory(c.Query("category"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_query", "parameter": "category"})
		return analytics.Filter{}, false
	}
	filter := analytics.Filter{
		DateStart:     c.Query("dateStart"),
		DateEnd:       c.Query("dateEnd"),
		HostSubstring: c.Query("host"),
		Category:      category,
	}
	for _, bound := range []struct {
		name   string
		target **int
	}{
		{name: "min", target: &filter.MinTotal},
		{name: "max", target: &filter.MaxTotal},
	} {
		if c.Query(bound.name) == "" {
			continue
		}
		value, ok := queryInt(c, bound.name, 0)
		if !ok {
			return analytics.Filter{}, false
		}
		*bound.target = &value
	}
	return filter, true
}

func (h *httpHandler) handleCreateCollection(c *gin.Context) {
	var input collections.CollectionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondInvalid(c, err)
		return
	}
	if err := collections.ValidateInput(input); err != nil {
		respondInvalid(c, err)
		return
	}
	created, err := h.repository.CreateSandwichCollection(c.Request.Context(), input.Record())
	if err != nil {
		h.respondStoreError(c, "failed_to_create_collection", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleUpdateCollection(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var update collections.CollectionUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondInvalid(c, err)
		return
	}
	if err := collections.ValidateUpdate(update); err != nil {
		respondInvalid(c, err)
		return
	}
	updated, err := h.repository.UpdateSandwichCollection(c.Request.Context(), id, update)
	if err != nil {
		h.respondStoreError(c, "failed_to_update_collection", err)
		return
	}
	if updated == nil {
		respondNotFound(c)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleBatchEditCollections(c *gin.Context) {
	var payload batchEditPayload
	if err := c.ShouldBindJSON(&payload); err != nil || len(payload.IDs) == 0 || payload.Updates.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := collections.ValidateUpdate(payload.Updates); err != nil {
		respondInvalid(c, err)
		return
	}
	ctx := c.Request.Context()
	updated := make([]collections.Collection, 0, len(payload.IDs))
	for _, id := range payload.IDs {
		record, err := h.repository.UpdateSandwichCollection(ctx, id, payload.Updates)
		if err != nil {
			h.respondStoreError(c, "failed_to_update_collection", err)
			return
		}
		if record == nil {
			h.logger.Info("batch edit skipped missing collection", zap.Int64("collection_id", id))
			continue
		}
		updated = append(updated, *record)
	}
	c.JSON(http.StatusOK, gin.H{"updatedCount": len(updated), "collections": updated})
}

func (h *httpHandler) handleDeleteCollection(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	deleted, err := h.repository.DeleteSandwichCollection(c.Request.Context(), id)
	if err != nil {
		h.respondStoreError(c, "failed_to_delete_collection", err)
		return
	}
	if !deleted {
		respondNotFound(c)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleBatchDeleteCollections(c *gin.Context) {
	var payload batchDeletePayload
	if err := c.ShouldBindJSON(&payload); err != nil || len(payload.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	ctx := c.Request.Context()
	deletedCount := 0
	for _, id := range payload.IDs {
		deleted, err := h.repository.DeleteSandwichCollection(ctx, id)
		if err != nil {
			h.respondStoreError(c, "failed_to_delete_collection", err)
			return
		}
		if deleted {
			deletedCount++
		}
	}
	c.JSON(http.StatusOK, gin.H{"deletedCount": deletedCount})
}
