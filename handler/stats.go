package handler

import (
	"net/http"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/service"
	"github.com/gin-gonic/gin"
)

type StatsHandler struct {
	store service.DocumentStore
	queue service.JobQueue
}

func NewStatsHandler(store service.DocumentStore, queue service.JobQueue) *StatsHandler {
	return &StatsHandler{store: store, queue: queue}
}

// Stats aggregates the indexed corpus for the dashboard
func (h *StatsHandler) Stats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Status reports queue depth and per-status document counts
func (h *StatsHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	depth, err := h.queue.Depth(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	counts, err := h.store.CountByStatus(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"queue_depth": depth,
		"documents":   counts,
	})
}
