package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/glaciersoft/snowgate/internal/db"
)

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	store   *db.DB
	version string
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(store *db.DB, version string) *HealthHandler {
	return &HealthHandler{store: store, version: version}
}

// Health handles GET /healthz. 503 when the database is unreachable.
func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"version": h.version,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"version":  h.version,
		"database": h.store.Health(),
	})
}
