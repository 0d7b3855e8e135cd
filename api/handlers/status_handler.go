package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/vidrelay/internal/app"
)

// StatusHandler serves health and session stats endpoints
type StatusHandler struct {
	sessions *app.SessionStore
	version  string
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(sessions *app.SessionStore, version string) *StatusHandler {
	return &StatusHandler{
		sessions: sessions,
		version:  version,
	}
}

// Health handles GET /health
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready handles GET /ready
func (h *StatusHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Stats handles GET /api/v1/stats
func (h *StatusHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.Stats())
}
