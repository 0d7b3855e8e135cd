package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/vidrelay/api/handlers"
	"github.com/yourusername/vidrelay/api/middleware"
	"github.com/yourusername/vidrelay/internal/app"
)

// SetupRouter sets up the operational HTTP surface: health checks plus a
// read-only view of the session counters
func SetupRouter(sessions *app.SessionStore, version string, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	statusHandler := handlers.NewStatusHandler(sessions, version)
	router.GET("/health", statusHandler.Health)
	router.GET("/ready", statusHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/stats", statusHandler.Stats)
	}

	return router
}
