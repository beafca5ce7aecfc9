package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(cfg.Logger))
	router.Use(gin.Recovery())

	var engine EngineStatus
	if status, ok := cfg.Favorites.(EngineStatus); ok {
		engine = status
	}
	health := NewHealthController(cfg.Database, engine, cfg.Version)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Favorites endpoints
	if cfg.Favorites != nil {
		favoritesController := NewFavoritesController(cfg.Favorites, cfg.SyncProgress, cfg.Schedule)
		router.GET("/api/favorites", favoritesController.ListFavorites)
		router.GET("/api/favorites/ids", favoritesController.ListFavoriteIDs)
		router.GET("/api/favorites/sync", favoritesController.GetSyncStatus)
		router.GET("/api/favorites/:id", favoritesController.GetFavorite)
		router.POST("/api/favorites", favoritesController.AddFavorite)
		router.POST("/api/favorites/toggle", favoritesController.ToggleFavorite)
		router.POST("/api/favorites/refresh", favoritesController.RefreshFavorites)
		router.DELETE("/api/favorites/:id", favoritesController.RemoveFavorite)
	}

	// Session endpoints
	if cfg.Session != nil {
		sessionController := NewSessionController(cfg.Session)
		router.GET("/api/session", sessionController.GetSession)
		router.PUT("/api/session", sessionController.Login)
		router.DELETE("/api/session", sessionController.Logout)
	}

	// Outbox endpoints
	if cfg.TaskStatus != nil {
		outboxController := NewOutboxController(cfg.TaskStatus)
		router.GET("/api/outbox/tasks/:id", outboxController.GetTaskStatus)
	}

	return router
}
