package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/ledgerlink/presenter"
)

// SetupRouter sets up the Gin router. metrics may be nil.
func SetupRouter(sessions presenter.Sessions, registry *presenter.Registry, metrics http.Handler) *gin.Engine {
	router := gin.Default()

	// Create handlers
	handlers := NewHandlers(sessions, registry)
	authenticated := AuthMiddleware(sessions)

	// Session routes
	auth := router.Group("/auth")
	{
		auth.POST("/login", handlers.Login)
		auth.POST("/logout", authenticated, handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(authenticated)
	{
		api.GET("/me", handlers.Me)
		api.GET("/state", handlers.State)
		api.POST("/deposit", handlers.Deposit)
		api.POST("/activate", handlers.Activate)
		api.GET("/info", handlers.Info)
		api.POST("/send", handlers.Send)
		api.POST("/operations/:id/retry", handlers.Retry)
	}

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	return router
}
