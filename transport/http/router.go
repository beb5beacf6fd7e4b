package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/proofwatch/proofwatch/service"
)

// SetupRouter sets up the Gin router for the relay.
func SetupRouter(mintService *service.MintService) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	handlers := NewRelayHandlers(mintService)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	mintLimiter := NewRateLimiter(30, time.Minute)

	api := router.Group("/api")
	{
		api.POST("/mint", RateLimitMiddleware(mintLimiter), handlers.Mint)
		api.GET("/deploy/:hash", handlers.DeployStatus)
	}

	hub := NewHub()
	router.GET("/ws", hub.Serve)

	return router
}
