package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"screenshot-lambda/internal/config"
	"screenshot-lambda/internal/middleware"
)

// RouterConfig holds configuration for setting up routes
type RouterConfig struct {
	Handler *ScreenshotHandler
	Limits  config.ServerConfig
	// QueueWait is how long a request may wait for a render slot
	QueueWait time.Duration
	// SharedArtifactPath is set when every render writes the same file.
	// Renders are then serialised whatever the configured limit.
	SharedArtifactPath bool
	Logger             *logrus.Logger
}

// SetupRoutes configures all routes
func SetupRoutes(router *gin.Engine, cfg *RouterConfig) {
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger(cfg.Logger))

	router.GET("/health", cfg.Handler.Health)

	wait := cfg.QueueWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	limit := cfg.Limits.MaxConcurrentRenders
	if cfg.SharedArtifactPath && limit > 1 {
		if cfg.Logger != nil {
			cfg.Logger.WithField("configured", limit).Warn("Artifact path is shared, rendering one screenshot at a time")
		}
		limit = 1
	}
	router.GET("/screenshot",
		middleware.RateLimiter(cfg.Limits.RateLimitRPS, cfg.Limits.RateLimitBurst, cfg.Logger),
		middleware.ConcurrencyLimiter(limit, wait, cfg.Logger),
		cfg.Handler.Screenshot,
	)
}
