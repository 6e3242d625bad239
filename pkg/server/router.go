package server

import (
	"context"

	"github.com/gin-gonic/gin"

	"screenshot-lambda/internal/handlers"
)

// NewRouter builds the development HTTP surface on the manager's container.
// /health follows the manager, so it turns unavailable once Cleanup runs.
func (m *Manager) NewRouter(ctx context.Context) (*gin.Engine, *Container, error) {
	container, err := m.GetContainer(ctx)
	if err != nil {
		return nil, nil, err
	}
	cfg := container.Config

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	handlers.SetupRoutes(router, &handlers.RouterConfig{
		Handler:            handlers.NewScreenshotHandler(container.Orchestrator, container.Logger).WithReadiness(m.IsHealthy),
		Limits:             cfg.Server,
		SharedArtifactPath: !cfg.Render.UniqueArtifactPath,
		Logger:             container.Logger,
	})
	return router, container, nil
}
