package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/krau/konaembed/config"
	"github.com/krau/konaembed/service"
)

// Init loads the process-wide model so the first request does not pay for it.
func Init(ctx context.Context) error {
	if _, err := service.EnsureModel(ctx); err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	slog.Info("Model ready", slog.Int("dimensions", service.Default().Dimensions()))
	return nil
}

func NewRouter(embedder *service.Embedder, cfg config.Config) *gin.Engine {
	h := &Handler{
		embedder:  embedder,
		token:     cfg.Token,
		maxUpload: cfg.MaxUploadMB << 20,
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.GET("/health", HealthHandler)

	api := r.Group("/", h.authenticate)
	api.POST("/embed", h.EmbedHandler)
	api.POST("/compare", h.CompareHandler)
	api.POST("/similarity", h.SimilarityHandler)
	return r
}
