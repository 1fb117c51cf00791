package service

import (
	"context"
	"image"
	"sync"

	"github.com/krau/konaembed/config"
	"github.com/krau/konaembed/mobilenet"
)

var (
	defaultOnce     sync.Once
	defaultEmbedder *Embedder
)

// Default returns the process-wide embedder configured from config.C().
func Default() *Embedder {
	defaultOnce.Do(func() {
		defaultEmbedder = FromConfig(config.C())
	})
	return defaultEmbedder
}

func FromConfig(c config.Config) *Embedder {
	opts := mobilenet.Options{
		Dir:            c.ModelDir,
		FileName:       c.ModelFileName,
		Variant:        mobilenet.Variant{Version: c.ModelVersion, Alpha: c.ModelAlpha},
		Layer:          c.ModelLayer,
		IntraOpThreads: c.IntraOpThreads,
	}
	load := func(ctx context.Context) (Model, error) {
		m, err := mobilenet.Load(ctx, opts)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	var embOpts []Option
	if c.ModelLayer != "" {
		embOpts = append(embOpts, WithLayer(c.ModelLayer))
	}
	return New(load, embOpts...)
}

func EnsureModel(ctx context.Context) (Model, error) {
	return Default().EnsureModel(ctx)
}

func EmbedImageFile(ctx context.Context, path string) ([]float32, error) {
	return Default().EmbedImageFile(ctx, path)
}

func EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	return Default().EmbedImage(ctx, img)
}
