package service

import (
	"context"
	"fmt"
	"image"

	"github.com/krau/konaembed/pixel"
)

// EmbedImageFile decodes the image at path and returns its embedding.
func (e *Embedder) EmbedImageFile(ctx context.Context, path string) ([]float32, error) {
	m, err := e.EnsureModel(ctx)
	if err != nil {
		return nil, err
	}
	pix, err := pixel.Load(path, e.width, e.height)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return e.infer(ctx, m, pix)
}

// EmbedImage is EmbedImageFile for an image that is already decoded.
func (e *Embedder) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	m, err := e.EnsureModel(ctx)
	if err != nil {
		return nil, err
	}
	pix, err := pixel.FromImage(img, e.width, e.height)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return e.infer(ctx, m, pix)
}

func (e *Embedder) infer(ctx context.Context, m Model, pix *pixel.Buffer) ([]float32, error) {
	vec, err := m.Infer(ctx, pix, e.layer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: layer %s produced no values", ErrInference, e.layer)
	}
	return vec, nil
}
