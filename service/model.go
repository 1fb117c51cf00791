package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Embedder turns images into embedding vectors with a lazily loaded model.
type Embedder struct {
	load   Loader
	width  int
	height int
	layer  string

	mu    sync.RWMutex
	model Model
	group singleflight.Group
}

func New(load Loader, opts ...Option) *Embedder {
	e := &Embedder{
		load:   load,
		width:  defaultSize,
		height: defaultSize,
		layer:  defaultLayer,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Embedder) loaded() Model {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

// EnsureModel returns the cached model, loading it on first use. Concurrent
// callers during the first load wait for that single load and share its result.
// A failed load is not cached, so a later call tries again.
func (e *Embedder) EnsureModel(ctx context.Context) (Model, error) {
	if m := e.loaded(); m != nil {
		return m, nil
	}

	v, err, _ := e.group.Do("model", func() (any, error) {
		if m := e.loaded(); m != nil {
			return m, nil
		}
		m, err := e.load(ctx)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.model = m
		e.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	return v.(Model), nil
}

// Dimensions reports the embedding length when the loaded model knows it
// ahead of inference, and 0 otherwise.
func (e *Embedder) Dimensions() int {
	if d, ok := e.loaded().(interface{ Dimensions() int }); ok {
		return d.Dimensions()
	}
	return 0
}

// Close releases the loaded model, if any. A later call loads it again.
func (e *Embedder) Close() error {
	e.mu.Lock()
	m := e.model
	e.model = nil
	e.mu.Unlock()
	if c, ok := m.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
