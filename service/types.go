package service

import (
	"context"
	"errors"

	"github.com/krau/konaembed/mobilenet"
	"github.com/krau/konaembed/pixel"
)

var (
	ErrInitialization = errors.New("model initialization failed")
	ErrDecode         = errors.New("image decode failed")
	ErrInference      = errors.New("inference failed")
)

// Model is a loaded network able to return the activation of a named layer
// for a single image.
type Model interface {
	Infer(ctx context.Context, pix *pixel.Buffer, layer string) ([]float32, error)
}

// Loader creates the model. It is called at most once per successful
// initialization of an Embedder.
type Loader func(ctx context.Context) (Model, error)

type Option func(*Embedder)

// WithInputSize overrides the decoded image size (default 224x224).
func WithInputSize(width, height int) Option {
	return func(e *Embedder) {
		e.width, e.height = width, height
	}
}

// WithLayer selects the layer read as the embedding (default conv_preds).
func WithLayer(layer string) Option {
	return func(e *Embedder) {
		e.layer = layer
	}
}

const (
	defaultSize  = mobilenet.InputSize
	defaultLayer = mobilenet.LayerConvPreds
)
