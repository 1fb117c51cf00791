// Package mobilenet loads pretrained MobileNet classifiers exported to ONNX and
// reads activations of their intermediate layers.
package mobilenet

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// InputSize is the square input resolution every recognized variant expects.
const InputSize = 224

// Layers that can be requested from a model. ConvPreds is the layer right
// before the final classification and is the embedding layer by default.
const (
	LayerConvPreds  = "conv_preds"
	LayerGlobalPool = "global_pool"
	LayerLogits     = "logits"
)

var (
	ErrUnknownVariant = errors.New("unrecognized mobilenet variant")
	ErrUnknownLayer   = errors.New("unrecognized mobilenet layer")
)

var layers = []string{LayerConvPreds, LayerGlobalPool, LayerLogits}

var alphas = map[int][]float64{
	1: {0.25, 0.50, 0.75, 1.0},
	2: {0.50, 0.75, 1.0},
}

// Variant selects an architecture version and width multiplier (alpha).
// Embeddings are only comparable when produced by the same variant and layer.
type Variant struct {
	Version int
	Alpha   float64
}

var DefaultVariant = Variant{Version: 2, Alpha: 1.0}

func (v Variant) Validate() error {
	for _, a := range alphas[v.Version] {
		if math.Abs(a-v.Alpha) < 1e-9 {
			return nil
		}
	}
	return fmt.Errorf("%w: version %d alpha %v", ErrUnknownVariant, v.Version, v.Alpha)
}

func (v Variant) String() string {
	alpha := strconv.FormatFloat(v.Alpha, 'f', -1, 64)
	if !strings.Contains(alpha, ".") {
		alpha += ".0"
	}
	return fmt.Sprintf("mobilenet_v%d_%s", v.Version, alpha)
}

// FileName is the default weights file name, e.g. mobilenet_v2_1.0_224.onnx.
func (v Variant) FileName() string {
	return fmt.Sprintf("%s_%d.onnx", v, InputSize)
}

func ValidateLayer(name string) error {
	if slices.Contains(layers, name) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownLayer, name)
}

// Variants lists every recognized variant, ordered by version then alpha.
func Variants() []Variant {
	var out []Variant
	for _, version := range []int{1, 2} {
		for _, a := range alphas[version] {
			out = append(out, Variant{Version: version, Alpha: a})
		}
	}
	return out
}
