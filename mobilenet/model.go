package mobilenet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/krau/konaembed/onnx"
	"github.com/krau/konaembed/pixel"
	ort "github.com/yalue/onnxruntime_go"
)

var ErrUnsupportedInput = errors.New("unsupported model input")

type Options struct {
	Dir            string
	FileName       string // defaults to Variant.FileName()
	Variant        Variant
	Layer          string // defaults to LayerConvPreds
	IntraOpThreads int
}

type Model struct {
	session   *onnx.Session
	layer     string
	inputType ort.TensorElementDataType
	dims      map[string]int
}

// Load opens the weights for opts.Variant on the CPU backend. The backend is
// initialized first if needed.
func Load(ctx context.Context, opts Options) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := opts.Variant.Validate(); err != nil {
		return nil, err
	}
	if opts.Layer == "" {
		opts.Layer = LayerConvPreds
	}
	if err := ValidateLayer(opts.Layer); err != nil {
		return nil, err
	}
	if opts.FileName == "" {
		opts.FileName = opts.Variant.FileName()
	}

	path := filepath.Join(opts.Dir, opts.FileName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to find model weights: %w", err)
	}

	if err := onnx.Init(); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 input, got %d", ErrUnsupportedInput, len(inputs))
	}
	if err := checkInput(inputs[0]); err != nil {
		return nil, err
	}

	var names []string
	dims := make(map[string]int)
	for _, out := range outputs {
		if ValidateLayer(out.Name) != nil {
			continue
		}
		names = append(names, out.Name)
		dims[out.Name] = flattenedSize(out.Dimensions)
	}
	if !slices.Contains(names, opts.Layer) {
		return nil, fmt.Errorf("model %s has no output %q", path, opts.Layer)
	}

	session, err := onnx.OpenSession(path, inputs[0].Name, names, opts.IntraOpThreads)
	if err != nil {
		return nil, err
	}

	slog.Info("Loaded model",
		slog.String("variant", opts.Variant.String()),
		slog.String("path", path),
		slog.String("layer", opts.Layer),
		slog.Int("dimensions", dims[opts.Layer]),
	)
	return &Model{
		session:   session,
		layer:     opts.Layer,
		inputType: inputs[0].DataType,
		dims:      dims,
	}, nil
}

func checkInput(info ort.InputOutputInfo) error {
	if !supportedInputType(info.DataType) {
		return fmt.Errorf("%w: element type %v", ErrUnsupportedInput, info.DataType)
	}
	want := []int64{1, InputSize, InputSize, pixel.Channels}
	if len(info.Dimensions) != len(want) {
		return fmt.Errorf("%w: shape %v, want NHWC %v", ErrUnsupportedInput, info.Dimensions, want)
	}
	for i, d := range info.Dimensions {
		// negative dims are symbolic (e.g. batch)
		if d >= 0 && d != want[i] {
			return fmt.Errorf("%w: shape %v, want NHWC %v", ErrUnsupportedInput, info.Dimensions, want)
		}
	}
	return nil
}

// flattenedSize is the per-image element count, or 0 when any non-batch
// dimension is symbolic.
func flattenedSize(s ort.Shape) int {
	if len(s) < 2 {
		return 0
	}
	n := 1
	for _, d := range s[1:] {
		if d <= 0 {
			return 0
		}
		n *= int(d)
	}
	return n
}

// Infer runs one image through the network and returns the flattened activation
// of layer (the configured layer when empty). Every tensor allocated here is
// released before Infer returns.
func (m *Model) Infer(ctx context.Context, pix *pixel.Buffer, layer string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if layer == "" {
		layer = m.layer
	}
	if pix.Width != InputSize || pix.Height != InputSize {
		return nil, fmt.Errorf("input is %dx%d, want %dx%d", pix.Width, pix.Height, InputSize, InputSize)
	}

	input, err := newInputTensor(m.inputType, pix)
	if err != nil {
		return nil, err
	}
	defer input.Destroy()

	out, err := m.session.Run(input, layer)
	if err != nil {
		return nil, err
	}
	if want := m.dims[layer]; want > 0 && len(out) != want {
		return nil, fmt.Errorf("layer %s produced %d values, want %d", layer, len(out), want)
	}
	return out, nil
}

// Dimensions is the embedding length of the configured layer, 0 if only known
// after the first inference.
func (m *Model) Dimensions() int { return m.dims[m.layer] }

func (m *Model) Close() error {
	if m.session == nil {
		return nil
	}
	return m.session.Close()
}
