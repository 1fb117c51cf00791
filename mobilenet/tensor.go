package mobilenet

import (
	"fmt"

	"github.com/krau/konaembed/pixel"
	ort "github.com/yalue/onnxruntime_go"
)

func tensorShape(pix *pixel.Buffer) ort.Shape {
	s := pix.Shape()
	return ort.NewShape(int64(s[0]), int64(s[1]), int64(s[2]))
}

func expandDims(s ort.Shape) ort.Shape {
	return append(ort.NewShape(1), s...)
}

func toInt32(pix []uint8) []int32 {
	out := make([]int32, len(pix))
	for i, v := range pix {
		out[i] = int32(v)
	}
	return out
}

// toFloat32 applies the MobileNet input scaling, mapping [0, 255] onto [-1, 1].
func toFloat32(pix []uint8) []float32 {
	out := make([]float32, len(pix))
	for i, v := range pix {
		out[i] = float32(v)/127.5 - 1
	}
	return out
}

func supportedInputType(t ort.TensorElementDataType) bool {
	switch t {
	case ort.TensorElementDataTypeInt32, ort.TensorElementDataTypeUint8, ort.TensorElementDataTypeFloat:
		return true
	}
	return false
}

// newInputTensor builds the batched [1, H, W, 3] input. The caller must Destroy it.
func newInputTensor(t ort.TensorElementDataType, pix *pixel.Buffer) (ort.Value, error) {
	shape := expandDims(tensorShape(pix))
	switch t {
	case ort.TensorElementDataTypeInt32:
		tensor, err := ort.NewTensor(shape, toInt32(pix.Pix))
		if err != nil {
			return nil, fmt.Errorf("failed to create input tensor: %w", err)
		}
		return tensor, nil
	case ort.TensorElementDataTypeUint8:
		data := make([]uint8, len(pix.Pix))
		copy(data, pix.Pix)
		tensor, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("failed to create input tensor: %w", err)
		}
		return tensor, nil
	case ort.TensorElementDataTypeFloat:
		tensor, err := ort.NewTensor(shape, toFloat32(pix.Pix))
		if err != nil {
			return nil, fmt.Errorf("failed to create input tensor: %w", err)
		}
		return tensor, nil
	default:
		return nil, fmt.Errorf("unsupported input element type %v", t)
	}
}
