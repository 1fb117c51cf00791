package onnx

import (
	"errors"
	"fmt"
	"slices"

	ort "github.com/yalue/onnxruntime_go"
)

var ErrUnknownOutput = errors.New("unknown session output")

// Session runs a single-input model on the CPU provider. Output tensors are
// allocated by the runtime on every Run and destroyed before Run returns.
type Session struct {
	session     *ort.DynamicAdvancedSession
	inputName   string
	outputNames []string
}

func OpenSession(modelPath, inputName string, outputNames []string, intraOpThreads int) (*Session, error) {
	opts, err := NewCPUSessionOptions(intraOpThreads)
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{inputName}, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX Runtime session: %w", err)
	}
	return &Session{
		session:     session,
		inputName:   inputName,
		outputNames: slices.Clone(outputNames),
	}, nil
}

// Run feeds input through the session and returns a flattened copy of the named
// float32 output. The caller keeps ownership of input.
func (s *Session) Run(input ort.Value, output string) ([]float32, error) {
	idx := slices.Index(s.outputNames, output)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOutput, output)
	}

	outputs := make([]ort.Value, len(s.outputNames))
	defer func() {
		for _, v := range outputs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("failed to run session: %w", err)
	}

	tensor, ok := outputs[idx].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("output %q is not a float32 tensor", output)
	}
	data := tensor.GetData()
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}
