// Package onnx owns the lifecycle of ONNX Runtime inference sessions: the
// process-wide runtime environment, per-model sessions with pre-allocated
// input/output tensors, and the device selection done once at construction.
package onnx

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrBackendUnavailable is returned when a session cannot be constructed:
// missing model artifact, missing runtime library, or an unusable device.
// Construction failures are fatal for the component; there is no fallback.
var ErrBackendUnavailable = errors.New("inference backend unavailable")

// Device selects the execution provider for a session.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// Initialize loads the ONNX Runtime shared library and sets up the
// process-wide environment. Call once at startup, paired with Cleanup.
func Initialize(libraryPath string) error {
	if libraryPath != "" {
		if _, err := os.Stat(libraryPath); err != nil {
			return fmt.Errorf("%w: runtime library %s: %v", ErrBackendUnavailable, libraryPath, err)
		}
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("%w: initialize environment: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Cleanup tears down the process-wide environment. Destroy all sessions
// first.
func Cleanup() error {
	return ort.DestroyEnvironment()
}

// SessionConfig describes one model session.
type SessionConfig struct {
	ModelPath   string
	Device      Device
	InputName   string
	OutputName  string
	InputShape  []int64
	OutputShape []int64
}

// Session wraps an ONNX Runtime session with its pre-allocated tensors.
// A Session is not safe for concurrent Infer calls; use one per worker.
type Session struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewSession loads the model artifact and builds the session. Construction
// may block on model load; Infer calls afterwards are compute-only.
func NewSession(cfg SessionConfig) (*Session, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model %s: %v", ErrBackendUnavailable, cfg.ModelPath, err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(runtime.NumCPU())
	options.SetInterOpNumThreads(runtime.NumCPU())

	if cfg.Device == DeviceCUDA {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("%w: cuda provider: %v", ErrBackendUnavailable, err)
		}
		defer cudaOptions.Destroy()
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			return nil, fmt.Errorf("%w: cuda provider: %v", ErrBackendUnavailable, err)
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("%w: create session: %v", ErrBackendUnavailable, err)
	}

	return &Session{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
	}, nil
}

// Infer copies input into the session's input tensor, runs the model and
// returns the output tensor's backing data. The returned slice is reused by
// the next call; decode it before running again.
func (s *Session) Infer(input []float32) ([]float32, error) {
	dst := s.input.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("input length %d does not match tensor length %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}
	return s.output.GetData(), nil
}

// Close destroys the session and its tensors.
func (s *Session) Close() error {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
	return nil
}
