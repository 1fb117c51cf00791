package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/krau/konaembed/config"
	ort "github.com/yalue/onnxruntime_go"
)

var ErrLibraryNotFound = errors.New("onnxruntime shared library not found")

var (
	pathOnce sync.Once
	libPath  string
	initMu   sync.Mutex
)

func LibPath() string {
	pathOnce.Do(func() {
		configured := config.C().Libonnx
		if configured == "" {
			configured = os.Getenv("ONNXRUNTIME_LIB")
		}
		libPath = resolveLibPath(configured, runtime.GOOS, fileExists)
		if libPath == "" {
			slog.Error("ONNX Runtime library path could not be determined for this OS")
		} else {
			slog.Info("Using ONNX Runtime library", slog.String("path", libPath))
		}
	})
	return libPath
}

func resolveLibPath(configured, goos string, exists func(string) bool) string {
	if configured != "" {
		return configured
	}
	for _, path := range libCandidates(goos) {
		if exists(path) {
			return path
		}
	}
	return ""
}

func libCandidates(goos string) []string {
	switch goos {
	case "linux":
		return []string{
			filepath.Join("onnxlibs", "libonnxruntime.so"),
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
		}
	case "darwin":
		return []string{
			filepath.Join("onnxlibs", "libonnxruntime.dylib"),
			"/usr/local/lib/libonnxruntime.dylib",
			"/opt/homebrew/lib/libonnxruntime.dylib",
		}
	case "windows":
		return []string{filepath.Join("onnxlibs", "onnxruntime.dll"), "onnxruntime.dll"}
	default:
		return nil
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Init selects the CPU backend and blocks until the runtime environment is ready.
// Calling it again after a successful initialization is a no-op.
func Init() error {
	initMu.Lock()
	defer initMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	path := LibPath()
	if path == "" {
		return ErrLibraryNotFound
	}
	ort.SetSharedLibraryPath(path)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
	}
	return nil
}

func Destroy() error {
	initMu.Lock()
	defer initMu.Unlock()
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// NewCPUSessionOptions returns session options with no execution provider appended,
// so ONNX Runtime falls back to its default CPU provider.
func NewCPUSessionOptions(intraOpThreads int) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	if intraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(intraOpThreads); err != nil {
			opts.Destroy()
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}
	return opts, nil
}
