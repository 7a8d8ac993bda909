package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

var errNoLibrary = errors.New("ONNX Runtime library not found")

// LibPath returns configured if set, otherwise the first ONNX Runtime shared
// library found in the usual install locations for this OS.
func LibPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	for _, path := range candidates() {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w for %s, set libonnx in %s", errNoLibrary, runtime.GOOS, "config.toml")
}

func candidates() []string {
	switch runtime.GOOS {
	case "linux":
		return []string{
			filepath.Join("onnxlibs", "libonnxruntime.so"),
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
			"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
			"/usr/lib/aarch64-linux-gnu/libonnxruntime.so",
		}
	case "darwin":
		return []string{
			filepath.Join("onnxlibs", "libonnxruntime.dylib"),
			"/usr/local/lib/libonnxruntime.dylib",
			"/opt/homebrew/lib/libonnxruntime.dylib",
		}
	case "windows":
		return []string{
			filepath.Join("onnxlibs", "onnxruntime.dll"),
			"onnxruntime.dll",
		}
	default:
		return nil
	}
}

// Init loads the shared library and initializes the ONNX Runtime
// environment. Pair it with Shutdown.
func Init(configured string) error {
	path, err := LibPath(configured)
	if err != nil {
		return err
	}
	slog.Info("Using ONNX Runtime library", slog.String("path", path))
	ort.SetSharedLibraryPath(path)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
	}
	return nil
}

func Shutdown() {
	if !ort.IsInitialized() {
		return
	}
	if err := ort.DestroyEnvironment(); err != nil {
		slog.Error("Failed to destroy ONNX Runtime environment", slog.String("error", err.Error()))
	}
}
