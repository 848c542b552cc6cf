package embedding

import (
	"fmt"
	"os"
)

// validateModelPath checks that the model file exists before the runtime tries to load it.
func validateModelPath(path string) error {
	if path == "" {
		return fmt.Errorf("onnx model path is empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("onnx model not found at %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("onnx model path %s is a directory", path)
	}
	return nil
}
