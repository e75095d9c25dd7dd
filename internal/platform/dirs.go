package platform

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const AppName = "ytscribe"

// ConfigDir is where config.toml is looked up.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

func DefaultModelDir() string {
	return filepath.Join(DataDir(), "models")
}

// EnsureModelDir resolves the model directory and creates it.
func EnsureModelDir(override string) (string, error) {
	dir := DefaultModelDir()
	if override != "" {
		dir = filepath.Clean(override)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}
