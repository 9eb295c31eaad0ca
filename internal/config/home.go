package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the bucketsort home directory.
const HomeEnv = "BUCKETSORT_HOME"

// StateDirName is the per-project directory holding configuration and logs.
const StateDirName = ".bucketsort"

// GetHome returns the bucketsort home directory.
// Priority order:
//  1. BUCKETSORT_HOME environment variable (if set)
//  2. .bucketsort in the current working directory
//
// The directory is not created.
func GetHome() (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return home, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return filepath.Join(cwd, StateDirName), nil
}

// DefaultConfigPath returns the config file read when --config is not given.
func DefaultConfigPath() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.yaml"), nil
}
