package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// StateDirName is the per-project directory holding config and history.
const StateDirName = ".treesync"

// HomeEnv overrides the state directory for every project.
const HomeEnv = "TREESYNC_HOME"

// StateDir returns the state directory for a project living in projectDir
// and creates it if needed.
// Priority order:
//  1. TREESYNC_HOME environment variable (if set)
//  2. projectDir/.treesync
func StateDir(projectDir string) (string, error) {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		dir = filepath.Join(projectDir, StateDirName)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create state directory: %w", err)
	}
	return dir, nil
}

// HistoryDBPath resolves the configured history database for a project in
// projectDir. Absolute db_path values are used as-is.
func (c *Config) HistoryDBPath(projectDir string) (string, error) {
	if filepath.IsAbs(c.History.DBPath) {
		return c.History.DBPath, nil
	}

	dir, err := StateDir(projectDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.History.DBPath), nil
}
