package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrison/treesync/internal/config"
	"github.com/spf13/cobra"
)

// addConfigFlags registers the flags shared by every command that reads
// configuration.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file (default: .treesync/config.yaml next to the project)")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
}

// loadConfig reads --config, or the config beside dir, then applies flags
// and validates the result.
func loadConfig(cmd *cobra.Command, dir string) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	var logLevel, format *string
	var noHistory *bool
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		v := f.Value.String()
		logLevel = &v
	}
	if f := cmd.Flags().Lookup("format"); f != nil && f.Changed {
		v := f.Value.String()
		format = &v
	}
	if f := cmd.Flags().Lookup("no-history"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetBool("no-history")
		noHistory = &v
	}
	cfg.MergeWithFlags(logLevel, format, noHistory)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// projectDir returns the directory a project argument lives in. An empty
// argument means the working directory.
func projectDir(arg string) string {
	if arg == "" {
		return "."
	}
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		return arg
	}
	return filepath.Dir(arg)
}

// projectPath resolves a project argument to a project file: directories
// hold cfg.ProjectFile, files are used as given.
func projectPath(arg string, cfg *config.Config) string {
	if arg == "" {
		return cfg.ProjectFile
	}
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		return filepath.Join(arg, cfg.ProjectFile)
	}
	return arg
}
