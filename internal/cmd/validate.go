package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/harrison/treesync/internal/display"
	"github.com/harrison/treesync/internal/fileutil"
	"github.com/harrison/treesync/internal/logger"
	"github.com/harrison/treesync/internal/session"
	"github.com/harrison/treesync/internal/vfs"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <project-file-or-directory>...",
		Short: "Resolve one or more projects and report errors",
		Long: `Resolve project files without writing output, reporting for each one:
  - Load errors (malformed JSON, unknown keys, missing tree)
  - Class conflicts between $className and the filesystem
  - Nodes with neither $className nor $path
  - Required $path values that do not exist
  - Properties that cannot be resolved for their class
  - Projects that include themselves

Directories are scanned recursively for *.project.json files.

Exit code: 0 if every project is valid, 1 otherwise`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, ".")
			if err != nil {
				return err
			}
			log := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			return validateProjects(args, cfg.Cache.MaxEntries, cmd.OutOrStdout(), log)
		},
		SilenceUsage: true,
	}

	addConfigFlags(cmd)

	return cmd
}

// openSession is replaced in tests to observe the filesystem between projects.
var openSession = session.Open

// validateProjects validates every project named by paths and writes one
// status line per project to output.
func validateProjects(paths []string, cacheEntries int, output io.Writer, log *logger.ConsoleLogger) error {
	projects, err := collectProjectFiles(paths, output)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		return fmt.Errorf("no project files to validate")
	}

	var failed []string
	for _, path := range projects {
		// Each project gets its own read cache so one project's reads never
		// answer another's.
		fs, err := vfs.NewOSFS(cacheEntries)
		if err != nil {
			return fmt.Errorf("failed to create filesystem cache: %w", err)
		}

		sess, err := openSession(fs, path, nil, log)
		if err != nil {
			display.Fail(output, "%s: %v", path, err)
			failed = append(failed, path)
			continue
		}
		display.Pass(output, "%s (%d instances)", path, sess.Tree().Len())
	}

	if len(failed) == 0 {
		fmt.Fprintf(output, "\n%d project(s) valid\n", len(projects))
		return nil
	}

	fmt.Fprintf(output, "\n%d of %d project(s) failed validation\n", len(failed), len(projects))
	return fmt.Errorf("validation failed for %d project(s)", len(failed))
}

// collectProjectFiles expands directories into the project files below them
// and removes duplicates. Directories without project files produce a
// warning rather than an error.
func collectProjectFiles(paths []string, output io.Writer) ([]string, error) {
	var projects []string
	seen := make(map[string]bool)
	var emptyDirs []string

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			projects = append(projects, path)
		}
	}

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for %s: %w", path, err)
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("failed to access path %s: %w", absPath, err)
		}

		if !info.IsDir() {
			add(absPath)
			continue
		}

		found, err := fileutil.FindProjectFiles(absPath)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			emptyDirs = append(emptyDirs, absPath)
		}
		for _, f := range found {
			add(f)
		}
	}

	if len(emptyDirs) > 0 {
		display.Warning{
			Title:      "No project files found",
			Files:      emptyDirs,
			Suggestion: "Project files must end in " + fileutil.ProjectFileSuffix,
		}.Display(output)
	}

	return projects, nil
}
