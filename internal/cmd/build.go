package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/treesync/internal/config"
	"github.com/harrison/treesync/internal/export"
	"github.com/harrison/treesync/internal/filelock"
	"github.com/harrison/treesync/internal/fileutil"
	"github.com/harrison/treesync/internal/history"
	"github.com/harrison/treesync/internal/logger"
	"github.com/harrison/treesync/internal/session"
	"github.com/harrison/treesync/internal/vfs"
	"github.com/spf13/cobra"
)

// NewBuildCommand creates the build command
func NewBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [project-file-or-directory]",
		Short: "Resolve a project and write its instance tree",
		Long: `Resolve a project file into its instance tree and write the result.

With no argument, the project_file from configuration (default.project.json)
in the current directory is built. A directory argument builds the
project_file inside it.

Output goes to stdout unless --output is given. Files are written
atomically while holding <output>.lock, so concurrent builds of the same
output never interleave.

Examples:
  treesync build
  treesync build places/lobby.project.json --format yaml
  treesync build --output build/tree.json --no-history`,
		Args: cobra.MaximumNArgs(1),
		RunE: runBuild,
	}

	addConfigFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "Write the tree to this file instead of stdout")
	cmd.Flags().String("format", "", "Output format: json, yaml, outline (default from config)")
	cmd.Flags().Bool("no-history", false, "Do not record this build in the history database")

	return cmd
}

// runBuild implements the build command logic
func runBuild(cmd *cobra.Command, args []string) error {
	var arg string
	if len(args) == 1 {
		arg = args[0]
	}

	cfg, err := loadConfig(cmd, projectDir(arg))
	if err != nil {
		return err
	}

	path, err := filepath.Abs(projectPath(arg, cfg))
	if err != nil {
		return fmt.Errorf("failed to resolve project path: %w", err)
	}
	outputPath, _ := cmd.Flags().GetString("output")

	log := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	log.LogBuildStart(path)

	name, count, buildErr := build(ctx, cfg, path, outputPath, cmd.OutOrStdout(), log)
	duration := time.Since(start)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), fileutil.ProjectFileSuffix)
	}

	if cfg.History.Enabled {
		recordBuild(ctx, cfg, log, &history.Build{
			ProjectPath:   path,
			ProjectName:   name,
			Success:       buildErr == nil,
			InstanceCount: count,
			Duration:      duration,
			ErrorMessage:  errorMessage(buildErr),
			Format:        cfg.OutputFormat,
			OutputPath:    outputPath,
		})
	}

	if buildErr != nil {
		return buildErr
	}
	log.LogBuildComplete(name, count, duration)
	return nil
}

// build resolves path and writes the encoded tree. It returns the root name
// and instance count of the resolved tree.
func build(ctx context.Context, cfg *config.Config, path, outputPath string, stdout io.Writer, log *logger.ConsoleLogger) (string, int, error) {
	format, err := export.ParseFormat(cfg.OutputFormat)
	if err != nil {
		return "", 0, err
	}

	fs, err := vfs.NewOSFS(cfg.Cache.MaxEntries)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create filesystem cache: %w", err)
	}

	sess, err := session.Open(fs, path, nil, log)
	if err != nil {
		return "", 0, err
	}

	snap := sess.Snapshot()
	count := sess.Tree().Len()

	var buf bytes.Buffer
	if err := export.Encode(&buf, snap, format); err != nil {
		return snap.Name, count, fmt.Errorf("failed to encode tree: %w", err)
	}

	if outputPath == "" {
		if _, err := stdout.Write(buf.Bytes()); err != nil {
			return snap.Name, count, fmt.Errorf("failed to write output: %w", err)
		}
		return snap.Name, count, nil
	}

	// Zero lock_timeout waits until the lock is released
	if cfg.LockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.LockTimeout)
		defer cancel()
	}
	waiting := func(lockPath string) {
		log.LogInfo(fmt.Sprintf("waiting for %s held by another build", lockPath))
	}
	if err := filelock.LockAndWrite(ctx, outputPath, buf.Bytes(), waiting); err != nil {
		return snap.Name, count, fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	log.LogDebug(fmt.Sprintf("wrote %d bytes to %s", buf.Len(), outputPath))
	return snap.Name, count, nil
}

// recordBuild stores a history row. History is best effort: failures are
// logged and never fail the build.
func recordBuild(ctx context.Context, cfg *config.Config, log *logger.ConsoleLogger, b *history.Build) {
	dbPath, err := cfg.HistoryDBPath(filepath.Dir(b.ProjectPath))
	if err != nil {
		log.LogWarn(fmt.Sprintf("build history unavailable: %v", err))
		return
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		log.LogWarn(fmt.Sprintf("build history unavailable: %v", err))
		return
	}
	defer store.Close()

	if err := store.RecordBuild(ctx, b); err != nil {
		log.LogWarn(fmt.Sprintf("failed to record build: %v", err))
		return
	}
	log.LogTrace(fmt.Sprintf("recorded build %d in %s", b.ID, dbPath))
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}
