package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/treesync/internal/history"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent builds",
		Long: `List builds recorded by "treesync build", most recent first.

The history database lives in .treesync/history.db next to the project
unless history.db_path or TREESYNC_HOME say otherwise. --schema prints the
database's schema version and applied migrations instead.`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .treesync/config.yaml next to the project)")
	cmd.Flags().Int("limit", 20, "Maximum number of builds to show")
	cmd.Flags().String("project", "", "Only show builds of this project file")
	cmd.Flags().Bool("schema", false, "Show the history database schema version and applied migrations")

	return cmd
}

// runHistory executes the history command
func runHistory(cmd *cobra.Command, args []string) error {
	output := cmd.OutOrStdout()
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("--limit must be > 0, got %d", limit)
	}

	project, _ := cmd.Flags().GetString("project")
	dir := "."
	if project != "" {
		abs, err := filepath.Abs(project)
		if err != nil {
			return fmt.Errorf("resolve project path: %w", err)
		}
		project = abs
		dir = filepath.Dir(abs)
	}

	cfg, err := loadConfig(cmd, dir)
	if err != nil {
		return err
	}

	dbPath, err := cfg.HistoryDBPath(dir)
	if err != nil {
		return fmt.Errorf("failed to get history database path: %w", err)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintln(output, "No builds recorded")
		return nil
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if schema, _ := cmd.Flags().GetBool("schema"); schema {
		return printSchema(ctx, output, store, dbPath)
	}

	var builds []*history.Build
	if project != "" {
		builds, err = store.BuildsForProject(ctx, project, limit)
	} else {
		builds, err = store.RecentBuilds(ctx, limit)
	}
	if err != nil {
		return fmt.Errorf("query build history: %w", err)
	}

	if len(builds) == 0 {
		fmt.Fprintln(output, "No builds recorded")
		return nil
	}

	printBuilds(output, builds)
	return nil
}

// printBuilds writes one row per build
func printBuilds(w io.Writer, builds []*history.Build) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTATUS\tPROJECT\tINSTANCES\tDURATION\tOUTPUT")
	for _, b := range builds {
		status := green.Sprint("ok")
		if !b.Success {
			status = red.Sprint("failed")
		}
		out := b.OutputPath
		if out == "" {
			out = "stdout"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s (%s)\n",
			b.Timestamp.Local().Format("2006-01-02 15:04:05"),
			status,
			b.ProjectName,
			b.InstanceCount,
			b.Duration.Round(time.Millisecond),
			out,
			b.Format,
		)
	}
	tw.Flush()

	for _, b := range builds {
		if !b.Success && b.ErrorMessage != "" {
			fmt.Fprintf(w, "\n%s %s: %s\n", red.Sprint("✗"), b.ProjectName, b.ErrorMessage)
		}
	}
}

// printSchema writes the schema version of the store at dbPath followed by
// one line per applied migration.
func printSchema(ctx context.Context, w io.Writer, store *history.Store, dbPath string) error {
	latest, err := store.GetLatestVersion(ctx)
	if err != nil {
		return fmt.Errorf("query schema version: %w", err)
	}
	versions, err := store.GetAppliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("query applied migrations: %w", err)
	}

	fmt.Fprintf(w, "%s: schema version %d\n", dbPath, latest)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tAPPLIED")
	for _, v := range versions {
		fmt.Fprintf(tw, "%d\t%s\n", v.Version, v.AppliedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
