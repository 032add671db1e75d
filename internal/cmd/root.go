package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for treesync
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "treesync",
		Short: "Resolve project files into instance trees",
		Long: `treesync resolves a project file into the instance tree it describes.

A project file maps instance names to classes, properties and filesystem
paths. treesync merges what the project declares with what the referenced
files and directories produce, reports conflicts, and writes the resulting
tree as JSON, YAML or an indented outline.

Configuration is loaded from .treesync/config.yaml next to the project.`,
		Version: Version,
		// main prints the error; silence cobra's copy and the usage text
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewBuildCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
