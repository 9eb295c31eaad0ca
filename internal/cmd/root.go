package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for bucketsort
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bucketsort",
		Short: "Copy files into per-extension bucket directories",
		Long: `bucketsort walks a source directory and copies every file into a
bucket directory named after its extension (txt/, jpg/, no_extension/, ...)
under an output directory.

Copies run concurrently with a bounded number of workers. Failed copies are
retried with exponential backoff, files locked by other processes can be
skipped, and name collisions are resolved as "name (N).ext".`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
