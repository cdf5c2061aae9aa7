// Package cli implements the exportwatch command line.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is reported in journal sessions. Set at build time with
// -ldflags "-X exportwatch/internal/cli.Version=...".
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the root command for the exportwatch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "exportwatch",
		Short: "Route report exports into the automation tree",
		Long: `exportwatch watches download folders for report exports and moves each
one into the destination tree chosen by the first matching rule, optionally
under a folder named after the year found in the filename.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewScanCommand(opts))
	cmd.AddCommand(NewRouteCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}
