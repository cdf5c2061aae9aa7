package cli

import (
	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <config>",
		Short: "List files waiting in the monitored directories by destination",
		Long: `List every file currently waiting in the monitored directories, grouped by
the destination it would be moved to. Nothing is moved.

Example:
  exportwatch status ./exportwatch.yaml --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, args[0], cmd)
		},
	}
}

func runStatus(opts *RootOptions, configPath string, cmd *cobra.Command) error {
	out := newOutput(opts, cmd)
	o, err := planner(configPath, out)
	if err != nil {
		return err
	}

	result, err := o.Status()
	if err != nil {
		out.Error("warning: %v", err)
	}

	for _, dir := range result.Directories() {
		status := result.ByDirectory[dir]
		out.Info("%s (%d pending)", dir, status.Total)
		if status.Err != nil {
			out.Info("  unavailable: %v", status.Err)
			continue
		}
		for _, dest := range status.Destinations() {
			files := status.ByDestination[dest]
			out.Info("  %s: %d", dest, len(files))
			for _, f := range files {
				out.Verbose("    %s", f)
			}
		}
	}
	out.Info("Total: %d", result.GrandTotal)
	return nil
}
