package cli

import (
	"github.com/spf13/cobra"
)

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <config>",
		Short: "Route the files already in the monitored directories, then exit",
		Long: `Run one reconciliation pass over the monitored directories and exit.

Exits with status 1 when any file was left in place by a failure.

Example:
  exportwatch scan ./exportwatch.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(rootOpts, args[0], cmd)
		},
	}
}

func runScan(opts *RootOptions, configPath string, cmd *cobra.Command) error {
	out := newOutput(opts, cmd)
	o, logger, cleanup, err := service(opts, configPath, cmd, out)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	summary, err := o.Scan(ctx)
	printSummary(out, summary)
	if err != nil {
		return WrapExitError(ExitCommandError, "scan incomplete", err)
	}
	return summaryError(summary)
}
