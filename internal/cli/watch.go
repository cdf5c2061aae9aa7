package cli

import (
	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <config>",
		Short: "Watch the monitored directories and route exports as they arrive",
		Long: `Watch the monitored directories and move every export that matches a rule.

Files already waiting when the service starts are routed first. The service
runs until interrupted; the session summary is printed on shutdown.

Example:
  exportwatch watch ./exportwatch.yaml
  exportwatch watch ./exportwatch.json --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(rootOpts, args[0], cmd)
		},
	}
}

func runWatch(opts *RootOptions, configPath string, cmd *cobra.Command) error {
	out := newOutput(opts, cmd)
	o, logger, cleanup, err := service(opts, configPath, cmd, out)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	summary, err := o.Watch(ctx)
	printSummary(out, summary)
	if err != nil {
		return WrapExitError(ExitCommandError, "watch stopped", err)
	}
	return nil
}
