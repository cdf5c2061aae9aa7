package cli

import (
	"github.com/spf13/cobra"

	"exportwatch/internal/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Check a configuration file",
		Long: `Check a configuration file and report every error and warning.

Exits with status 2 when the configuration has errors. Warnings, such as a
monitored directory that does not exist yet, do not fail validation.

Example:
  exportwatch validate ./exportwatch.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, configPath string, cmd *cobra.Command) error {
	out := newOutput(opts, cmd)

	cfg, err := config.Load(configPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	result := config.ValidateConfig(cfg)
	for _, e := range result.Errors {
		out.Info("error: %s: %s", e.Field, e.Message)
	}
	for _, w := range result.Warnings {
		out.Info("warning: %s: %s", w.Field, w.Message)
	}
	if !result.Valid {
		return NewExitError(ExitCommandError, "configuration has errors")
	}
	out.Info("%s: ok (%d warnings)", configPath, len(result.Warnings))
	return nil
}
