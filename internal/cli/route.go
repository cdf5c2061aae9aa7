package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"exportwatch/internal/orchestrator"
)

// NewRouteCommand creates the route command.
func NewRouteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "route <config> <file>...",
		Short: "Show where files would be moved, without moving them",
		Long: `Match each file against the rule table and print the destination it would
be moved to. Nothing on disk is read or changed; files need not exist.

Example:
  exportwatch route ./exportwatch.yaml 2025_10_Monthly_CAD.xlsx e_ticket_export.csv`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(rootOpts, args[0], args[1:], cmd)
		},
	}
}

func runRoute(opts *RootOptions, configPath string, files []string, cmd *cobra.Command) error {
	out := newOutput(opts, cmd)
	o, err := planner(configPath, out)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(files))
	for _, plan := range o.Route(files) {
		rule, target := "-", orchestrator.DestinationLabel(plan)
		if plan.Ready() {
			rule = plan.Rule.Name
			target = filepath.Join(plan.DestinationDir, plan.Filename)
		} else if plan.Rule.Name != "" {
			rule = plan.Rule.Name
		}
		rows = append(rows, []string{filepath.Base(plan.Path), rule, target})
		if plan.Err != nil {
			out.Verbose("%s: %v", filepath.Base(plan.Path), plan.Err)
		}
	}
	return out.Table([]string{"FILE", "RULE", "DESTINATION"}, rows)
}
