package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"exportwatch/internal/rules"
)

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rules [config]",
		Short: "List the rule table in evaluation order",
		Long: `List the rules in the order they are evaluated; the first match wins.

Without a configuration file the built-in catalog is listed. With one, the
configured rules are shown after the catalog, or alone when the configuration
sets replaceDefaultRules.

Example:
  exportwatch rules
  exportwatch rules ./exportwatch.yaml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(rootOpts, args, cmd)
		},
	}
}

func runRules(opts *RootOptions, args []string, cmd *cobra.Command) error {
	out := newOutput(opts, cmd)

	table := rules.Default()
	if len(args) == 1 {
		o, err := planner(args[0], out)
		if err != nil {
			return err
		}
		table = o.Rules()
	}

	return out.Table(
		[]string{"#", "NAME", "MATCH", "DESTINATION", "YEAR", "EXTENSIONS", "OVERWRITE"},
		ruleRows(table.Rules()),
	)
}

func ruleRows(rs []rules.Rule) [][]string {
	rows := make([][]string, 0, len(rs))
	for i, r := range rs {
		exts := "*"
		if len(r.Extensions) > 0 {
			exts = strings.Join(r.Extensions, ",")
		}
		year := "-"
		if r.YearBased() {
			year = r.YearStrategy.String()
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			r.Name,
			r.Predicate(),
			r.Destination,
			year,
			exts,
			string(r.Overwrite),
		})
	}
	return rows
}
