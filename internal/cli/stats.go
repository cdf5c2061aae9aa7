package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"exportwatch/internal/journal"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Since string
	Top   int
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats <config>",
		Short: "Summarise the outcome journal",
		Long: `Aggregate the outcome journal named by the configuration: sessions, outcomes
per state and files moved per rule.

--since accepts a duration back from now (168h) or a date (2025-01-31).

Example:
  exportwatch stats ./exportwatch.yaml
  exportwatch stats ./exportwatch.yaml --since 168h --top 5`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Since, "since", "", "only count records after this duration ago or date")
	cmd.Flags().IntVar(&opts.Top, "top", 10, "number of rules to list (0 lists all)")

	return cmd
}

func runStats(opts *StatsOptions, configPath string, cmd *cobra.Command) error {
	out := newOutput(opts.RootOptions, cmd)

	since, err := parseSince(opts.Since, time.Now())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --since", err)
	}

	cfg, err := loadConfig(configPath, out)
	if err != nil {
		return err
	}
	if cfg.Journal == nil || cfg.Journal.Disabled {
		return NewExitError(ExitCommandError, "the journal is disabled in this configuration")
	}

	stats, err := journal.Aggregate(cfg.Journal.Directory, journal.StatsOptions{Since: since, TopN: opts.Top})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	out.Info("Sessions: %d", stats.Sessions)
	out.Info("Outcomes: %d", stats.Outcomes)
	if !stats.First.IsZero() {
		out.Info("Period:   %s to %s", stats.First.Local().Format(time.DateTime), stats.Last.Local().Format(time.DateTime))
	}
	if stats.Malformed > 0 {
		out.Error("warning: %d malformed journal lines skipped", stats.Malformed)
	}

	if len(stats.ByState) > 0 {
		out.Info("")
		states := make([][]string, 0, len(stats.ByState))
		for _, state := range sortedKeys(stats.ByState) {
			states = append(states, []string{state, fmt.Sprint(stats.ByState[state])})
		}
		if err := out.Table([]string{"STATE", "COUNT"}, states); err != nil {
			return err
		}
	}

	if len(stats.ByRule) > 0 {
		out.Info("")
		rows := make([][]string, 0, len(stats.ByRule))
		for _, rc := range stats.SortedRules() {
			rows = append(rows, []string{rc.Rule, fmt.Sprint(rc.Count)})
		}
		if err := out.Table([]string{"RULE", "MOVED"}, rows); err != nil {
			return err
		}
	}
	return nil
}

// parseSince accepts a Go duration (back from now) or a YYYY-MM-DD date.
func parseSince(s string, now time.Time) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		t := now.Add(-d)
		return &t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%q is neither a duration nor a YYYY-MM-DD date", s)
	}
	return &t, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
