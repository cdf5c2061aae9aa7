package orchestrator

import (
	"fmt"
	"sort"
	"time"

	"exportwatch/internal/dispatcher"
)

// RunSummary contains statistics from a watch or scan session.
type RunSummary struct {
	Moved    int                      // files relocated
	Failed   int                      // extraction, lock or I/O failures; files left in place
	Ignored  int                      // no rule matched, or an ignore pattern did
	Skipped  int                      // debounced duplicates and files gone before the move
	Duration time.Duration            // session length
	ByState  map[dispatcher.State]int // raw counters
}

// GenerateSummary condenses dispatcher counters into a RunSummary.
func GenerateSummary(s dispatcher.Summary) *RunSummary {
	byState := make(map[dispatcher.State]int, len(s.Counts))
	for k, v := range s.Counts {
		byState[k] = v
	}
	return &RunSummary{
		Moved:    s.Moved(),
		Failed:   s.Failed(),
		Ignored:  s.Ignored(),
		Skipped:  s.Skipped(),
		Duration: s.Duration,
		ByState:  byState,
	}
}

// HasFailures reports whether any file was left in place by a failure.
func (s *RunSummary) HasFailures() bool {
	return s.Failed > 0
}

// String returns the one-line summary printed at the end of a session.
func (s *RunSummary) String() string {
	return fmt.Sprintf("%d moved, %d failed, %d ignored, %d skipped in %s",
		s.Moved, s.Failed, s.Ignored, s.Skipped, s.Duration.Round(time.Millisecond))
}

// StateRows returns the per-state counters as table rows, sorted by state.
func (s *RunSummary) StateRows() [][]string {
	states := make([]string, 0, len(s.ByState))
	for k := range s.ByState {
		states = append(states, string(k))
	}
	sort.Strings(states)

	rows := make([][]string, 0, len(states))
	for _, st := range states {
		rows = append(rows, []string{st, fmt.Sprint(s.ByState[dispatcher.State(st)])})
	}
	return rows
}
