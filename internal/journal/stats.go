package journal

import (
	"sort"
	"time"
)

// Stats aggregates outcome records across every session in a journal.
type Stats struct {
	Sessions  int
	Outcomes  int
	ByState   map[string]int
	ByRule    map[string]int // moved files per rule
	First     time.Time
	Last      time.Time
	Malformed int
}

// StatsOptions configures aggregation.
type StatsOptions struct {
	Since *time.Time // ignore records before this time
	TopN  int        // rules kept in ByRule; 0 keeps all
}

// movedState is the outcome state that counts towards ByRule.
const movedState = "MOVED"

// Aggregate computes Stats over the journal in dir.
func Aggregate(dir string, opts StatsOptions) (*Stats, error) {
	read, err := ReadAll(dir)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		ByState:   make(map[string]int),
		Malformed: read.Malformed,
	}
	rules := make(map[string]int)

	for _, rec := range read.Records {
		if opts.Since != nil && rec.Timestamp.Before(*opts.Since) {
			continue
		}
		if stats.First.IsZero() || rec.Timestamp.Before(stats.First) {
			stats.First = rec.Timestamp
		}
		if rec.Timestamp.After(stats.Last) {
			stats.Last = rec.Timestamp
		}

		switch rec.Type {
		case RecordSessionStart:
			stats.Sessions++
		case RecordOutcome:
			stats.Outcomes++
			stats.ByState[rec.State]++
			if rec.State == movedState && rec.Rule != "" {
				rules[rec.Rule]++
			}
		}
	}

	stats.ByRule = topN(rules, opts.TopN)
	return stats, nil
}

// Count returns the number of outcomes recorded with state.
func (s *Stats) Count(state string) int {
	return s.ByState[state]
}

// RuleCount is a rule name and its moved-file count.
type RuleCount struct {
	Rule  string
	Count int
}

// SortedRules returns ByRule ordered by count descending, then name.
func (s *Stats) SortedRules() []RuleCount {
	return sortCounts(s.ByRule)
}

func sortCounts(counts map[string]int) []RuleCount {
	sorted := make([]RuleCount, 0, len(counts))
	for k, v := range counts {
		sorted = append(sorted, RuleCount{Rule: k, Count: v})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].Rule < sorted[j].Rule
	})
	return sorted
}

func topN(counts map[string]int, n int) map[string]int {
	result := make(map[string]int, len(counts))
	if n <= 0 || len(counts) <= n {
		for k, v := range counts {
			result[k] = v
		}
		return result
	}
	for _, rc := range sortCounts(counts)[:n] {
		result[rc.Rule] = rc.Count
	}
	return result
}
