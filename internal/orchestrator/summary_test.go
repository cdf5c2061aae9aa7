package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"exportwatch/internal/dispatcher"
)

func TestGenerateSummary(t *testing.T) {
	snap := dispatcher.Summary{
		Counts: map[dispatcher.State]int{
			dispatcher.StateMoved:       4,
			dispatcher.StateLockFailed:  1,
			dispatcher.StateIOFailed:    1,
			dispatcher.StateExtractFail: 2,
			dispatcher.StateNoMatch:     3,
			dispatcher.StateIgnored:     5,
			dispatcher.StateDebounced:   6,
			dispatcher.StateSkipped:     1,
		},
		Duration: 1500 * time.Millisecond,
	}

	s := GenerateSummary(snap)
	assert.Equal(t, 4, s.Moved)
	assert.Equal(t, 4, s.Failed)
	assert.Equal(t, 8, s.Ignored)
	assert.Equal(t, 7, s.Skipped)
	assert.True(t, s.HasFailures())
	assert.Equal(t, "4 moved, 4 failed, 8 ignored, 7 skipped in 1.5s", s.String())

	snap.Counts[dispatcher.StateMoved] = 100
	assert.Equal(t, 4, s.ByState[dispatcher.StateMoved], "summary owns its counters")
}

func TestGenerateSummary_Empty(t *testing.T) {
	s := GenerateSummary(dispatcher.Summary{})
	assert.False(t, s.HasFailures())
	assert.Empty(t, s.StateRows())
	assert.Equal(t, "0 moved, 0 failed, 0 ignored, 0 skipped in 0s", s.String())
}

func TestRunSummary_StateRows(t *testing.T) {
	s := GenerateSummary(dispatcher.Summary{Counts: map[dispatcher.State]int{
		dispatcher.StateNoMatch: 2,
		dispatcher.StateMoved:   7,
	}})

	assert.Equal(t, [][]string{
		{"MOVED", "7"},
		{"NO_MATCH", "2"},
	}, s.StateRows())
}
