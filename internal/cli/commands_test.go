package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteCommand(t *testing.T) {
	w := newWorkspace(t, nil)

	stdout, _, err := execute(t, "route", w.config,
		"2025_10_Monthly_CAD.xlsx",
		"notes.txt",
		"2025_13_Monthly_RMS.xlsx",
	)
	require.NoError(t, err)

	assert.Regexp(t, `(?m)^FILE\s+RULE\s+DESTINATION$`, stdout)
	assert.Contains(t, stdout, filepath.Join(w.dest, "_CAD", "monthly_export", "2025", "2025_10_Monthly_CAD.xlsx"))
	assert.Regexp(t, `(?m)^notes\.txt\s+-\s+\(no matching rule\)$`, stdout)
	assert.Regexp(t, `(?m)^2025_13_Monthly_RMS\.xlsx\s+Monthly_RMS\s+\(year not found\)$`, stdout)

	assert.NoDirExists(t, w.dest)
	assert.NoDirExists(t, w.journal)
}

func TestScanCommand_MovesFiles(t *testing.T) {
	w := newWorkspace(t, nil)
	w.drop(t, "OTActivity.xlsx")
	w.drop(t, "2024_01_to_2024_12_ResponseTime_CAD.xlsx")
	w.drop(t, "readme.md")

	stdout, _, err := execute(t, "scan", w.config)
	require.NoError(t, err)

	assert.Contains(t, stdout, "2 moved, 0 failed, 1 ignored, 0 skipped")
	assert.FileExists(t, filepath.Join(w.dest, "_POSS_EXPORT", "OVERTIME_EXPORT", "OTActivity.xlsx"))
	assert.FileExists(t, filepath.Join(w.dest, "_CAD", "response_time", "2024", "2024_01_to_2024_12_ResponseTime_CAD.xlsx"))
	assert.FileExists(t, filepath.Join(w.inbox, "readme.md"))
}

func TestScanCommand_ExtractionFailureExitsWithFailure(t *testing.T) {
	w := newWorkspace(t, nil)
	bad := w.drop(t, "2024_00_Monthly_CAD.xlsx")

	stdout, _, err := execute(t, "scan", w.config, "--verbose")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "0 moved, 1 failed")
	assert.Regexp(t, `(?m)^EXTRACT_FAIL\s+1$`, stdout)
	assert.FileExists(t, bad)
}

func TestStatusCommand(t *testing.T) {
	w := newWorkspace(t, nil)
	w.drop(t, "2024_05_Monthly_CAD.xlsx")
	w.drop(t, "2024_06_Monthly_CAD.xlsx")
	w.drop(t, "notes.txt")

	stdout, _, err := execute(t, "status", w.config)
	require.NoError(t, err)

	assert.Contains(t, stdout, w.inbox+" (3 pending)")
	assert.Contains(t, stdout, filepath.Join(w.dest, "_CAD", "monthly_export", "2024")+": 2")
	assert.Contains(t, stdout, "(no matching rule): 1")
	assert.Contains(t, stdout, "Total: 3")
	assert.NotContains(t, stdout, "notes.txt", "file names are listed only in verbose mode")

	verbose, _, err := execute(t, "status", w.config, "-v")
	require.NoError(t, err)
	assert.Contains(t, verbose, filepath.Join(w.inbox, "notes.txt"))
}

func TestStatsCommand(t *testing.T) {
	w := newWorkspace(t, nil)
	w.drop(t, "OTActivity.xlsx")
	w.drop(t, "TimeOffActivity.xlsx")
	w.drop(t, "SCRPA_RMS_Export.xlsx")
	w.drop(t, "notes.txt")

	_, _, err := execute(t, "scan", w.config)
	require.NoError(t, err)

	stdout, _, err := execute(t, "stats", w.config)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Sessions: 1")
	assert.Contains(t, stdout, "Outcomes: 4")
	assert.Regexp(t, `(?m)^MOVED\s+3$`, stdout)
	assert.Regexp(t, `(?m)^NO_MATCH\s+1$`, stdout)
	assert.Regexp(t, `(?m)^OTActivity\s+1$`, stdout)

	top, _, err := execute(t, "stats", w.config, "--top", "1")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^OTActivity\s+1$`, top)
	assert.NotContains(t, top, "TimeOffActivity")
}

func TestStatsCommand_Since(t *testing.T) {
	w := newWorkspace(t, nil)
	w.drop(t, "OTActivity.xlsx")
	_, _, err := execute(t, "scan", w.config)
	require.NoError(t, err)

	tomorrow := time.Now().AddDate(0, 0, 1).Format(time.DateOnly)
	stdout, _, err := execute(t, "stats", w.config, "--since", tomorrow)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Sessions: 0")
	assert.Contains(t, stdout, "Outcomes: 0")

	_, _, err = execute(t, "stats", w.config, "--since", "last tuesday")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStatsCommand_MissingJournal(t *testing.T) {
	w := newWorkspace(t, nil)

	_, _, err := execute(t, "stats", w.config)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStatsCommand_JournalDisabled(t *testing.T) {
	w := newWorkspace(t, map[string]any{"journal": map[string]any{"disabled": true}})

	_, _, err := execute(t, "stats", w.config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestValidateCommand(t *testing.T) {
	w := newWorkspace(t, nil)

	stdout, _, err := execute(t, "validate", w.config)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ok (0 warnings)")
}

func TestValidateCommand_Warnings(t *testing.T) {
	w := newWorkspace(t, nil)
	require.NoError(t, os.Remove(w.inbox))

	stdout, _, err := execute(t, "validate", w.config)
	require.NoError(t, err)
	assert.Contains(t, stdout, "warning: monitoredDirectories[0]")
	assert.Contains(t, stdout, "ok (1 warnings)")
}

func TestValidateCommand_Errors(t *testing.T) {
	w := newWorkspace(t, map[string]any{
		"rules": []map[string]any{
			{"name": "Broken", "pattern": "([", "destination": "_X"},
		},
	})

	stdout, _, err := execute(t, "validate", w.config)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "error: rules[0]")
}

func TestParseSince(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("", now)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseSince("48h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-48*time.Hour), *got)

	got, err = parseSince("2025-01-31", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.Local), *got)

	_, err = parseSince("soon", now)
	assert.Error(t, err)
}
