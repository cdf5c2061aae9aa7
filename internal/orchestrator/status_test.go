package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exportwatch/internal/config"
	"exportwatch/internal/dispatcher"
)

func TestStatus_GroupsFilesByDestination(t *testing.T) {
	e := newEnv(t)
	cad1 := e.drop(t, "2024_05_Monthly_CAD.xlsx")
	cad2 := e.drop(t, "2024_06_Monthly_CAD.xlsx")
	rms := e.drop(t, "2023_11_Monthly_RMS.xlsx")
	notes := e.drop(t, "notes.txt")
	e.drop(t, "download.crdownload")

	o, err := New(e.cfg, testOptions())
	require.NoError(t, err)

	result, err := o.Status()
	require.NoError(t, err)
	require.Equal(t, []string{e.inbox}, result.Directories())

	status := result.ByDirectory[e.inbox]
	assert.Equal(t, 4, status.Total, "ignored partial downloads are not pending work")
	assert.Equal(t, 4, result.GrandTotal)

	assert.ElementsMatch(t, []string{cad1, cad2},
		status.ByDestination[filepath.Join(e.dest, "_CAD", "monthly_export", "2024")])
	assert.Equal(t, []string{rms},
		status.ByDestination[filepath.Join(e.dest, "_RMS", "monthly_export", "2023")])
	assert.Equal(t, []string{notes}, status.ByDestination[UnroutedNoMatch])
	assert.Len(t, status.Destinations(), 3)

	assert.FileExists(t, cad1, "status never moves files")
}

func TestStatus_ExtractionFailureLabel(t *testing.T) {
	e := newEnv(t)
	e.cfg.Rules = []config.RuleSpec{
		{Name: "Yearly", Contains: "yearly", Destination: "_Yearly", YearStrategy: "filename-prefix"},
	}
	path := e.drop(t, "yearly_report.csv")

	o, err := New(e.cfg, testOptions())
	require.NoError(t, err)

	result, err := o.Status()
	require.NoError(t, err)
	assert.Equal(t, []string{path}, result.ByDirectory[e.inbox].ByDestination[UnroutedExtractFail])
}

func TestStatus_MissingDirectoryReportedEmpty(t *testing.T) {
	e := newEnv(t)

	o, err := New(e.cfg, testOptions())
	require.NoError(t, err)

	result, err := o.Status()
	require.NoError(t, err)

	status := result.ByDirectory[e.inbox]
	require.NotNil(t, status)
	assert.Equal(t, 0, status.Total)
	assert.Error(t, status.Err)
	assert.NoDirExists(t, e.inbox)
}

func TestStatus_UnreadableRootIsAnError(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(e.inbox), 0o755))
	require.NoError(t, os.WriteFile(e.inbox, []byte("not a dir"), 0o644))

	o, err := New(e.cfg, testOptions())
	require.NoError(t, err)

	result, err := o.Status()
	assert.Error(t, err)
	assert.Equal(t, 0, result.GrandTotal)
}

func TestRoute_PlansWithoutMoving(t *testing.T) {
	e := newEnv(t)
	path := e.drop(t, "SCRPA_CAD_Export.xlsx")

	o, err := New(e.cfg, testOptions())
	require.NoError(t, err)

	plans := o.Route([]string{path, filepath.Join(e.inbox, "random.pdf")})
	require.Len(t, plans, 2)

	assert.True(t, plans[0].Ready())
	assert.Equal(t, "SCRPA_CAD", plans[0].Rule.Name)
	assert.Equal(t, filepath.Join(e.dest, "_CAD", "SCRPA"), plans[0].DestinationDir)
	assert.Regexp(t, `^\d{4}_\d{2}_\d{2}_\d{2}_\d{2}_\d{2}_SCRPA_CAD\.xlsx$`, plans[0].Filename)

	assert.False(t, plans[1].Ready())
	assert.Equal(t, dispatcher.StateNoMatch, plans[1].State)

	assert.FileExists(t, path)
}
