package mover

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProbe reports locked for the first n probes, then free.
type scriptedProbe struct {
	mu     sync.Mutex
	locked int
	calls  int
}

func (p *scriptedProbe) Locked(string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.calls <= p.locked, nil
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
}

func fixedNow() time.Time {
	return time.Date(2025, 11, 3, 14, 5, 9, 0, time.UTC)
}

func newTestMover(probe LockProbe, rec *sleepRecorder) *Mover {
	return New(Options{
		Attempts: 5,
		BackOff:  Fixed(2 * time.Second),
		Probe:    probe,
		Sleep:    rec.sleep,
		Now:      fixedNow,
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestMove_CreatesDestinationAndMoves(t *testing.T) {
	src := filepath.Join(t.TempDir(), "2025_11_Monthly_CAD.xlsx")
	writeFile(t, src, "cad")
	destDir := filepath.Join(t.TempDir(), "_CAD", "monthly_export", "2025")

	rec := &sleepRecorder{}
	out := newTestMover(&scriptedProbe{}, rec).Move(src, destDir, "2025_11_Monthly_CAD.xlsx", TimestampPrefix)

	require.Equal(t, Moved, out.Result, "err: %v", out.Err)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, filepath.Join(destDir, "2025_11_Monthly_CAD.xlsx"), out.DestinationPath)
	assert.Empty(t, rec.sleeps)
	assert.NoFileExists(t, src)

	data, err := os.ReadFile(out.DestinationPath)
	require.NoError(t, err)
	assert.Equal(t, "cad", string(data))
}

func TestMove_ExistingDestinationDirectoryIsNotAnError(t *testing.T) {
	src := filepath.Join(t.TempDir(), "e_ticket.csv")
	writeFile(t, src, "x")
	destDir := t.TempDir()

	out := newTestMover(&scriptedProbe{}, &sleepRecorder{}).Move(src, destDir, "e_ticket.csv", TimestampPrefix)
	assert.Equal(t, Moved, out.Result)
}

func TestMove_LockRetryRecovery(t *testing.T) {
	src := filepath.Join(t.TempDir(), "OTActivity.xlsx")
	writeFile(t, src, "ot")
	destDir := t.TempDir()

	probe := &scriptedProbe{locked: 2}
	rec := &sleepRecorder{}
	out := newTestMover(probe, rec).Move(src, destDir, "OTActivity.xlsx", TimestampPrefix)

	require.Equal(t, Moved, out.Result, "err: %v", out.Err)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, probe.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, rec.sleeps)
	assert.FileExists(t, filepath.Join(destDir, "OTActivity.xlsx"))
}

func TestMove_LockRetryExhaustion(t *testing.T) {
	src := filepath.Join(t.TempDir(), "OTActivity.xlsx")
	writeFile(t, src, "ot")
	destDir := t.TempDir()

	probe := &scriptedProbe{locked: 100}
	rec := &sleepRecorder{}
	out := newTestMover(probe, rec).Move(src, destDir, "OTActivity.xlsx", TimestampPrefix)

	assert.Equal(t, Failed, out.Result)
	assert.Equal(t, 5, out.Attempts)
	assert.Equal(t, 5, probe.calls)
	assert.Len(t, rec.sleeps, 4)
	assert.True(t, errors.Is(out.Err, ErrLocked))

	var moveErr *MoveError
	require.True(t, errors.As(out.Err, &moveErr))
	assert.Equal(t, LockedFile, moveErr.Type)

	assert.FileExists(t, src, "locked file must stay in the source directory")
	assert.NoFileExists(t, filepath.Join(destDir, "OTActivity.xlsx"))
}

func TestMove_ExponentialShape(t *testing.T) {
	src := filepath.Join(t.TempDir(), "f.xlsx")
	writeFile(t, src, "f")

	rec := &sleepRecorder{}
	m := New(Options{
		Attempts: 5,
		BackOff:  Exponential(time.Second, 0),
		Probe:    &scriptedProbe{locked: 100},
		Sleep:    rec.sleep,
	})
	out := m.Move(src, t.TempDir(), "f.xlsx", TimestampPrefix)

	assert.Equal(t, Failed, out.Result)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, rec.sleeps)
}

func TestMove_BackOffStartsOverForEachMove(t *testing.T) {
	rec := &sleepRecorder{}
	m := New(Options{
		Attempts: 3,
		BackOff:  Exponential(time.Second, 0),
		Probe:    LockProbeFunc(func(string) (bool, error) { return true, nil }),
		Sleep:    rec.sleep,
	})

	for i := 0; i < 2; i++ {
		src := filepath.Join(t.TempDir(), "f.xlsx")
		writeFile(t, src, "f")
		m.Move(src, t.TempDir(), "f.xlsx", TimestampPrefix)
	}

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, time.Second, 2 * time.Second}, rec.sleeps)
}

func TestMove_OverwriteReplaceStripsCounter(t *testing.T) {
	src := filepath.Join(t.TempDir(), "vehicle-pursuit-reports-01_01_2025-12_31_2025(1).csv")
	writeFile(t, src, "new snapshot")
	destDir := filepath.Join(t.TempDir(), "Benchmark", "vehicle_pursuit")
	existing := filepath.Join(destDir, "vehicle-pursuit-reports-01_01_2025-12_31_2025.csv")
	writeFile(t, existing, "old snapshot")

	out := newTestMover(&scriptedProbe{}, &sleepRecorder{}).Move(src, destDir, filepath.Base(src), OverwriteReplace)

	require.Equal(t, Moved, out.Result, "err: %v", out.Err)
	assert.Equal(t, existing, out.DestinationPath)
	assert.True(t, out.Replaced)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "new snapshot", string(data))

	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMove_TimestampPrefixOnCollision(t *testing.T) {
	src := filepath.Join(t.TempDir(), "e_ticket.xlsx")
	writeFile(t, src, "second")
	destDir := t.TempDir()
	writeFile(t, filepath.Join(destDir, "e_ticket.xlsx"), "first")

	out := newTestMover(&scriptedProbe{}, &sleepRecorder{}).Move(src, destDir, "e_ticket.xlsx", TimestampPrefix)

	require.Equal(t, Moved, out.Result)
	assert.Equal(t, filepath.Join(destDir, "2025_11_03_14_05_09_e_ticket.xlsx"), out.DestinationPath)

	first, err := os.ReadFile(filepath.Join(destDir, "e_ticket.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(first))
}

func TestMove_TimestampPrefixSameSecondCollision(t *testing.T) {
	destDir := t.TempDir()
	writeFile(t, filepath.Join(destDir, "e_ticket.xlsx"), "first")
	writeFile(t, filepath.Join(destDir, "2025_11_03_14_05_09_e_ticket.xlsx"), "second")

	src := filepath.Join(t.TempDir(), "e_ticket.xlsx")
	writeFile(t, src, "third")

	out := newTestMover(&scriptedProbe{}, &sleepRecorder{}).Move(src, destDir, "e_ticket.xlsx", TimestampPrefix)

	require.Equal(t, Moved, out.Result)
	assert.Equal(t, filepath.Join(destDir, "2025_11_03_14_05_09_e_ticket_2.xlsx"), out.DestinationPath)
}

func TestMove_ConcurrentCollisionsGetDistinctNames(t *testing.T) {
	destDir := t.TempDir()
	m := newTestMover(&scriptedProbe{}, &sleepRecorder{})

	const n = 4
	outcomes := make([]Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		src := filepath.Join(t.TempDir(), "e_ticket.xlsx")
		writeFile(t, src, "x")
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = m.Move(src, destDir, "e_ticket.xlsx", TimestampPrefix)
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, out := range outcomes {
		require.Equal(t, Moved, out.Result)
		assert.False(t, seen[out.DestinationPath], "duplicate destination %s", out.DestinationPath)
		seen[out.DestinationPath] = true
		assert.FileExists(t, out.DestinationPath)
	}

	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestMove_SourceMissingIsSkipped(t *testing.T) {
	src := filepath.Join(t.TempDir(), "gone.xlsx")
	destDir := filepath.Join(t.TempDir(), "dest")

	probe := &scriptedProbe{}
	out := newTestMover(probe, &sleepRecorder{}).Move(src, destDir, "gone.xlsx", TimestampPrefix)

	assert.Equal(t, Skipped, out.Result)
	assert.Equal(t, 0, probe.calls)
	assert.NoDirExists(t, destDir, "a skipped move must not create directories")

	var moveErr *MoveError
	require.True(t, errors.As(out.Err, &moveErr))
	assert.Equal(t, SourceNotFound, moveErr.Type)
}

func TestMove_ReplayIsNoOp(t *testing.T) {
	src := filepath.Join(t.TempDir(), "e_ticket.csv")
	writeFile(t, src, "x")
	destDir := t.TempDir()
	m := newTestMover(&scriptedProbe{}, &sleepRecorder{})

	first := m.Move(src, destDir, "e_ticket.csv", TimestampPrefix)
	second := m.Move(src, destDir, "e_ticket.csv", TimestampPrefix)

	assert.Equal(t, Moved, first.Result)
	assert.Equal(t, Skipped, second.Result)

	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMove_ProbeErrorIsIOFailure(t *testing.T) {
	src := filepath.Join(t.TempDir(), "f.xlsx")
	writeFile(t, src, "f")

	boom := errors.New("boom")
	rec := &sleepRecorder{}
	m := New(Options{
		Probe: LockProbeFunc(func(string) (bool, error) { return false, boom }),
		Sleep: rec.sleep,
	})
	out := m.Move(src, t.TempDir(), "f.xlsx", TimestampPrefix)

	assert.Equal(t, Failed, out.Result)
	assert.Equal(t, 1, out.Attempts)
	assert.True(t, errors.Is(out.Err, boom))
	assert.Empty(t, rec.sleeps, "I/O failures are not retried")
	assert.FileExists(t, src)
}

func TestMove_DestinationDirBlockedByFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "f.xlsx")
	writeFile(t, src, "f")
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "_CAD"), "not a directory")

	out := newTestMover(&scriptedProbe{}, &sleepRecorder{}).Move(src, filepath.Join(root, "_CAD", "SCRPA"), "f.xlsx", TimestampPrefix)

	assert.Equal(t, Failed, out.Result)
	var moveErr *MoveError
	require.True(t, errors.As(out.Err, &moveErr))
	assert.Equal(t, IOFailure, moveErr.Type)
	assert.FileExists(t, src)
}

func TestCopyAndDelete(t *testing.T) {
	src := filepath.Join(t.TempDir(), "a.csv")
	writeFile(t, src, "payload")
	dst := filepath.Join(t.TempDir(), "b.csv")
	writeFile(t, dst, "stale")

	require.NoError(t, copyAndDelete(src, dst))

	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary copy must not be left behind")
}

func TestParseOverwritePolicy(t *testing.T) {
	for in, want := range map[string]OverwritePolicy{
		"":                  TimestampPrefix,
		"timestamp-prefix":  TimestampPrefix,
		"overwrite-replace": OverwriteReplace,
		"Overwrite":         OverwriteReplace,
	} {
		got, err := ParseOverwritePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseOverwritePolicy("keep-both")
	assert.Error(t, err)
}
