// Package mover relocates export files into the destination tree. It waits
// out files that another process still holds open, resolves destination name
// collisions per overwrite policy, and falls back to copy-then-delete when
// source and destination live on different volumes.
package mover

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// OverwritePolicy decides what happens when the destination name is taken.
type OverwritePolicy string

const (
	// TimestampPrefix keeps the existing file and prefixes the new one with a timestamp.
	TimestampPrefix OverwritePolicy = "timestamp-prefix"
	// OverwriteReplace strips "(N)" counters and replaces the existing file.
	OverwriteReplace OverwritePolicy = "overwrite-replace"
)

// ParseOverwritePolicy converts configuration text to an OverwritePolicy.
// An empty string selects TimestampPrefix.
func ParseOverwritePolicy(s string) (OverwritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "timestamp-prefix", "timestamp":
		return TimestampPrefix, nil
	case "overwrite-replace", "overwrite", "replace":
		return OverwriteReplace, nil
	default:
		return "", fmt.Errorf("invalid overwrite policy %q: must be \"timestamp-prefix\" or \"overwrite-replace\"", s)
	}
}

// Result is the terminal state of a move.
type Result string

const (
	Moved   Result = "moved"
	Skipped Result = "skipped"
	Failed  Result = "failed"
)

// MoveErrorType represents the type of move error.
type MoveErrorType string

const (
	// SourceNotFound indicates the source file does not exist.
	SourceNotFound MoveErrorType = "SOURCE_NOT_FOUND"
	// LockedFile indicates the file stayed locked for every attempt.
	LockedFile MoveErrorType = "LOCKED_FILE"
	// IOFailure indicates any other filesystem failure.
	IOFailure MoveErrorType = "IO_ERROR"
)

// ErrLocked is wrapped by every LockedFile MoveError.
var ErrLocked = errors.New("file is locked by another process")

// MoveError represents an error that occurred during file movement.
type MoveError struct {
	Type     MoveErrorType
	Path     string
	Attempts int
	Err      error
}

func (e *MoveError) Error() string {
	if e.Type == LockedFile {
		return fmt.Sprintf("%s: %s (still locked after %d attempts)", e.Type, e.Path, e.Attempts)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Path)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

// Outcome describes what happened to one file.
type Outcome struct {
	SourcePath      string
	DestinationPath string
	Attempts        int
	Result          Result
	Reason          string
	Replaced        bool // an existing destination file was overwritten
	CrossDevice     bool // relocated by copy-then-delete
	Err             error
}

// LockProbe reports whether another process holds a file open exclusively.
type LockProbe interface {
	Locked(path string) (bool, error)
}

// LockProbeFunc adapts a function to the LockProbe interface.
type LockProbeFunc func(path string) (bool, error)

// Locked calls f(path).
func (f LockProbeFunc) Locked(path string) (bool, error) {
	return f(path)
}

// Options configures a Mover. Zero values select the defaults: five
// attempts, two seconds apart, probed with the platform lock probe.
type Options struct {
	Attempts int
	BackOff  BackOffFactory
	Probe    LockProbe
	Sleep    func(time.Duration)
	Now      func() time.Time
	Logger   *slog.Logger
}

// Defaults for the lock retry loop.
const (
	DefaultAttempts = 5
	DefaultInterval = 2 * time.Second
)

// Mover performs lock-aware relocation of files.
type Mover struct {
	attempts int
	newBack  BackOffFactory
	probe    LockProbe
	sleep    func(time.Duration)
	now      func() time.Time
	logger   *slog.Logger

	// placing serialises name resolution and the rename so two concurrent
	// moves into one directory cannot pick the same free name.
	placing sync.Mutex
}

// New creates a Mover from opts.
func New(opts Options) *Mover {
	m := &Mover{
		attempts: opts.Attempts,
		newBack:  opts.BackOff,
		probe:    opts.Probe,
		sleep:    opts.Sleep,
		now:      opts.Now,
		logger:   opts.Logger,
	}
	if m.attempts <= 0 {
		m.attempts = DefaultAttempts
	}
	if m.newBack == nil {
		m.newBack = Fixed(DefaultInterval)
	}
	if m.probe == nil {
		m.probe = FileLockProbe{}
	}
	if m.sleep == nil {
		m.sleep = time.Sleep
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// BackOffFactory creates the wait sequence for one move. Each move gets its
// own BackOff so concurrent moves never share interval state.
type BackOffFactory func() backoff.BackOff

// Fixed waits the same interval between every attempt.
func Fixed(interval time.Duration) BackOffFactory {
	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(interval)
	}
}

// Exponential doubles the wait after each attempt, starting at initial and
// capped at ceiling (initial*16 when zero). Jitter is disabled so the
// wait sequence is predictable in logs.
func Exponential(initial, ceiling time.Duration) BackOffFactory {
	if ceiling <= 0 {
		ceiling = initial * 16
	}
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.RandomizationFactor = 0
		b.Multiplier = 2
		b.MaxInterval = ceiling
		b.Reset()
		return b
	}
}

// Attempts returns the configured number of lock probes per move.
func (m *Mover) Attempts() int {
	return m.attempts
}

// Move relocates source into destDir under a name derived from filename and
// policy. It never returns an error: every failure is described by the
// Outcome, and the source file is left in place unless Result is Moved.
func (m *Mover) Move(source, destDir, filename string, policy OverwritePolicy) Outcome {
	out := Outcome{SourcePath: source}

	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return skippedMissing(out, source, err)
		}
		return failedIO(out, source, err)
	}

	// Concurrent workers may race here; MkdirAll treats an existing
	// directory as success.
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return failedIO(out, destDir, err)
	}

	bo := m.newBack()
	for attempt := 1; ; attempt++ {
		out.Attempts = attempt

		locked, err := m.probe.Locked(source)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return skippedMissing(out, source, err)
			}
			return failedIO(out, source, err)
		}
		if !locked {
			break
		}

		if attempt >= m.attempts {
			m.logger.Error("file still locked, giving up",
				"file", filepath.Base(source), "attempts", attempt)
			out.Result = Failed
			out.Reason = "locked"
			out.Err = &MoveError{Type: LockedFile, Path: source, Attempts: attempt, Err: ErrLocked}
			return out
		}

		wait := bo.NextBackOff()
		if wait < 0 {
			wait = DefaultInterval
		}
		m.logger.Info("file is locked, retrying",
			"file", filepath.Base(source), "attempt", attempt, "max", m.attempts, "wait", wait)
		m.sleep(wait)
	}

	m.placing.Lock()
	defer m.placing.Unlock()

	name, err := ResolveName(destDir, filename, policy, m.now())
	if err != nil {
		return failedIO(out, source, err)
	}
	target := filepath.Join(destDir, name)
	out.DestinationPath = target
	out.Replaced = policy == OverwriteReplace && FileExists(target)

	crossDevice, err := relocate(source, target)
	out.CrossDevice = crossDevice
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !FileExists(source) {
			return skippedMissing(out, source, err)
		}
		return failedIO(out, source, err)
	}

	out.Result = Moved
	return out
}

func skippedMissing(out Outcome, path string, err error) Outcome {
	out.Result = Skipped
	out.Reason = "source missing"
	out.Err = &MoveError{Type: SourceNotFound, Path: path, Err: err}
	return out
}

func failedIO(out Outcome, path string, err error) Outcome {
	out.Result = Failed
	out.Reason = "io error"
	var moveErr *MoveError
	if errors.As(err, &moveErr) {
		out.Err = moveErr
	} else {
		out.Err = &MoveError{Type: IOFailure, Path: path, Err: err}
	}
	return out
}

// relocate renames source to target, replacing any file already at target.
// When the two paths are on different volumes it copies, verifies and only
// then removes the source. The returned bool reports the copy fallback.
func relocate(source, target string) (bool, error) {
	err := os.Rename(source, target)
	if err == nil {
		return false, nil
	}
	if !isCrossDevice(err) {
		return false, err
	}
	return true, copyAndDelete(source, target)
}

// copyAndDelete copies src next to dst under a temporary name, syncs it,
// checks the byte count against the source, renames it over dst and finally
// removes src.
func copyAndDelete(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".exportwatch-*.partial")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	written, err := io.Copy(tmp, in)
	if err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if written != info.Size() {
		cleanup()
		return &MoveError{
			Type: IOFailure,
			Path: src,
			Err:  fmt.Errorf("short copy: wrote %d of %d bytes", written, info.Size()),
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return err
	}

	in.Close()
	if err := os.Remove(src); err != nil {
		return &MoveError{
			Type: IOFailure,
			Path: src,
			Err:  fmt.Errorf("copied to %s but could not remove source: %w", dst, err),
		}
	}
	return nil
}
