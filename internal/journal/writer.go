package journal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned when appending to a closed writer.
var ErrClosed = errors.New("journal is closed")

// Writer appends records to the active journal file and rotates it by size.
// It is safe for concurrent use by the dispatcher's workers.
type Writer struct {
	mu      sync.Mutex
	cfg     Config
	path    string
	file    *os.File
	buf     *bufio.Writer
	size    int64
	session SessionID
	now     func() time.Time
}

// Open creates the journal directory if needed and opens the active file
// for appending.
func Open(cfg Config) (*Writer, error) {
	if cfg.Directory == "" {
		return nil, errors.New("journal directory cannot be empty")
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	w := &Writer{
		cfg:  cfg,
		path: filepath.Join(cfg.Directory, activeName),
		now:  time.Now,
	}
	if err := w.openActive(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) openActive() error {
	file, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat journal: %w", err)
	}
	w.file = file
	w.buf = bufio.NewWriter(file)
	w.size = info.Size()
	return nil
}

// Path returns the active journal file.
func (w *Writer) Path() string {
	return w.path
}

// Session returns the current session id, empty before StartSession.
func (w *Writer) Session() SessionID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// StartSession opens a new session and writes its start record.
func (w *Writer) StartSession(mode, version string) (SessionID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.session = SessionID(uuid.NewString())
	err := w.appendLocked(Record{
		Type:     RecordSessionStart,
		Metadata: map[string]string{"mode": mode, "version": version},
	})
	if err != nil {
		return "", fmt.Errorf("failed to write session start: %w", err)
	}
	return w.session, nil
}

// EndSession writes the end record with the session's counters.
func (w *Writer) EndSession(counts map[string]int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	meta := make(map[string]string, len(counts))
	for k, v := range counts {
		meta[k] = fmt.Sprint(v)
	}
	if err := w.appendLocked(Record{Type: RecordSessionEnd, Metadata: meta}); err != nil {
		return fmt.Errorf("failed to write session end: %w", err)
	}
	return nil
}

// Append writes one record. Timestamp and session are filled when empty.
func (w *Writer) Append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appendLocked(rec)
}

func (w *Writer) appendLocked(rec Record) error {
	if w.file == nil {
		return ErrClosed
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.now().UTC()
	}
	if rec.Session == "" {
		rec.Session = w.session
	}

	data, err := rec.MarshalJSONLine()
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	data = append(data, '\n')

	if _, err := w.buf.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush record: %w", err)
	}
	w.size += int64(len(data))

	if rec.Type != RecordRotation && w.cfg.RotationSize > 0 && w.size >= w.cfg.RotationSize {
		return w.rotateLocked()
	}
	return nil
}

// rotateLocked renames the active file to a timestamped segment, reopens a
// fresh active file and notes the rotation in it.
func (w *Writer) rotateLocked() error {
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	w.file = nil

	segment := w.segmentName()
	if err := os.Rename(w.path, filepath.Join(w.cfg.Directory, segment)); err != nil {
		// keep writing to the same file rather than losing records
		if reopenErr := w.openActive(); reopenErr != nil {
			return errors.Join(err, reopenErr)
		}
		return fmt.Errorf("failed to rotate journal: %w", err)
	}
	if err := w.openActive(); err != nil {
		return err
	}
	return w.appendLocked(Record{
		Type:     RecordRotation,
		Metadata: map[string]string{"previousFile": segment},
	})
}

// segmentName returns a name that sorts chronologically and does not collide
// with an existing segment.
func (w *Writer) segmentName() string {
	now := w.now()
	base := segmentPrefix + now.Format("20060102-150405") + fmt.Sprintf("-%03d", now.Nanosecond()/int(time.Millisecond))
	name := base + segmentSuffix
	for n := 1; ; n++ {
		if _, err := os.Lstat(filepath.Join(w.cfg.Directory, name)); os.IsNotExist(err) {
			return name
		}
		name = fmt.Sprintf("%s.%d%s", base, n, segmentSuffix)
	}
}

// Close flushes and closes the active file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush journal: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return nil
}
