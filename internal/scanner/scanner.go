// Package scanner lists the files already sitting in a monitored root so the
// dispatcher can reconcile them at startup.
package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ScanErrorType represents the type of scanning error.
type ScanErrorType string

const (
	// DirectoryNotFound indicates the root does not exist.
	DirectoryNotFound ScanErrorType = "DIRECTORY_NOT_FOUND"
	// NotADirectory indicates the root exists but is a file.
	NotADirectory ScanErrorType = "NOT_A_DIRECTORY"
	// PermissionDenied indicates insufficient permissions to read the root.
	PermissionDenied ScanErrorType = "PERMISSION_DENIED"
)

// ScanError represents an error that occurred while listing a root.
type ScanError struct {
	Type ScanErrorType
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return string(e.Type) + ": " + e.Path
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// SymlinkPolicy decides what happens to symlinked entries inside a root.
type SymlinkPolicy string

const (
	SymlinkSkip   SymlinkPolicy = "skip"
	SymlinkFollow SymlinkPolicy = "follow"
)

// Options configures a listing.
type Options struct {
	Symlinks SymlinkPolicy
	// Ignore, when set, drops entries whose full path it returns true for.
	Ignore func(path string) bool
}

// FileEntry represents a regular file found in a root.
type FileEntry struct {
	Name     string
	FullPath string // absolute
	Size     int64
	ModTime  time.Time
}

// List returns the regular files directly inside root, sorted by name.
// Subdirectories are not descended into, matching the non-recursive watch.
func List(root string, opts Options) ([]FileEntry, error) {
	if opts.Symlinks == "" {
		opts.Symlinks = SymlinkSkip
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, classify(root, err)
	}
	if !info.IsDir() {
		return nil, &ScanError{Type: NotADirectory, Path: root, Err: errors.New("path is not a directory")}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, classify(root, err)
	}

	files := make([]FileEntry, 0, len(entries))
	for _, entry := range entries {
		full := filepath.Join(abs, entry.Name())
		if opts.Ignore != nil && opts.Ignore(full) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue // removed since ReadDir
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if opts.Symlinks != SymlinkFollow {
				continue
			}
			if info, err = os.Stat(full); err != nil {
				continue // broken link
			}
		}
		if !info.Mode().IsRegular() {
			continue
		}

		files = append(files, FileEntry{
			Name:     entry.Name(),
			FullPath: full,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	return files, nil
}

func classify(path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &ScanError{Type: DirectoryNotFound, Path: path, Err: err}
	case errors.Is(err, os.ErrPermission):
		return &ScanError{Type: PermissionDenied, Path: path, Err: err}
	default:
		return err
	}
}
