package watcher

import (
	"path/filepath"
	"strings"
)

// DefaultIgnorePatterns returns glob patterns for files that are still being
// written or that belong to an editor rather than an export.
func DefaultIgnorePatterns() []string {
	return []string{
		"*.tmp",
		"*.part",
		"*.download",
		"*.crdownload", // Chrome partial downloads
		"*.partial",    // includes the mover's own copy staging files
		".~*",          // LibreOffice lock files
		"~$*",          // Office owner files
	}
}

// FileFilter decides which paths the dispatcher never routes.
type FileFilter struct {
	patterns []string
}

// NewFileFilter creates a filter. Nil patterns select DefaultIgnorePatterns;
// an empty, non-nil slice ignores nothing.
func NewFileFilter(patterns []string) *FileFilter {
	if patterns == nil {
		patterns = DefaultIgnorePatterns()
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &FileFilter{patterns: lowered}
}

// ShouldIgnore matches the base name of path against every pattern,
// ignoring case. Hidden files are always ignored.
func (f *FileFilter) ShouldIgnore(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasPrefix(name, ".") && name != "." {
		return true
	}
	for _, pattern := range f.patterns {
		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the filter's patterns.
func (f *FileFilter) Patterns() []string {
	out := make([]string, len(f.patterns))
	copy(out, f.patterns)
	return out
}
