package mover

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the prefix format used for collision-avoiding names.
const TimestampLayout = "2006_01_02_15_04_05"

// counterPattern matches a trailing "(N)" or " (N)" before the extension,
// as appended by browsers to repeated downloads.
var counterPattern = regexp.MustCompile(`^(.+?)\s*\(\d+\)$`)

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// StripCounter removes trailing parenthetical counters from a filename.
//
// Examples:
//   - "report(1).csv" -> "report.csv"
//   - "report (02).csv" -> "report.csv"
//   - "report(1)(2).csv" -> "report.csv"
//   - "(1).csv" -> "(1).csv"
func StripCounter(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	for {
		m := counterPattern.FindStringSubmatch(base)
		if m == nil {
			break
		}
		base = m[1]
	}
	return base + ext
}

// TimestampedName prefixes filename with the given time in TimestampLayout.
func TimestampedName(filename string, at time.Time) string {
	return at.Format(TimestampLayout) + "_" + filename
}

// resolveTimestampPrefix returns filename unchanged when nothing occupies it
// in destDir, otherwise a timestamp-prefixed name. Two collisions within the
// same second are separated with a numeric suffix.
func resolveTimestampPrefix(destDir, filename string, at time.Time) string {
	if !FileExists(filepath.Join(destDir, filename)) {
		return filename
	}

	stamped := TimestampedName(filename, at)
	if !FileExists(filepath.Join(destDir, stamped)) {
		return stamped
	}

	ext := filepath.Ext(stamped)
	base := strings.TrimSuffix(stamped, ext)
	for n := 2; ; n++ {
		candidate := base + "_" + strconv.Itoa(n) + ext
		if !FileExists(filepath.Join(destDir, candidate)) {
			return candidate
		}
	}
}

// ResolveName returns the destination filename for policy without touching
// the filesystem beyond existence checks.
func ResolveName(destDir, filename string, policy OverwritePolicy, at time.Time) (string, error) {
	switch policy {
	case TimestampPrefix:
		return resolveTimestampPrefix(destDir, filename, at), nil
	case OverwriteReplace:
		return StripCounter(filename), nil
	default:
		return "", fmt.Errorf("unknown overwrite policy %q", string(policy))
	}
}
