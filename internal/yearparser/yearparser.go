// Package yearparser derives the four digit year used for year-based
// destination folders from export filenames.
package yearparser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Strategy selects which date group of a filename supplies the year.
type Strategy string

const (
	// None means the rule does not file exports under a year folder.
	None Strategy = ""
	// FilenamePrefix reads the year from a leading YYYY_MM.
	FilenamePrefix Strategy = "filename-prefix"
	// RangeStart reads the year from the first YYYY_MM of YYYY_MM_to_YYYY_MM.
	RangeStart Strategy = "range-start"
	// RangeEnd reads the year from the second YYYY_MM of YYYY_MM_to_YYYY_MM.
	RangeEnd Strategy = "range-end"
)

// ExtractionErrorType represents the type of extraction failure.
type ExtractionErrorType string

const (
	MissingPattern  ExtractionErrorType = "MISSING_PATTERN"
	InvalidMonth    ExtractionErrorType = "INVALID_MONTH"
	UnknownStrategy ExtractionErrorType = "UNKNOWN_STRATEGY"
)

// ExtractionError reports why no year could be derived from a filename.
type ExtractionError struct {
	Type     ExtractionErrorType
	Filename string
	Strategy Strategy
	Reason   string
}

func (e *ExtractionError) Error() string {
	switch e.Type {
	case MissingPattern:
		return fmt.Sprintf("no %s date group in %q", e.Strategy, e.Filename)
	case InvalidMonth:
		return fmt.Sprintf("invalid month in %q: %s", e.Filename, e.Reason)
	case UnknownStrategy:
		return fmt.Sprintf("unknown year strategy %q", string(e.Strategy))
	default:
		return fmt.Sprintf("year extraction failed for %q: %s", e.Filename, e.Reason)
	}
}

var (
	prefixPattern = regexp.MustCompile(`^(\d{4})_(\d{2})(?:_|\.|$)`)
	rangePattern  = regexp.MustCompile(`(?i)(?:^|[^0-9])(\d{4})_(\d{2})_to_(\d{4})_(\d{2})(?:_|\.|$)`)
)

// Extract returns the year selected by strategy as a four digit string.
// It never falls back to the current date: a filename without the expected
// digit groups yields an *ExtractionError.
func Extract(filename string, strategy Strategy) (string, error) {
	switch strategy {
	case FilenamePrefix:
		m := prefixPattern.FindStringSubmatch(filename)
		if m == nil {
			return "", &ExtractionError{Type: MissingPattern, Filename: filename, Strategy: strategy}
		}
		return checked(filename, strategy, m[1], m[2])

	case RangeStart, RangeEnd:
		m := rangePattern.FindStringSubmatch(filename)
		if m == nil {
			return "", &ExtractionError{Type: MissingPattern, Filename: filename, Strategy: strategy}
		}
		// Both halves must be well formed even though only one is used.
		if _, err := checked(filename, strategy, m[1], m[2]); err != nil {
			return "", err
		}
		if _, err := checked(filename, strategy, m[3], m[4]); err != nil {
			return "", err
		}
		if strategy == RangeStart {
			return m[1], nil
		}
		return m[3], nil

	default:
		return "", &ExtractionError{Type: UnknownStrategy, Filename: filename, Strategy: strategy}
	}
}

func checked(filename string, strategy Strategy, year, month string) (string, error) {
	mm, _ := strconv.Atoi(month)
	if mm < 1 || mm > 12 {
		return "", &ExtractionError{
			Type:     InvalidMonth,
			Filename: filename,
			Strategy: strategy,
			Reason:   fmt.Sprintf("month %s is out of range (01-12)", month),
		}
	}
	return year, nil
}

// ParseStrategy converts configuration text to a Strategy. The short
// names "start" and "end_range" are accepted as aliases.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "filename-prefix", "start", "prefix":
		return FilenamePrefix, nil
	case "range-start":
		return RangeStart, nil
	case "range-end", "end_range", "end":
		return RangeEnd, nil
	default:
		return None, &ExtractionError{Type: UnknownStrategy, Strategy: Strategy(s)}
	}
}

// Valid reports whether s is one of the known strategies, including None.
func (s Strategy) Valid() bool {
	switch s {
	case None, FilenamePrefix, RangeStart, RangeEnd:
		return true
	}
	return false
}

func (s Strategy) String() string {
	if s == None {
		return "none"
	}
	return string(s)
}
