// Package config handles configuration loading and validation for exportwatch.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"exportwatch/internal/mover"
	"exportwatch/internal/yearparser"
)

// ValidationSeverity represents the severity of a validation issue.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ConfigValidationError represents a single validation issue.
type ConfigValidationError struct {
	Field    string             // Config field with issue (e.g., "monitoredDirectories[0]")
	Message  string             // Human-readable description
	Severity ValidationSeverity // "error" or "warning"
}

// ValidationResult contains all validation findings.
type ValidationResult struct {
	Errors   []ConfigValidationError
	Warnings []ConfigValidationError
	Valid    bool // True if no errors (warnings OK)
}

// ValidateConfig checks the configuration for errors and returns all findings.
func ValidateConfig(cfg *Configuration) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ConfigValidationError{},
		Warnings: []ConfigValidationError{},
		Valid:    true,
	}

	var all []ConfigValidationError
	all = append(all, ValidatePaths(cfg)...)
	all = append(all, ValidateRules(cfg)...)
	all = append(all, ValidatePolicies(cfg)...)

	for _, err := range all {
		if err.Severity == SeverityError {
			result.Errors = append(result.Errors, err)
		} else {
			result.Warnings = append(result.Warnings, err)
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// ValidatePaths checks the monitored directories and the destination root.
// A missing monitored directory is only a warning: the watcher creates it.
func ValidatePaths(cfg *Configuration) []ConfigValidationError {
	var errors []ConfigValidationError

	for i, dir := range cfg.MonitoredDirectories {
		field := formatField("monitoredDirectories", i)
		info, err := os.Stat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				errors = append(errors, ConfigValidationError{
					Field:    field,
					Message:  "directory does not exist and will be created: " + dir,
					Severity: SeverityWarning,
				})
			} else {
				errors = append(errors, ConfigValidationError{
					Field:    field,
					Message:  "error accessing directory: " + err.Error(),
					Severity: SeverityError,
				})
			}
			continue
		}
		if !info.IsDir() {
			errors = append(errors, ConfigValidationError{
				Field:    field,
				Message:  "path is not a directory: " + dir,
				Severity: SeverityError,
			})
		}
		if cfg.DestinationRoot != "" && directoriesOverlap(dir, cfg.DestinationRoot) {
			errors = append(errors, ConfigValidationError{
				Field:    field,
				Message:  "monitored directory overlaps destinationRoot: " + dir,
				Severity: SeverityWarning,
			})
		}
	}

	root := cfg.DestinationRoot
	info, err := os.Stat(root)
	switch {
	case err == nil && !info.IsDir():
		errors = append(errors, ConfigValidationError{
			Field:    "destinationRoot",
			Message:  "path exists but is not a directory: " + root,
			Severity: SeverityError,
		})
	case err != nil && !os.IsNotExist(err):
		errors = append(errors, ConfigValidationError{
			Field:    "destinationRoot",
			Message:  "error accessing directory: " + err.Error(),
			Severity: SeverityError,
		})
	case err != nil:
		parent := nearestExistingParent(root)
		if parent == "" || !isDirectoryWritable(parent) {
			errors = append(errors, ConfigValidationError{
				Field:    "destinationRoot",
				Message:  "destination root cannot be created under: " + filepath.Dir(root),
				Severity: SeverityError,
			})
		}
	}

	return errors
}

// ValidateRules checks configured rules for duplicate names, unknown year
// strategies, unknown overwrite policies and patterns that do not compile.
func ValidateRules(cfg *Configuration) []ConfigValidationError {
	var errors []ConfigValidationError

	names := make(map[string]int)
	for i, rule := range cfg.Rules {
		field := formatField("rules", i)

		lower := strings.ToLower(rule.Name)
		if first, exists := names[lower]; exists {
			errors = append(errors, ConfigValidationError{
				Field:    field + ".name",
				Message:  "duplicate rule name (case-insensitive): \"" + rule.Name + "\" conflicts with rule at index " + strconv.Itoa(first),
				Severity: SeverityError,
			})
		} else {
			names[lower] = i
		}

		if rule.Pattern != "" {
			if _, err := regexp.Compile(rule.Pattern); err != nil {
				errors = append(errors, ConfigValidationError{
					Field:    field + ".pattern",
					Message:  "pattern does not compile: " + err.Error(),
					Severity: SeverityError,
				})
			}
		}

		if _, err := yearparser.ParseStrategy(rule.YearStrategy); err != nil {
			errors = append(errors, ConfigValidationError{
				Field:    field + ".yearStrategy",
				Message:  err.Error(),
				Severity: SeverityError,
			})
		}

		if _, err := mover.ParseOverwritePolicy(rule.Overwrite); err != nil {
			errors = append(errors, ConfigValidationError{
				Field:    field + ".overwrite",
				Message:  err.Error(),
				Severity: SeverityError,
			})
		}

		if filepath.IsAbs(rule.Destination) || strings.HasPrefix(filepath.Clean(filepath.FromSlash(rule.Destination)), "..") {
			errors = append(errors, ConfigValidationError{
				Field:    field + ".destination",
				Message:  "destination must be relative to destinationRoot: " + rule.Destination,
				Severity: SeverityError,
			})
		}

		if len(rule.Extensions) == 0 {
			errors = append(errors, ConfigValidationError{
				Field:    field + ".extensions",
				Message:  "rule accepts every extension",
				Severity: SeverityWarning,
			})
		}
	}

	return errors
}

// ValidatePolicies checks retry and logging values.
func ValidatePolicies(cfg *Configuration) []ConfigValidationError {
	var errors []ConfigValidationError

	switch cfg.Retry.Shape {
	case "", RetryShapeFixed, RetryShapeExponential:
	default:
		errors = append(errors, ConfigValidationError{
			Field:    "retry.shape",
			Message:  "invalid retry shape: \"" + cfg.Retry.Shape + "\". Must be \"fixed\" or \"exponential\"",
			Severity: SeverityError,
		})
	}

	if cfg.Retry.IntervalSeconds < 0 {
		errors = append(errors, ConfigValidationError{
			Field:    "retry.intervalSeconds",
			Message:  "retry.intervalSeconds cannot be negative",
			Severity: SeverityError,
		})
	}

	if cfg.DebounceSeconds < 0 {
		errors = append(errors, ConfigValidationError{
			Field:    "debounceSeconds",
			Message:  "debounceSeconds cannot be negative",
			Severity: SeverityError,
		})
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, ConfigValidationError{
			Field:    "logLevel",
			Message:  "invalid log level: \"" + cfg.LogLevel + "\"",
			Severity: SeverityError,
		})
	}

	return errors
}

// formatField creates a field reference string for validation errors.
func formatField(name string, index int) string {
	return name + "[" + strconv.Itoa(index) + "]"
}

// nearestExistingParent walks up from path until it finds a directory that exists.
func nearestExistingParent(path string) string {
	dir := filepath.Dir(filepath.Clean(path))
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// isDirectoryWritable checks if a directory is writable by attempting to create a temp file.
func isDirectoryWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".exportwatch_write_test")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}

// directoriesOverlap checks if two directories overlap (one is parent/ancestor of the other).
func directoriesOverlap(dir1, dir2 string) bool {
	clean1 := filepath.Clean(dir1)
	clean2 := filepath.Clean(dir2)

	if clean1 == clean2 {
		return true
	}
	if strings.HasPrefix(clean2, clean1+string(filepath.Separator)) {
		return true
	}
	return strings.HasPrefix(clean1, clean2+string(filepath.Separator))
}
