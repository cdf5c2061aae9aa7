// Package config handles configuration loading and validation for exportwatch.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigErrorType represents the type of configuration error.
type ConfigErrorType string

const (
	FileNotFound    ConfigErrorType = "FILE_NOT_FOUND"
	InvalidSyntax   ConfigErrorType = "INVALID_SYNTAX"
	ValidationError ConfigErrorType = "VALIDATION_ERROR"
)

// ConfigError represents an error that occurred during configuration loading.
type ConfigError struct {
	Type    ConfigErrorType
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	switch e.Type {
	case FileNotFound:
		return fmt.Sprintf("configuration file not found: %s", e.Path)
	case InvalidSyntax:
		return fmt.Sprintf("invalid configuration file %s: %s", e.Path, e.Message)
	case ValidationError:
		return fmt.Sprintf("configuration validation error: %s", e.Message)
	default:
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
}

// RuleSpec describes one routing rule as written in a configuration file.
// Exactly one of Contains or Pattern selects the files the rule applies to.
type RuleSpec struct {
	Name         string   `json:"name" yaml:"name"`
	Contains     string   `json:"contains,omitempty" yaml:"contains,omitempty"`
	Pattern      string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Destination  string   `json:"destination" yaml:"destination"`
	YearStrategy string   `json:"yearStrategy,omitempty" yaml:"yearStrategy,omitempty"`
	Extensions   []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Overwrite    string   `json:"overwrite,omitempty" yaml:"overwrite,omitempty"`
	OutputName   string   `json:"outputName,omitempty" yaml:"outputName,omitempty"`
}

// RetryConfig controls the locked-file retry loop.
type RetryConfig struct {
	Attempts           int     `json:"attempts" yaml:"attempts"`
	IntervalSeconds    float64 `json:"intervalSeconds" yaml:"intervalSeconds"`
	Shape              string  `json:"shape,omitempty" yaml:"shape,omitempty"` // "fixed" or "exponential"
	MaxIntervalSeconds float64 `json:"maxIntervalSeconds,omitempty" yaml:"maxIntervalSeconds,omitempty"`
}

// Retry shapes.
const (
	RetryShapeFixed       = "fixed"
	RetryShapeExponential = "exponential"
)

// JournalConfig holds settings for the outcome journal.
type JournalConfig struct {
	Directory         string `json:"directory" yaml:"directory"`
	RotationSizeBytes int64  `json:"rotationSizeBytes" yaml:"rotationSizeBytes"`
	Disabled          bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Configuration holds all settings for exportwatch.
type Configuration struct {
	MonitoredDirectories []string       `json:"monitoredDirectories" yaml:"monitoredDirectories"`
	DestinationRoot      string         `json:"destinationRoot" yaml:"destinationRoot"`
	Rules                []RuleSpec     `json:"rules,omitempty" yaml:"rules,omitempty"`
	ReplaceDefaultRules  bool           `json:"replaceDefaultRules,omitempty" yaml:"replaceDefaultRules,omitempty"`
	DebounceSeconds      int            `json:"debounceSeconds,omitempty" yaml:"debounceSeconds,omitempty"`
	StableThresholdMs    int            `json:"stableThresholdMs,omitempty" yaml:"stableThresholdMs,omitempty"`
	IgnorePatterns       []string       `json:"ignorePatterns,omitempty" yaml:"ignorePatterns,omitempty"`
	Retry                RetryConfig    `json:"retry" yaml:"retry"`
	Journal              *JournalConfig `json:"journal,omitempty" yaml:"journal,omitempty"`
	LogFile              string         `json:"logFile,omitempty" yaml:"logFile,omitempty"`
	LogLevel             string         `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	MetricsAddr          string         `json:"metricsAddr,omitempty" yaml:"metricsAddr,omitempty"`
}

// Defaults.
const (
	DefaultDebounceSeconds      = 5
	DefaultStableThresholdMs    = 1000
	DefaultRetryAttempts        = 5
	DefaultRetryIntervalSeconds = 2.0
	DefaultRotationSize         = 5 * 1024 * 1024
	DefaultJournalDirectory     = ".exportwatch/journal"
)

// Validate checks that the configuration has all required fields.
func (c *Configuration) Validate() error {
	if len(c.MonitoredDirectories) == 0 {
		return &ConfigError{
			Type:    ValidationError,
			Message: "monitoredDirectories must contain at least one directory",
		}
	}

	for i, dir := range c.MonitoredDirectories {
		if strings.TrimSpace(dir) == "" {
			return &ConfigError{
				Type:    ValidationError,
				Message: fmt.Sprintf("monitoredDirectories[%d] cannot be empty", i),
			}
		}
	}

	if c.DestinationRoot == "" {
		return &ConfigError{
			Type:    ValidationError,
			Message: "destinationRoot cannot be empty",
		}
	}

	if c.ReplaceDefaultRules && len(c.Rules) == 0 {
		return &ConfigError{
			Type:    ValidationError,
			Message: "replaceDefaultRules requires at least one rule",
		}
	}

	for i, rule := range c.Rules {
		if rule.Name == "" {
			return &ConfigError{
				Type:    ValidationError,
				Message: fmt.Sprintf("rules[%d].name cannot be empty", i),
			}
		}
		if (rule.Contains == "") == (rule.Pattern == "") {
			return &ConfigError{
				Type:    ValidationError,
				Message: fmt.Sprintf("rules[%d] must set exactly one of contains or pattern", i),
			}
		}
		if rule.Destination == "" {
			return &ConfigError{
				Type:    ValidationError,
				Message: fmt.Sprintf("rules[%d].destination cannot be empty", i),
			}
		}
	}

	if c.Retry.Attempts < 0 {
		return &ConfigError{
			Type:    ValidationError,
			Message: "retry.attempts cannot be negative",
		}
	}

	return nil
}

// ApplyDefaults fills zero values with the service defaults and expands a
// leading "~" in every configured path.
func (c *Configuration) ApplyDefaults() {
	if c.DebounceSeconds == 0 {
		c.DebounceSeconds = DefaultDebounceSeconds
	}
	if c.StableThresholdMs == 0 {
		c.StableThresholdMs = DefaultStableThresholdMs
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = DefaultRetryAttempts
	}
	if c.Retry.IntervalSeconds == 0 {
		c.Retry.IntervalSeconds = DefaultRetryIntervalSeconds
	}
	if c.Retry.Shape == "" {
		c.Retry.Shape = RetryShapeFixed
	}

	if c.Journal == nil {
		c.Journal = &JournalConfig{}
	}
	if c.Journal.Directory == "" {
		c.Journal.Directory = DefaultJournalDirectory
	}
	if c.Journal.RotationSizeBytes == 0 {
		c.Journal.RotationSizeBytes = DefaultRotationSize
	}

	for i, dir := range c.MonitoredDirectories {
		c.MonitoredDirectories[i] = ExpandHome(dir)
	}
	c.DestinationRoot = ExpandHome(c.DestinationRoot)
	c.Journal.Directory = ExpandHome(c.Journal.Directory)
	c.LogFile = ExpandHome(c.LogFile)
}

// DebounceWindow returns the debounce window as a duration.
func (c *Configuration) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceSeconds) * time.Second
}

// RetryInterval returns the delay between lock probes.
func (c *Configuration) RetryInterval() time.Duration {
	return time.Duration(c.Retry.IntervalSeconds * float64(time.Second))
}

// RetryMaxInterval returns the cap for exponential retry delays, or zero.
func (c *Configuration) RetryMaxInterval() time.Duration {
	return time.Duration(c.Retry.MaxIntervalSeconds * float64(time.Second))
}

// StableThreshold returns how long a file size must hold still before a move.
// A negative stableThresholdMs disables the wait and yields zero.
func (c *Configuration) StableThreshold() time.Duration {
	if c.StableThresholdMs < 0 {
		return 0
	}
	return time.Duration(c.StableThresholdMs) * time.Millisecond
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// Load reads and parses a configuration file from the given path.
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func Load(filePath string) (*Configuration, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{
				Type: FileNotFound,
				Path: filePath,
			}
		}
		return nil, &ConfigError{
			Type:    FileNotFound,
			Path:    filePath,
			Message: err.Error(),
		}
	}

	config, err := Parse(data, formatFor(filePath))
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Type == InvalidSyntax {
			cfgErr.Path = filePath
		}
		return nil, err
	}

	return config, nil
}

// Format identifies the encoding of a configuration document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func formatFor(filePath string) Format {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes, validates and applies defaults to a configuration document.
func Parse(data []byte, format Format) (*Configuration, error) {
	var config Configuration

	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, &ConfigError{
			Type:    InvalidSyntax,
			Message: err.Error(),
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	config.ApplyDefaults()

	return &config, nil
}

// Save serializes and writes a configuration to the given path, using the
// encoding implied by the file extension.
func Save(config *Configuration, filePath string) error {
	var (
		data []byte
		err  error
	)
	if formatFor(filePath) == FormatYAML {
		data, err = yaml.Marshal(config)
	} else {
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return &ConfigError{
			Type:    InvalidSyntax,
			Message: err.Error(),
		}
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return &ConfigError{
			Type:    ValidationError,
			Message: fmt.Sprintf("failed to write configuration file: %s", err.Error()),
		}
	}

	return nil
}
