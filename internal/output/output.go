// Package output formats what the CLI prints: plain lines, aligned tables,
// and an in-place progress line when stdout is a terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"

	"golang.org/x/term"
)

// Config holds output configuration.
type Config struct {
	Verbose   bool
	Writer    io.Writer // default os.Stdout
	ErrWriter io.Writer // default os.Stderr
	IsTTY     bool
}

// DefaultConfig returns a Config writing to the standard streams, with TTY
// detection on stdout.
func DefaultConfig() Config {
	return Config{
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		IsTTY:     term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Output writes CLI output. Methods are safe for concurrent use.
type Output struct {
	config Config

	mu       sync.Mutex
	progress bool
	total    int
	width    int
}

// New creates an Output, filling nil writers with the standard streams.
func New(config Config) *Output {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.ErrWriter == nil {
		config.ErrWriter = os.Stderr
	}
	return &Output{config: config}
}

// Info prints a line to the main writer.
func (o *Output) Info(format string, args ...any) {
	o.line(o.config.Writer, format, args...)
}

// Verbose prints a line only in verbose mode.
func (o *Output) Verbose(format string, args ...any) {
	if o.config.Verbose {
		o.line(o.config.Writer, format, args...)
	}
}

// Error prints a line to the error writer.
func (o *Output) Error(format string, args ...any) {
	o.line(o.config.ErrWriter, format, args...)
}

func (o *Output) line(w io.Writer, format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clearLocked()
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(w, msg)
}

// Table prints rows aligned under headers.
func (o *Output) Table(headers []string, rows [][]string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clearLocked()

	tw := tabwriter.NewWriter(o.config.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// StartProgress begins an in-place progress line over total items. It is a
// no-op when stdout is not a terminal or verbose output is on.
func (o *Output) StartProgress(total int) {
	if !o.progressAllowed() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = true
	o.total = total
	o.width = 0
}

// UpdateProgress rewrites the progress line.
func (o *Output) UpdateProgress(current int, label string) {
	if !o.progressAllowed() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.progress {
		return
	}
	if label == "" {
		label = "Processing"
	}
	msg := fmt.Sprintf("%s %d/%d...", label, current, o.total)
	fmt.Fprint(o.config.Writer, "\r"+msg)
	if len(msg) > o.width {
		o.width = len(msg)
	}
}

// EndProgress clears the progress line.
func (o *Output) EndProgress() {
	if !o.progressAllowed() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clearLocked()
	o.progress = false
}

func (o *Output) progressAllowed() bool {
	return o.config.IsTTY && !o.config.Verbose
}

func (o *Output) clearLocked() {
	if o.progress && o.config.IsTTY && o.width > 0 {
		fmt.Fprint(o.config.Writer, "\r"+strings.Repeat(" ", o.width)+"\r")
		o.width = 0
	}
}

// IsVerbose returns whether verbose mode is enabled.
func (o *Output) IsVerbose() bool {
	return o.config.Verbose
}

// IsTTY returns whether the output is a terminal.
func (o *Output) IsTTY() bool {
	return o.config.IsTTY
}
