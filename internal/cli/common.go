package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"exportwatch/internal/config"
	"exportwatch/internal/logging"
	"exportwatch/internal/orchestrator"
	"exportwatch/internal/output"
)

// newOutput writes to the command's streams so tests can capture them.
func newOutput(opts *RootOptions, cmd *cobra.Command) *output.Output {
	cfg := output.DefaultConfig()
	cfg.Verbose = opts.Verbose
	cfg.Writer = cmd.OutOrStdout()
	cfg.ErrWriter = cmd.ErrOrStderr()
	if cfg.Writer != os.Stdout {
		cfg.IsTTY = false
	}
	return output.New(cfg)
}

// loadConfig reads the configuration and reports validation warnings.
func loadConfig(path string, out *output.Output) (*config.Configuration, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	for _, w := range config.ValidateConfig(cfg).Warnings {
		out.Error("warning: %s: %s", w.Field, w.Message)
	}
	return cfg, nil
}

// newLogger builds the process logger from the configuration and flags.
func newLogger(opts *RootOptions, cfg *config.Configuration, cmd *cobra.Command) (*slog.Logger, io.Closer, error) {
	logger, closer, err := logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Verbose: opts.Verbose,
		File:    cfg.LogFile,
		Stderr:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	return logger, closer, nil
}

// service loads the configuration at path and assembles the orchestrator.
// The returned cleanup closes the journal and the log file.
func service(opts *RootOptions, path string, cmd *cobra.Command, out *output.Output) (*orchestrator.Orchestrator, *slog.Logger, func(), error) {
	cfg, err := loadConfig(path, out)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closer, err := newLogger(opts, cfg, cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	o, err := orchestrator.New(cfg, orchestrator.Options{Logger: logger, Version: Version})
	if err != nil {
		closer.Close()
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to start", err)
	}

	cleanup := func() {
		if err := o.Close(); err != nil {
			logger.Error("error closing journal", "error", err)
		}
		closer.Close()
	}
	return o, logger, cleanup, nil
}

// signalContext derives a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// printSummary prints the session summary, with per-state counts in verbose mode.
func printSummary(out *output.Output, summary *orchestrator.RunSummary) {
	if summary == nil {
		return
	}
	out.Info("%s", summary.String())
	if out.IsVerbose() {
		out.Table([]string{"STATE", "COUNT"}, summary.StateRows())
	}
}

// summaryError maps a session summary to the command's exit status.
func summaryError(summary *orchestrator.RunSummary) error {
	if summary != nil && summary.HasFailures() {
		return NewExitError(ExitFailure, "some files could not be moved; see the log for details")
	}
	return nil
}

// planner assembles an orchestrator for read-only commands. It logs nothing
// and never opens the journal.
func planner(path string, out *output.Output) (*orchestrator.Orchestrator, error) {
	cfg, err := loadConfig(path, out)
	if err != nil {
		return nil, err
	}
	o, err := orchestrator.New(cfg, orchestrator.Options{Logger: logging.Discard(), Version: Version})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build rule table", err)
	}
	return o, nil
}
