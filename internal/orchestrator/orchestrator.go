// Package orchestrator assembles the exportwatch service from a configuration
// and drives it in watch or scan mode.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"exportwatch/internal/config"
	"exportwatch/internal/dispatcher"
	"exportwatch/internal/journal"
	"exportwatch/internal/metrics"
	"exportwatch/internal/mover"
	"exportwatch/internal/rules"
	"exportwatch/internal/watcher"
)

// Session modes recorded in the journal.
const (
	ModeWatch = "watch"
	ModeScan  = "scan"
)

// Options carries the collaborators that do not come from the configuration
// file. Zero values select production defaults.
type Options struct {
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Version  string
	Probe    mover.LockProbe
	Sleep    func(time.Duration)
	Now      func() time.Time
}

// Orchestrator owns one configured dispatcher and its journal.
type Orchestrator struct {
	config     *config.Configuration
	rules      *rules.Table
	dispatcher *dispatcher.Dispatcher
	registry   *prometheus.Registry
	logger     *slog.Logger
	version    string

	journal *journal.Writer
}

// New builds the service from cfg. Nothing is created on disk until Scan or
// Watch starts a session, so route planning stays read-only.
func New(cfg *config.Configuration, opts Options) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	table, err := rules.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule table: %w", err)
	}

	backOff := mover.Fixed(cfg.RetryInterval())
	if cfg.Retry.Shape == config.RetryShapeExponential {
		backOff = mover.Exponential(cfg.RetryInterval(), cfg.RetryMaxInterval())
	}
	mv := mover.New(mover.Options{
		Attempts: cfg.Retry.Attempts,
		BackOff:  backOff,
		Probe:    opts.Probe,
		Sleep:    opts.Sleep,
		Now:      opts.Now,
		Logger:   opts.Logger.With("component", "mover"),
	})

	o := &Orchestrator{
		config:   cfg,
		rules:    table,
		registry: opts.Registry,
		logger:   opts.Logger,
		version:  opts.Version,
	}

	var stability *watcher.StabilityChecker
	if cfg.StableThreshold() > 0 {
		stability = watcher.NewStabilityChecker(cfg.StableThreshold())
	}

	d, err := dispatcher.New(dispatcher.Options{
		Roots:           cfg.MonitoredDirectories,
		DestinationRoot: cfg.DestinationRoot,
		Rules:           table,
		Mover:           mv,
		Debouncer:       watcher.NewDebouncer(cfg.DebounceWindow()),
		Filter:          watcher.NewFileFilter(cfg.IgnorePatterns),
		Stability:       stability,
		Journal:         o,
		Metrics:         metrics.New(opts.Registry),
		Logger:          opts.Logger,
		Now:             opts.Now,
	})
	if err != nil {
		return nil, err
	}
	o.dispatcher = d
	return o, nil
}

// NewFromPath loads the configuration at configPath and builds the service.
func NewFromPath(configPath string, opts Options) (*Orchestrator, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return New(cfg, opts)
}

// Config returns the configuration the service was built from.
func (o *Orchestrator) Config() *config.Configuration {
	return o.config
}

// Rules returns the effective rule table.
func (o *Orchestrator) Rules() *rules.Table {
	return o.rules
}

// Registry returns the metrics registry.
func (o *Orchestrator) Registry() *prometheus.Registry {
	return o.registry
}

// Append forwards an outcome record to the journal once a session is open.
func (o *Orchestrator) Append(rec journal.Record) error {
	if o.journal == nil {
		return nil
	}
	return o.journal.Append(rec)
}

// Scan moves every matching file already present in the monitored
// directories, then returns.
func (o *Orchestrator) Scan(ctx context.Context) (*RunSummary, error) {
	if err := o.begin(ModeScan); err != nil {
		return nil, err
	}
	_, err := o.dispatcher.Reconcile(ctx)
	return o.end(), err
}

// Watch reconciles the monitored directories and then handles filesystem
// events until ctx is cancelled. When metricsAddr is configured the
// prometheus endpoint is served for the same lifetime.
func (o *Orchestrator) Watch(ctx context.Context) (*RunSummary, error) {
	if err := o.begin(ModeWatch); err != nil {
		return nil, err
	}

	src, err := watcher.NewFSSource(o.dispatcher.Roots(), o.logger.With("component", "watcher"))
	if err != nil {
		return o.end(), fmt.Errorf("failed to start watcher: %w", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return o.dispatcher.Run(gctx, src)
	})
	if addr := o.config.MetricsAddr; addr != "" {
		g.Go(func() error {
			o.logger.Info("serving metrics", "addr", addr)
			if err := metrics.Serve(gctx, addr, o.registry); err != nil {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
	}

	o.logger.Info("watching", "directories", o.dispatcher.Roots(), "destination", o.config.DestinationRoot)
	err = g.Wait()
	return o.end(), err
}

// begin prepares the monitored directories and opens a journal session.
func (o *Orchestrator) begin(mode string) error {
	for _, dir := range o.dispatcher.Roots() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create monitored directory %s: %w", dir, err)
		}
	}

	jc := o.config.Journal
	if jc == nil || jc.Disabled || o.journal != nil {
		return nil
	}
	w, err := journal.Open(journal.Config{Directory: jc.Directory, RotationSize: jc.RotationSizeBytes})
	if err != nil {
		return err
	}
	session, err := w.StartSession(mode, o.version)
	if err != nil {
		w.Close()
		return err
	}
	o.journal = w
	o.logger.Debug("journal session started", "session", session, "path", w.Path())
	return nil
}

// end closes the journal session and summarises the run.
func (o *Orchestrator) end() *RunSummary {
	snap := o.dispatcher.Summary()
	if o.journal != nil {
		if err := o.journal.EndSession(snap.StringCounts()); err != nil {
			o.logger.Warn("cannot write session end", "error", err)
		}
	}
	return GenerateSummary(snap)
}

// Close releases the journal.
func (o *Orchestrator) Close() error {
	if o.journal == nil {
		return nil
	}
	err := o.journal.Close()
	o.journal = nil
	return err
}
