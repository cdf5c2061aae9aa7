// Package dispatcher drives the routing pipeline: it debounces events, matches
// files against the rule table, derives the year folder, waits for the file to
// settle, and hands it to the mover. Every terminal state is logged, journaled
// and counted; none of them stops the dispatcher.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"exportwatch/internal/journal"
	"exportwatch/internal/metrics"
	"exportwatch/internal/mover"
	"exportwatch/internal/rules"
	"exportwatch/internal/watcher"
	"exportwatch/internal/yearparser"
)

// State is the terminal state of one event.
type State string

const (
	// Debounced and Ignored events never enter the pipeline and are not journaled.
	StateDebounced State = "DEBOUNCED"
	StateIgnored   State = "IGNORED"

	StateNoMatch     State = "NO_MATCH"
	StateExtractFail State = "EXTRACT_FAIL"
	StateMoved       State = "MOVED"
	StateLockFailed  State = "LOCK_FAILED"
	StateIOFailed    State = "IO_FAILED"
	StateSkipped     State = "SKIPPED"
)

// Journaled reports whether outcomes in this state are written to the journal.
func (s State) Journaled() bool {
	return s != StateDebounced && s != StateIgnored
}

// Failed reports whether the state is a failure that left the file in place.
func (s State) Failed() bool {
	return s == StateExtractFail || s == StateLockFailed || s == StateIOFailed
}

// Outcome describes what happened to one event.
type Outcome struct {
	Event           watcher.Event
	State           State
	Rule            string
	Year            string
	DestinationPath string
	Attempts        int
	Replaced        bool
	Reason          string
	Err             error
	Elapsed         time.Duration
}

// Mover relocates a file. *mover.Mover satisfies it.
type Mover interface {
	Move(source, destDir, filename string, policy mover.OverwritePolicy) mover.Outcome
}

// Recorder stores outcome records. *journal.Writer satisfies it.
type Recorder interface {
	Append(rec journal.Record) error
}

// Options configures a Dispatcher. Rules, Mover and DestinationRoot are required.
type Options struct {
	Roots           []string
	DestinationRoot string
	Rules           *rules.Table
	Mover           Mover
	Debouncer       *watcher.Debouncer        // default: 5s window
	Filter          *watcher.FileFilter       // default: watcher.DefaultIgnorePatterns
	Stability       *watcher.StabilityChecker // nil disables the wait
	Journal         Recorder
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
	Now             func() time.Time
}

// Dispatcher routes events for a set of monitored roots.
type Dispatcher struct {
	roots     []string
	destRoot  string
	rules     *rules.Table
	mover     Mover
	debouncer *watcher.Debouncer
	filter    *watcher.FileFilter
	stability *watcher.StabilityChecker
	journal   Recorder
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
	counts   map[State]int
	started  time.Time
}

// New validates opts and returns a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	if opts.Rules == nil {
		return nil, errors.New("dispatcher: rule table is required")
	}
	if opts.Mover == nil {
		return nil, errors.New("dispatcher: mover is required")
	}
	if opts.DestinationRoot == "" {
		return nil, errors.New("dispatcher: destination root is required")
	}
	if opts.Debouncer == nil {
		opts.Debouncer = watcher.NewDebouncer(watcher.DefaultDebounceWindow)
	}
	if opts.Filter == nil {
		opts.Filter = watcher.NewFileFilter(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	roots := make([]string, 0, len(opts.Roots))
	for _, r := range opts.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("dispatcher: resolve root %s: %w", r, err)
		}
		roots = append(roots, abs)
	}

	return &Dispatcher{
		roots:     roots,
		destRoot:  opts.DestinationRoot,
		rules:     opts.Rules,
		mover:     opts.Mover,
		debouncer: opts.Debouncer,
		filter:    opts.Filter,
		stability: opts.Stability,
		journal:   opts.Journal,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With("component", "dispatcher"),
		now:       opts.Now,
		inFlight:  make(map[string]struct{}),
		counts:    make(map[State]int),
		started:   opts.Now(),
	}, nil
}

// Roots returns the absolute monitored roots.
func (d *Dispatcher) Roots() []string {
	out := make([]string, len(d.roots))
	copy(out, d.roots)
	return out
}

// Filter returns the ignore filter applied to events and reconciliation.
func (d *Dispatcher) Filter() *watcher.FileFilter {
	return d.filter
}

// Handle runs one event through the pipeline and returns its outcome.
func (d *Dispatcher) Handle(ctx context.Context, ev watcher.Event) Outcome {
	ev, out, ok := d.admit(ev)
	if !ok {
		return out
	}
	return d.process(ctx, ev)
}

// admit applies the ignore filter, the debounce window and the in-flight
// claim. When it returns true the caller owns the claim on ev.Path and must
// hand ev to process.
func (d *Dispatcher) admit(ev watcher.Event) (watcher.Event, Outcome, bool) {
	if ev.ObservedAt.IsZero() {
		ev.ObservedAt = d.now()
	}

	if d.filter.ShouldIgnore(ev.Path) {
		d.metrics.RecordEvent(string(ev.Kind), "ignored")
		return ev, d.finish(Outcome{Event: ev, State: StateIgnored, Reason: "ignore pattern"}), false
	}
	if !d.debouncer.Accept(ev.Path, ev.ObservedAt) {
		d.metrics.RecordEvent(string(ev.Kind), "debounced")
		return ev, d.finish(Outcome{Event: ev, State: StateDebounced, Reason: "within debounce window"}), false
	}
	d.metrics.RecordEvent(string(ev.Kind), "accepted")

	if !d.claim(ev.Path) {
		return ev, d.finish(Outcome{Event: ev, State: StateDebounced, Reason: "already in flight"}), false
	}
	return ev, Outcome{}, true
}

// process routes an admitted event and releases its claim.
func (d *Dispatcher) process(ctx context.Context, ev watcher.Event) Outcome {
	defer d.release(ev.Path)
	defer d.metrics.Begin()()

	start := d.now()
	out := d.route(ctx, ev)
	out.Elapsed = d.now().Sub(start)

	if out.State == StateLockFailed {
		// the next notification for this file should try again right away
		d.debouncer.Forget(ev.Path)
	}
	return d.finish(out)
}

func (d *Dispatcher) route(ctx context.Context, ev watcher.Event) Outcome {
	plan := d.Plan(ev.Path)
	out := Outcome{
		Event:  ev,
		State:  plan.State,
		Rule:   plan.Rule.Name,
		Year:   plan.Year,
		Reason: plan.Reason,
		Err:    plan.Err,
	}
	if plan.State != stateReady {
		return out
	}

	if d.stability.Enabled() {
		if err := d.stability.Wait(ctx, ev.Path); err != nil {
			return stabilityOutcome(out, err)
		}
	}

	moved := d.mover.Move(ev.Path, plan.DestinationDir, plan.Filename, plan.Rule.Overwrite)
	out.DestinationPath = moved.DestinationPath
	out.Attempts = moved.Attempts
	out.Replaced = moved.Replaced
	out.Reason = moved.Reason
	out.Err = moved.Err

	switch moved.Result {
	case mover.Moved:
		out.State = StateMoved
	case mover.Skipped:
		out.State = StateSkipped
	default:
		var moveErr *mover.MoveError
		if errors.As(moved.Err, &moveErr) && moveErr.Type == mover.LockedFile {
			out.State = StateLockFailed
		} else {
			out.State = StateIOFailed
		}
	}
	return out
}

func stabilityOutcome(out Outcome, err error) Outcome {
	out.Err = err
	switch {
	case errors.Is(err, watcher.ErrFileNotFound):
		out.State = StateSkipped
		out.Reason = "source missing"
		out.Err = nil
	case errors.Is(err, watcher.ErrFileUnstable):
		out.State = StateLockFailed
		out.Reason = "still being written"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out.State = StateSkipped
		out.Reason = "cancelled"
	default:
		out.State = StateIOFailed
		out.Reason = "stat failed"
	}
	return out
}

// stateReady marks a plan that can be handed to the mover. It never leaves
// this package as an outcome state.
const stateReady State = "READY"

// Plan is the routing decision for a filename, computed without touching
// the filesystem.
type Plan struct {
	Path           string
	State          State // NO_MATCH, EXTRACT_FAIL or ready to move
	Rule           rules.Rule
	Year           string
	DestinationDir string
	Filename       string
	Reason         string
	Err            error
}

// Ready reports whether the plan leads to a move.
func (p Plan) Ready() bool {
	return p.State == stateReady
}

// Plan matches path against the rule table and derives its destination.
func (d *Dispatcher) Plan(path string) Plan {
	name := filepath.Base(path)
	plan := Plan{Path: path}

	match := d.rules.Match(name)
	if !match.Matched {
		plan.State = StateNoMatch
		plan.Reason = "no rule matches"
		return plan
	}
	plan.Rule = match.Rule

	if match.Rule.YearBased() {
		year, err := yearparser.Extract(name, match.Rule.YearStrategy)
		if err != nil {
			plan.State = StateExtractFail
			plan.Reason = "year extraction failed"
			plan.Err = err
			return plan
		}
		plan.Year = year
	}

	plan.State = stateReady
	plan.DestinationDir = match.Rule.DestinationDir(d.destRoot, plan.Year)
	plan.Filename = match.Rule.TargetName(name, d.now())
	return plan
}

func (d *Dispatcher) claim(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inFlight[path]; busy {
		return false
	}
	d.inFlight[path] = struct{}{}
	return true
}

func (d *Dispatcher) release(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, path)
}

// finish counts, logs, journals and meters an outcome.
func (d *Dispatcher) finish(out Outcome) Outcome {
	d.mu.Lock()
	d.counts[out.State]++
	d.mu.Unlock()

	d.log(out)

	if !out.State.Journaled() {
		return out
	}
	d.metrics.RecordOutcome(string(out.State), out.Rule, out.Attempts, out.Elapsed)

	if d.journal != nil {
		rec := journal.Record{
			Type:            journal.RecordOutcome,
			State:           string(out.State),
			Rule:            out.Rule,
			SourcePath:      out.Event.Path,
			DestinationPath: out.DestinationPath,
			Attempts:        out.Attempts,
			Reason:          out.Reason,
		}
		if out.Year != "" {
			rec.Metadata = map[string]string{"year": out.Year}
		}
		if out.Err != nil {
			rec.Error = out.Err.Error()
		}
		if err := d.journal.Append(rec); err != nil {
			d.logger.Warn("journal append failed", "source", out.Event.Path, "error", err)
		}
	}
	return out
}

func (d *Dispatcher) log(out Outcome) {
	attrs := []any{"source", out.Event.Path, "state", string(out.State)}
	if out.Rule != "" {
		attrs = append(attrs, "rule", out.Rule)
	}
	if out.Attempts > 0 {
		attrs = append(attrs, "attempts", out.Attempts)
	}
	if out.Reason != "" {
		attrs = append(attrs, "reason", out.Reason)
	}
	if out.Err != nil {
		attrs = append(attrs, "error", out.Err)
	}

	switch out.State {
	case StateMoved:
		attrs = append(attrs, "destination", out.DestinationPath)
		if out.Replaced {
			attrs = append(attrs, "replaced", true)
		}
		d.logger.Info("file moved", attrs...)
	case StateSkipped:
		d.logger.Info("file skipped", attrs...)
	case StateExtractFail:
		d.logger.Warn("year extraction failed, file left in place", attrs...)
	case StateLockFailed:
		d.logger.Error("file still locked, will retry on next event", attrs...)
	case StateIOFailed:
		d.logger.Error("move failed, file left in place", attrs...)
	default:
		d.logger.Debug("event not routed", attrs...)
	}
}

// Summary holds per-state counters since the dispatcher was created.
type Summary struct {
	Counts   map[State]int
	Duration time.Duration
}

// Moved returns the number of files moved.
func (s Summary) Moved() int { return s.Counts[StateMoved] }

// Failed returns the number of files left in place by a failure.
func (s Summary) Failed() int {
	return s.Counts[StateExtractFail] + s.Counts[StateLockFailed] + s.Counts[StateIOFailed]
}

// Ignored returns events that matched no rule or an ignore pattern.
func (s Summary) Ignored() int {
	return s.Counts[StateNoMatch] + s.Counts[StateIgnored]
}

// Skipped returns events collapsed by the debounce window or whose file had
// already gone.
func (s Summary) Skipped() int {
	return s.Counts[StateSkipped] + s.Counts[StateDebounced]
}

// StringCounts returns the counters keyed by state name, for the journal.
func (s Summary) StringCounts() map[string]int {
	out := make(map[string]int, len(s.Counts))
	for k, v := range s.Counts {
		out[string(k)] = v
	}
	return out
}

// Summary returns a snapshot of the counters.
func (d *Dispatcher) Summary() Summary {
	d.mu.Lock()
	defer d.mu.Unlock()

	counts := make(map[State]int, len(d.counts))
	for k, v := range d.counts {
		counts[k] = v
	}
	return Summary{Counts: counts, Duration: d.now().Sub(d.started)}
}
