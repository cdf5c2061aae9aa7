// Package metrics exposes Prometheus instrumentation for the dispatcher.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "exportwatch"
	subsystem = "dispatcher"
)

// Metrics holds the dispatcher's collectors. A nil *Metrics records nothing,
// so callers never need to check whether instrumentation is enabled.
type Metrics struct {
	events     *prometheus.CounterVec
	outcomes   *prometheus.CounterVec
	attempts   prometheus.Histogram
	moveTime   *prometheus.HistogramVec
	inFlight   prometheus.Gauge
	reconciled prometheus.Counter
}

// New registers the collectors with reg. Passing prometheus.DefaultRegisterer
// exposes them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Labels: kind (created, modified), decision (accepted, debounced, ignored)
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_total",
			Help:      "Filesystem events received by kind and debounce decision",
		}, []string{"kind", "decision"}),

		// Labels: state (terminal per-file state), rule (matched rule, empty on NO_MATCH)
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outcomes_total",
			Help:      "Routing outcomes by terminal state and rule",
		}, []string{"state", "rule"}),

		attempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lock_attempts",
			Help:      "Lock probes consumed per move",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}),

		moveTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "move_duration_seconds",
			Help:      "Time from accepted event to terminal state, including lock retries",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"rule"}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "in_flight",
			Help:      "Files currently being routed",
		}),

		reconciled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconciled_files_total",
			Help:      "Files found by startup reconciliation",
		}),
	}
}

// RecordEvent counts an incoming event and what the debounce filter did with it.
func (m *Metrics) RecordEvent(kind, decision string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind, decision).Inc()
}

// RecordOutcome counts a terminal state. Attempts are observed only when the
// mover ran, which is signalled by attempts > 0.
func (m *Metrics) RecordOutcome(state, rule string, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(state, rule).Inc()
	if attempts > 0 {
		m.attempts.Observe(float64(attempts))
		m.moveTime.WithLabelValues(rule).Observe(elapsed.Seconds())
	}
}

// RecordReconciled counts files discovered by a reconciliation pass.
func (m *Metrics) RecordReconciled(n int) {
	if m == nil {
		return
	}
	m.reconciled.Add(float64(n))
}

// Begin marks a file as in flight and returns the function that ends it.
func (m *Metrics) Begin() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// Serve exposes gatherer on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
