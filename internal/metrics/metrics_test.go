package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordOutcome("MOVED", "E_Ticket", 3, 4*time.Second)
	m.RecordOutcome("MOVED", "E_Ticket", 1, time.Millisecond)
	m.RecordOutcome("NO_MATCH", "", 0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomes.WithLabelValues("MOVED", "E_Ticket")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("NO_MATCH", "")))

	expected := `
# HELP exportwatch_dispatcher_lock_attempts Lock probes consumed per move
# TYPE exportwatch_dispatcher_lock_attempts histogram
exportwatch_dispatcher_lock_attempts_bucket{le="1"} 1
exportwatch_dispatcher_lock_attempts_bucket{le="2"} 1
exportwatch_dispatcher_lock_attempts_bucket{le="3"} 2
exportwatch_dispatcher_lock_attempts_bucket{le="4"} 2
exportwatch_dispatcher_lock_attempts_bucket{le="5"} 2
exportwatch_dispatcher_lock_attempts_bucket{le="8"} 2
exportwatch_dispatcher_lock_attempts_bucket{le="+Inf"} 2
exportwatch_dispatcher_lock_attempts_sum 4
exportwatch_dispatcher_lock_attempts_count 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "exportwatch_dispatcher_lock_attempts"))
}

func TestRecordEventAndReconciled(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordEvent("created", "accepted")
	m.RecordEvent("modified", "debounced")
	m.RecordEvent("modified", "debounced")
	m.RecordReconciled(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("created", "accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("modified", "debounced")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.reconciled))
}

func TestBegin(t *testing.T) {
	m := New(prometheus.NewRegistry())

	end1 := m.Begin()
	end2 := m.Begin()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.inFlight))

	end1()
	end2()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordEvent("created", "accepted")
		m.RecordOutcome("MOVED", "E_Ticket", 1, time.Second)
		m.RecordReconciled(1)
		m.Begin()()
	})
}

func TestServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordOutcome("MOVED", "Monthly_CAD", 1, time.Second)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, reg) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return false
		}
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	assert.Contains(t, body, `exportwatch_dispatcher_outcomes_total{rule="Monthly_CAD",state="MOVED"} 1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
