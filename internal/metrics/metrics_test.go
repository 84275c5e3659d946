package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("forkcast", reg)

	m.IncPoll(0.002)
	m.IncPoll(0.001)
	m.IncFired("lunch")
	m.IncLedgerReset("midnight")
	m.IncDispatchFailure("sound")
	m.IncSync("dropped")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Polls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fired.WithLabelValues("lunch")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Fired.WithLabelValues("dinner")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerResets.WithLabelValues("midnight")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchFailures.WithLabelValues("sound")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRequests.WithLabelValues("dropped")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "forkcast_reminders_polls_total")
	assert.Contains(t, names, "forkcast_reminders_poll_duration_seconds")
}

func TestNewNop_DoesNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNop()
		NewNop()
	})
}
