package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTransactionsObserve(t *testing.T) {
	m := Transactions()
	committed := testutil.ToFloat64(m.TxVec().WithLabelValues("metrics.test", "committed"))
	reverted := testutil.ToFloat64(m.TxVec().WithLabelValues("metrics.test", "reverted"))
	dropped := testutil.ToFloat64(m.RevertedEventsVec().WithLabelValues("metrics.test"))

	m.Observe("metrics.test", time.Millisecond, nil, 0)
	m.Observe("metrics.test", time.Millisecond, errors.New("boom"), 3)

	require.Equal(t, committed+1, testutil.ToFloat64(m.TxVec().WithLabelValues("metrics.test", "committed")))
	require.Equal(t, reverted+1, testutil.ToFloat64(m.TxVec().WithLabelValues("metrics.test", "reverted")))
	require.Equal(t, dropped+3, testutil.ToFloat64(m.RevertedEventsVec().WithLabelValues("metrics.test")))
}

func TestEventsRecordEvent(t *testing.T) {
	m := Events()
	before := testutil.ToFloat64(m.PublishedVec().WithLabelValues("staking", "staking.lock"))
	m.RecordEvent("staking.lock")
	m.RecordEvent("  ")
	require.Equal(t, before+1, testutil.ToFloat64(m.PublishedVec().WithLabelValues("staking", "staking.lock")))
}

func TestModuleMetricsObserve(t *testing.T) {
	m := ModuleMetrics()
	before := testutil.ToFloat64(m.RequestsVec().WithLabelValues("curve", "state", "error"))
	m.Observe("curve", "state", 404, time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(m.RequestsVec().WithLabelValues("curve", "state", "error")))

	var nilMetrics *TxMetrics
	require.NotPanics(t, func() { nilMetrics.Observe("x", 0, nil, 0) })
}
