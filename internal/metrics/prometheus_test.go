package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	pc := NewPrometheusCollector("banksim")
	require.NoError(t, pc.Register(registry))

	t.Run("operations by result", func(t *testing.T) {
		pc.RecordOperation("deposit", ResultSuccess, 2*time.Millisecond)
		pc.RecordOperation("deposit", ResultSuccess, time.Millisecond)
		pc.RecordOperation("withdraw", ResultFailure, time.Millisecond)

		assert.Equal(t, 2.0, testutil.ToFloat64(pc.operations.WithLabelValues("deposit", ResultSuccess)))
		assert.Equal(t, 1.0, testutil.ToFloat64(pc.operations.WithLabelValues("withdraw", ResultFailure)))
	})

	t.Run("collisions and publishes", func(t *testing.T) {
		pc.RecordAllocationRetry()
		pc.RecordPublish(true)
		pc.RecordPublish(false)

		assert.Equal(t, 1.0, testutil.ToFloat64(pc.allocationRetries))
		assert.Equal(t, 1.0, testutil.ToFloat64(pc.published.WithLabelValues(ResultFailure)))
	})

	t.Run("circuit state gauge", func(t *testing.T) {
		pc.RecordCircuitState("ledger-events", CircuitOpen)
		assert.Equal(t, 1.0, testutil.ToFloat64(pc.circuitState.WithLabelValues("ledger-events")))
	})

	t.Run("double registration fails", func(t *testing.T) {
		assert.Error(t, pc.Register(registry))
	})
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(7).String())
}
