package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector with client_golang vectors.
type PrometheusCollector struct {
	operations        *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
	lockWait          *prometheus.HistogramVec
	allocationRetries prometheus.Counter
	published         *prometheus.CounterVec
	circuitState      *prometheus.GaugeVec
}

func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_operations_total",
				Help:      "Ledger operations by name and result",
			},
			[]string{"operation", "result"},
		),
		operationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_operation_duration_seconds",
				Help:      "Ledger operation latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		lockWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "account_lock_wait_seconds",
				Help:      "Time spent waiting for per-account locks",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"operation"},
		),
		allocationRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "account_number_collisions_total",
				Help:      "Account number candidates rejected because they were already issued",
			},
		),
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_events_published_total",
				Help:      "Ledger events handed to the event sink",
			},
			[]string{"result"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
	}
}

// Register adds every vector to the given registry.
func (pc *PrometheusCollector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pc.operations,
		pc.operationLatency,
		pc.lockWait,
		pc.allocationRetries,
		pc.published,
		pc.circuitState,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

func (pc *PrometheusCollector) RecordOperation(operation, result string, duration time.Duration) {
	pc.operations.WithLabelValues(operation, result).Inc()
	pc.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordLockWait(operation string, wait time.Duration) {
	pc.lockWait.WithLabelValues(operation).Observe(wait.Seconds())
}

func (pc *PrometheusCollector) RecordAllocationRetry() {
	pc.allocationRetries.Inc()
}

func (pc *PrometheusCollector) RecordPublish(success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	pc.published.WithLabelValues(result).Inc()
}

func (pc *PrometheusCollector) RecordCircuitState(name string, state CircuitState) {
	pc.circuitState.WithLabelValues(name).Set(float64(state))
}
