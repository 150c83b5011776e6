// Package metrics records ledger activity. Implementations export to a backend;
// NoOpCollector is the default.
package metrics

import (
	"time"
)

// Result labels for RecordOperation.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

type Collector interface {
	// RecordOperation counts a finished engine or lifecycle call.
	RecordOperation(operation, result string, duration time.Duration)
	// RecordLockWait observes how long an operation waited for account locks.
	RecordLockWait(operation string, wait time.Duration)
	// RecordAllocationRetry counts account number candidates that were already taken.
	RecordAllocationRetry()
	// RecordPublish counts ledger events handed to the event sink.
	RecordPublish(success bool)
	// RecordCircuitState tracks the event publisher's breaker state.
	RecordCircuitState(name string, state CircuitState)
}

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type NoOpCollector struct{}

func (NoOpCollector) RecordOperation(operation, result string, duration time.Duration) {}

func (NoOpCollector) RecordLockWait(operation string, wait time.Duration) {}

func (NoOpCollector) RecordAllocationRetry() {}

func (NoOpCollector) RecordPublish(success bool) {}

func (NoOpCollector) RecordCircuitState(name string, state CircuitState) {}
