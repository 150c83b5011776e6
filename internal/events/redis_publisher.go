package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ruralpay/banksim/internal/logging"
	"github.com/ruralpay/banksim/internal/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const DefaultKey = "ledger:events"

var ErrCircuitOpen = errors.New("events: circuit breaker open")

type BreakerConfig struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// RedisPublisher RPUSHes events onto a list, the same queue shape the
// settlement worker consumes. Calls go through a circuit breaker so a Redis
// outage does not add latency to every ledger operation.
type RedisPublisher struct {
	redis   *redis.Client
	key     string
	cb      *gobreaker.CircuitBreaker
	metrics metrics.Collector
	logger  *logging.Logger
}

func NewRedisPublisher(client *redis.Client, key string, config BreakerConfig, collector metrics.Collector, logger *logging.Logger) *RedisPublisher {
	if key == "" {
		key = DefaultKey
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	p := &RedisPublisher{
		redis:   client,
		key:     key,
		metrics: collector,
		logger:  logger.Named("events"),
	}

	threshold := config.FailureThreshold
	if threshold == 0 {
		threshold = DefaultBreakerConfig().FailureThreshold
	}

	p.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ledger-events",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			p.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)

			var state metrics.CircuitState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.CircuitClosed
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			}
			p.metrics.RecordCircuitState(name, state)
		},
	})

	return p
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", event.Type, err)
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.redis.RPush(ctx, p.key, payload).Err()
	})
	p.metrics.RecordPublish(err == nil)

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	if err != nil {
		return fmt.Errorf("events: rpush %s: %w", p.key, err)
	}
	return nil
}

// State reports the breaker state, exposed on /health.
func (p *RedisPublisher) State() string {
	return p.cb.State().String()
}
