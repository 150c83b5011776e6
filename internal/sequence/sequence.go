// Package sequence provides the monotonically increasing counter behind account numbers.
package sequence

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/go-redis/redis/v8"
)

// DefaultStart is the first value handed out by a fresh sequence.
const DefaultStart int64 = 1000

// Sequence hands out strictly increasing values, safe for concurrent callers.
type Sequence interface {
	Next(ctx context.Context) (int64, error)
}

// AtomicSequence is a process-local counter.
type AtomicSequence struct {
	next atomic.Int64
}

func NewAtomicSequence(start int64) *AtomicSequence {
	s := &AtomicSequence{}
	s.next.Store(start)
	return s
}

func (s *AtomicSequence) Next(ctx context.Context) (int64, error) {
	return s.next.Add(1) - 1, nil
}

// RedisSequence shares one counter between replicas through INCR.
type RedisSequence struct {
	redis *redis.Client
	key   string
	start int64
}

func NewRedisSequence(client *redis.Client, key string, start int64) *RedisSequence {
	return &RedisSequence{
		redis: client,
		key:   key,
		start: start,
	}
}

// Init seeds the key so the first INCR returns start. An existing key is left alone.
func (s *RedisSequence) Init(ctx context.Context) error {
	if err := s.redis.SetNX(ctx, s.key, s.start-1, 0).Err(); err != nil {
		return fmt.Errorf("sequence: seed %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisSequence) Next(ctx context.Context) (int64, error) {
	v, err := s.redis.Incr(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("sequence: incr %s: %w", s.key, err)
	}
	return v, nil
}
