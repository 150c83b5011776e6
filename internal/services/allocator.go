package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ruralpay/banksim/internal/metrics"
	"github.com/ruralpay/banksim/internal/sequence"
	"github.com/ruralpay/banksim/internal/store"
)

const (
	prefixLength = 3
	// DefaultMaxAllocationAttempts bounds the collision loop when the store
	// keeps reporting every candidate as taken.
	DefaultMaxAllocationAttempts = 10000
)

// NormalizeHolderName trims the name and collapses runs of whitespace to one space.
func NormalizeHolderName(name string) (string, error) {
	normalized := strings.Join(strings.Fields(name), " ")
	if normalized == "" {
		return "", fmt.Errorf("%w: account holder name must not be blank", ErrInvalidArgument)
	}
	return normalized, nil
}

// AccountNumberAllocator issues account numbers of the form PREFIX + sequence,
// e.g. RAJ1000. The sequence is the only source of uniqueness; store lookups
// skip values that are already taken.
type AccountNumberAllocator struct {
	store       store.Store
	seq         sequence.Sequence
	maxAttempts int
	metrics     metrics.Collector
}

func NewAccountNumberAllocator(s store.Store, seq sequence.Sequence, maxAttempts int, collector metrics.Collector) *AccountNumberAllocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAllocationAttempts
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &AccountNumberAllocator{
		store:       s,
		seq:         seq,
		maxAttempts: maxAttempts,
		metrics:     collector,
	}
}

// Allocate returns an account number no stored account uses. name must already
// be normalized.
func (a *AccountNumberAllocator) Allocate(ctx context.Context, name string) (string, error) {
	prefix := accountPrefix(name)
	if prefix == "" {
		return "", fmt.Errorf("%w: account holder name must not be blank", ErrInvalidArgument)
	}

	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		n, err := a.seq.Next(ctx)
		if err != nil {
			return "", fmt.Errorf("allocate account number: %w", err)
		}
		candidate := prefix + strconv.FormatInt(n, 10)

		_, err = a.store.FindAccountByNumber(ctx, candidate)
		if errors.Is(err, store.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("allocate account number: lookup %s: %w", candidate, err)
		}
		a.metrics.RecordAllocationRetry()
	}

	return "", fmt.Errorf("allocate account number: no free number for prefix %s after %d attempts", prefix, a.maxAttempts)
}

func accountPrefix(name string) string {
	runes := []rune(name)
	if len(runes) > prefixLength {
		runes = runes[:prefixLength]
	}
	return strings.ToUpper(string(runes))
}
