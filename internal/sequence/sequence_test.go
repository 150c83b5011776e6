package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicSequence_Next(t *testing.T) {
	ctx := context.Background()

	t.Run("starts at the configured value", func(t *testing.T) {
		s := NewAtomicSequence(DefaultStart)
		first, err := s.Next(ctx)
		require.NoError(t, err)
		second, err := s.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), first)
		assert.Equal(t, int64(1001), second)
	})

	t.Run("concurrent callers never share a value", func(t *testing.T) {
		s := NewAtomicSequence(DefaultStart)
		const workers, perWorker = 16, 250

		var mu sync.Mutex
		seen := make(map[int64]struct{}, workers*perWorker)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perWorker; j++ {
					v, _ := s.Next(ctx)
					mu.Lock()
					seen[v] = struct{}{}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, seen, workers*perWorker)
		next, _ := s.Next(ctx)
		assert.Equal(t, DefaultStart+workers*perWorker, next)
	})
}

func TestRedisSequence(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	s := NewRedisSequence(db, "ledger:account_seq", DefaultStart)

	t.Run("init seeds one below start", func(t *testing.T) {
		mock.ExpectSetNX("ledger:account_seq", int64(999), 0).SetVal(true)
		require.NoError(t, s.Init(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("next increments", func(t *testing.T) {
		mock.ExpectIncr("ledger:account_seq").SetVal(1000)
		mock.ExpectIncr("ledger:account_seq").SetVal(1001)

		first, err := s.Next(ctx)
		require.NoError(t, err)
		second, err := s.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), first)
		assert.Equal(t, int64(1001), second)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis failure", func(t *testing.T) {
		mock.ExpectIncr("ledger:account_seq").SetErr(errors.New("connection refused"))

		_, err := s.Next(ctx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
