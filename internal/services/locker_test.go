package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccountLocker_Lock(t *testing.T) {
	l := NewAccountLocker()

	t.Run("serializes holders of the same account", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			inside  int
			maxSeen int
			mu      sync.Mutex
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := l.Lock("RAJ1000")
				defer unlock()

				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, maxSeen)
	})

	t.Run("different accounts do not block each other", func(t *testing.T) {
		unlock := l.Lock("RAJ1000")
		defer unlock()

		done := make(chan struct{})
		go func() {
			other := l.Lock("RAV1001")
			other()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lock on an unrelated account blocked")
		}
	})

	t.Run("idle entries are released", func(t *testing.T) {
		fresh := NewAccountLocker()
		unlock := fresh.Lock("RAJ1000")
		assert.Equal(t, 1, fresh.Len())
		unlock()
		unlock()
		assert.Equal(t, 0, fresh.Len())
	})
}

func TestAccountLocker_LockPair(t *testing.T) {
	l := NewAccountLocker()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := l.LockPair("RAJ1000", "RAV1001")
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := l.LockPair("RAV1001", "RAJ1000")
			unlock()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("opposite-order pair locking deadlocked")
	}
	assert.Equal(t, 0, l.Len())
}
