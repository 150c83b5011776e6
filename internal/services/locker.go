package services

import (
	"sync"
)

// AccountLocker serializes work per account number. Entries are reference
// counted and dropped once nobody holds or waits for them.
type AccountLocker struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func NewAccountLocker() *AccountLocker {
	return &AccountLocker{
		locks: make(map[string]*accountLock),
	}
}

// Lock blocks until the caller holds the account exclusively.
func (l *AccountLocker) Lock(number string) (unlock func()) {
	entry := l.acquire(number)
	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			l.release(number, entry)
		})
	}
}

// LockPair locks two distinct accounts in lexicographic order so concurrent
// transfers in opposite directions cannot deadlock.
func (l *AccountLocker) LockPair(a, b string) (unlock func()) {
	first, second := a, b
	if first > second {
		first, second = second, first
	}

	unlockFirst := l.Lock(first)
	unlockSecond := l.Lock(second)
	return func() {
		unlockSecond()
		unlockFirst()
	}
}

// Len reports how many accounts currently have a lock entry.
func (l *AccountLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *AccountLocker) acquire(number string) *accountLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[number]
	if !ok {
		entry = &accountLock{}
		l.locks[number] = entry
	}
	entry.refs++
	return entry
}

func (l *AccountLocker) release(number string, entry *accountLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, number)
	}
}
