package lock

import (
	"context"
	"sync"
)

// localLocker implements Locker with per-membership mutexes in process
// memory. Used when Redis is disabled and in tests. Only safe for a
// single instance.
type localLocker struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// NewLocalLocker creates an in-process membership locker
func NewLocalLocker() Locker {
	return &localLocker{locks: make(map[uint]*sync.Mutex)}
}

func (l *localLocker) Acquire(ctx context.Context, membershipID uint) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[membershipID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[membershipID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}
