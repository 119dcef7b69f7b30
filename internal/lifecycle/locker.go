package lifecycle

import (
	"context"
	"sync"
)

// Locker serializes call mutations per query. The single-active-call
// invariant is check-then-act; every accept/start/end/resolve path must hold
// the query's lock for the duration of the operation so two racing agents
// cannot both pass the "no active call" check.
type Locker interface {
	// Acquire blocks until the key's lock is held or ctx is done. The
	// returned release function must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MemoryLocker is a process-local Locker for tests and single-instance
// deployments. Multi-instance deployments need the Redis-backed locker.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: map[string]chan struct{}{}}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
