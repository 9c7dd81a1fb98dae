package paginator

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Mutex is a non-reentrant lock whose acquisition blocks the calling
// goroutine until the lock is free or ctx is done. Waiters are served in
// arrival order.
type Mutex struct {
	sem *semaphore.Weighted
}

func NewMutex() *Mutex {
	return &Mutex{sem: semaphore.NewWeighted(1)}
}

// Lock returns ctx.Err() if ctx ends before the lock is acquired; the lock
// is then not held.
func (m *Mutex) Lock(ctx context.Context) error {
	return m.sem.Acquire(ctx, 1)
}

// TryLock acquires the lock only if it is free.
func (m *Mutex) TryLock() bool {
	return m.sem.TryAcquire(1)
}

func (m *Mutex) Unlock() {
	m.sem.Release(1)
}

// WithLock runs fn while holding the lock. The lock is released on every
// exit path, including a panic in fn.
func (m *Mutex) WithLock(ctx context.Context, fn func() error) error {
	if err := m.Lock(ctx); err != nil {
		return err
	}
	defer m.Unlock()
	return fn()
}
