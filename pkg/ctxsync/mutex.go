// Package ctxsync provides synchronization primitives whose blocking calls
// can be abandoned through a [context.Context].
package ctxsync

import (
	"context"
	"time"
)

// NewMutex creates a new instance of Mutex.
func NewMutex() *Mutex {
	return &Mutex{
		held: make(chan struct{}, 1),
	}
}

// A Mutex is a mutual exclusion lock. Waiting goroutines acquire it in the
// order they started waiting.
type Mutex struct {
	held chan struct{}
}

// Lock locks the mutex with a context.Background()
func (m *Mutex) Lock() {
	_ = m.LockWithContext(context.Background())
}

// LockWithContext locks until the mutex is free or context is cancelled.
func (m *Mutex) LockWithContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.held <- struct{}{}:
		return nil
	}
}

// LockWithTimeout locks until the mutex is free, the context is cancelled
// or the timeout elapses.
func (m *Mutex) LockWithTimeout(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return m.LockWithContext(ctx)
}

// TryLock tries to lock m and reports whether it succeeded.
func (m *Mutex) TryLock() bool {
	select {
	case m.held <- struct{}{}:
		return true
	default:
		return false
	}
}

// Unlock unlocks m. Unlocking an unlocked mutex panics.
func (m *Mutex) Unlock() {
	select {
	case <-m.held:
	default:
		panic("ctxsync: unlock of unlocked mutex")
	}
}
