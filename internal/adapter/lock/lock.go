// Package lock serializes mutations of the same entry.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/timegetter"
)

// DefaultTimeout is used when no timeout is configured.
const DefaultTimeout = 3 * time.Second

// Manager holds a set of locked ids. Locks have no owner: any caller can
// release an id and every waiter of that id is woken up to compete for it.
type Manager struct {
	mu      sync.Mutex
	held    map[string]chan struct{}
	timeout time.Duration
	logger  *slog.Logger
	clock   domain.TimeGetter
}

// NewManager returns an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		held:    make(map[string]chan struct{}),
		timeout: DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
		clock:   timegetter.NewTimeGetter(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Timeout returns the default wait used by the lock plugin.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

func key(id any) string {
	if s, ok := id.(string); ok {
		return s
	}
	return fmt.Sprint(id)
}

// Lock marks id as held. If it is already held, Lock waits for it to be
// released and tries again with whatever is left of timeout. It returns
// [domain.ErrLockTimeout] once the budget is spent, or the context error if
// ctx ends first.
func (m *Manager) Lock(ctx context.Context, id any, timeout time.Duration) error {
	k := key(id)
	deadline := m.clock.GetTime().Add(timeout)
	for {
		m.mu.Lock()
		released, held := m.held[k]
		if !held {
			m.held[k] = make(chan struct{})
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()

		remaining := deadline.Sub(m.clock.GetTime())
		if remaining <= 0 {
			return m.timedOut(ctx, id, timeout)
		}

		timer := time.NewTimer(remaining)
		select {
		case <-released:
			timer.Stop()
		case <-timer.C:
			return m.timedOut(ctx, id, timeout)
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

func (m *Manager) timedOut(ctx context.Context, id any, timeout time.Duration) error {
	m.logger.WarnContext(ctx, "lock timed out",
		slog.Any("id", id),
		slog.Duration("timeout", timeout),
	)
	return domain.ErrLockTimeout{ID: id, Timeout: timeout}
}

// Unlock releases id and wakes all of its waiters. Releasing a free id does
// nothing.
func (m *Manager) Unlock(id any) {
	k := key(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if released, held := m.held[k]; held {
		delete(m.held, k)
		close(released)
	}
}

// IsLocked reports whether id is held.
func (m *Manager) IsLocked(id any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.held[key(id)]
	return held
}
