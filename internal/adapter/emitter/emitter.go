// Package emitter contains the default [domain.Emitter] implementation.
package emitter

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

type subscription struct {
	fn domain.Listener
}

// Emitter implements [domain.Emitter]. Listeners are called synchronously,
// in subscription order, by the goroutine that emits.
type Emitter struct {
	mu     sync.RWMutex
	subs   []*subscription
	logger *slog.Logger
}

// NewEmitter returns a new implementation of [domain.Emitter].
func NewEmitter(opts ...Option) domain.Emitter {
	e := &Emitter{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// On implements [domain.Emitter].
func (e *Emitter) On(fn domain.Listener) func() {
	sub := &subscription{fn: fn}
	e.mu.Lock()
	e.subs = append(e.subs, sub)
	e.mu.Unlock()

	return sync.OnceFunc(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.subs = slices.DeleteFunc(e.subs, func(s *subscription) bool {
			return s == sub
		})
	})
}

// Emit implements [domain.Emitter]. A panicking listener is logged and does
// not prevent the others from running.
func (e *Emitter) Emit(ctx context.Context, ev domain.Event) {
	e.mu.RLock()
	subs := slices.Clone(e.subs)
	e.mu.RUnlock()

	for _, sub := range subs {
		e.call(ctx, sub.fn, ev)
	}
}

func (e *Emitter) call(ctx context.Context, fn domain.Listener, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "listener panicked",
				slog.String("event", ev.Name),
				slog.String("rack", ev.Rack),
				slog.Any("panic", r),
			)
		}
	}()
	fn(ctx, ev)
}

// Len returns the number of listeners.
func (e *Emitter) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

// Clear removes every listener.
func (e *Emitter) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = nil
}
