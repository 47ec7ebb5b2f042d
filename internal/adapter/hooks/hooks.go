// Package hooks contains the ordered lifecycle hook pipeline used by racks.
package hooks

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

type registration struct {
	lifecycle domain.Lifecycle
	operation domain.Operation
	fn        domain.HookFunc
}

// Pipeline runs hooks in registration order for each lifecycle and
// operation pair.
type Pipeline struct {
	mu     sync.RWMutex
	hooks  []registration
	logger *slog.Logger
}

// NewPipeline returns an empty Pipeline.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Hook registers fn. Hooks cannot be removed.
func (p *Pipeline) Hook(lifecycle domain.Lifecycle, operation domain.Operation, fn domain.HookFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, registration{
		lifecycle: lifecycle,
		operation: operation,
		fn:        fn,
	})
}

// Len returns the number of hooks registered for lifecycle and operation.
func (p *Pipeline) Len(lifecycle domain.Lifecycle, operation domain.Operation) int {
	return len(p.matching(lifecycle, operation))
}

func (p *Pipeline) matching(lifecycle domain.Lifecycle, operation domain.Operation) []domain.HookFunc {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var fns []domain.HookFunc
	for _, h := range p.hooks {
		if h.lifecycle == lifecycle && h.operation == operation {
			fns = append(fns, h.fn)
		}
	}
	return fns
}

// Trigger runs every matching hook with the same payload. The first failing
// hook stops the sequence: queued rollbacks are run and the failure is
// returned as [domain.ErrHook], or as [domain.ErrRollback] if a rollback
// failed too.
func (p *Pipeline) Trigger(ctx context.Context, lifecycle domain.Lifecycle, operation domain.Operation, payload *domain.Payload, rb *domain.Rollbacks) error {
	for _, fn := range p.matching(lifecycle, operation) {
		err := fn(ctx, payload, rb)
		if err == nil {
			continue
		}

		hookErr := domain.ErrHook{Lifecycle: lifecycle, Operation: operation, Err: err}
		p.logger.DebugContext(ctx, "hook failed",
			slog.String("lifecycle", string(lifecycle)),
			slog.String("operation", string(operation)),
			slog.Any("error", err),
		)

		if rb == nil {
			return hookErr
		}
		if errs := rb.Run(ctx); len(errs) > 0 {
			p.logger.ErrorContext(ctx, "rollback failed",
				slog.String("lifecycle", string(lifecycle)),
				slog.String("operation", string(operation)),
				slog.Int("failures", len(errs)),
			)
			return domain.ErrRollback{Hook: hookErr, Errs: errs}
		}
		return hookErr
	}
	return nil
}
