package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

// NewPlugin returns a plugin that gives every rack its own [Manager].
func NewPlugin(opts ...Option) domain.Plugin {
	return func(_ context.Context, params domain.PluginParams) error {
		Install(params.Rack, NewManager(opts...))
		return nil
	}
}

// Install hooks m into the create, update, delete and apply lifecycles of
// rack. Apply holds the lock for the whole call and marks the state so the
// update it runs does not wait for itself.
func Install(rack domain.Rack, m *Manager) {
	acquire := func(op domain.Operation, id func(*domain.Payload) any) domain.HookFunc {
		return func(ctx context.Context, p *domain.Payload, rb *domain.Rollbacks) error {
			if p.State != nil && p.State.SkipLock {
				return nil
			}
			entryID := id(p)
			if err := m.Lock(ctx, entryID, m.Timeout()); err != nil {
				return err
			}
			release := sync.OnceFunc(func() { m.Unlock(entryID) })
			rb.Push(func(context.Context) error {
				release()
				return nil
			})
			if p.State == nil {
				p.State = &domain.State{}
			}
			p.State.Set(stateKey(op, entryID), release)
			return nil
		}
	}

	release := func(op domain.Operation, id func(*domain.Payload) any) domain.HookFunc {
		return func(_ context.Context, p *domain.Payload, _ *domain.Rollbacks) error {
			if p.State == nil {
				return nil
			}
			if fn, ok := p.State.Get(stateKey(op, id(p))); ok {
				fn.(func())()
			}
			return nil
		}
	}

	entryID := func(p *domain.Payload) any { return p.Entry.ID() }
	oldEntryID := func(p *domain.Payload) any { return p.OldEntry.ID() }
	payloadID := func(p *domain.Payload) any { return p.ID }

	rack.Hook(domain.Before, domain.OpCreate, acquire(domain.OpCreate, entryID))
	rack.Hook(domain.After, domain.OpCreate, release(domain.OpCreate, entryID))
	rack.Hook(domain.Before, domain.OpUpdate, acquire(domain.OpUpdate, oldEntryID))
	rack.Hook(domain.After, domain.OpUpdate, release(domain.OpUpdate, oldEntryID))
	rack.Hook(domain.Before, domain.OpDelete, acquire(domain.OpDelete, entryID))
	rack.Hook(domain.After, domain.OpDelete, release(domain.OpDelete, entryID))

	rack.Hook(domain.Before, domain.OpApply, func(ctx context.Context, p *domain.Payload, rb *domain.Rollbacks) error {
		if err := acquire(domain.OpApply, payloadID)(ctx, p, rb); err != nil {
			return err
		}
		p.State.SkipLock = true
		return nil
	})
	rack.Hook(domain.After, domain.OpApply, func(ctx context.Context, p *domain.Payload, rb *domain.Rollbacks) error {
		if p.State != nil {
			p.State.SkipLock = false
		}
		return release(domain.OpApply, payloadID)(ctx, p, rb)
	})
}

func stateKey(op domain.Operation, id any) string {
	return fmt.Sprintf("lock.%s.%v", op, id)
}
