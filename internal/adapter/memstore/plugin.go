package memstore

import (
	"context"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/data"
)

// NewPlugin returns a plugin that gives every rack its own [Store].
func NewPlugin(opts ...Option) domain.Plugin {
	return func(_ context.Context, params domain.PluginParams) error {
		Install(params.Rack, NewStore(opts...))
		return nil
	}
}

// Install makes store the backing store of rack. Writes push rollbacks that
// undo them if a later hook fails.
func Install(rack domain.Rack, store *Store) {
	rack.Hook(domain.Before, domain.OpCreate, func(ctx context.Context, p *domain.Payload, rb *domain.Rollbacks) error {
		if err := store.Insert(ctx, p.Entry); err != nil {
			return err
		}
		id := p.Entry.ID()
		rb.Push(func(ctx context.Context) error {
			_, err := store.Remove(context.WithoutCancel(ctx), id)
			return err
		})
		return nil
	})

	rack.Hook(domain.Before, domain.OpUpdate, func(ctx context.Context, p *domain.Payload, rb *domain.Rollbacks) error {
		expected, _ := data.AsInt64(p.OldEntry.Get("_v"))
		if err := store.Replace(ctx, expected, p.Entry); err != nil {
			return err
		}
		written, _ := data.AsInt64(p.Entry.Get("_v"))
		old := p.OldEntry
		rb.Push(func(ctx context.Context) error {
			return store.Replace(context.WithoutCancel(ctx), written, old)
		})
		entry, err := store.clone(p.Entry)
		if err != nil {
			return err
		}
		p.Result = append(p.Result, entry)
		return nil
	})

	rack.Hook(domain.Before, domain.OpDeleteByID, func(ctx context.Context, p *domain.Payload, rb *domain.Rollbacks) error {
		removed, err := store.Remove(ctx, p.ID)
		if err != nil || removed == nil {
			return err
		}
		rb.Push(func(ctx context.Context) error {
			return store.Insert(context.WithoutCancel(ctx), removed)
		})
		res, err := store.clone(removed)
		if err != nil {
			return err
		}
		p.Result = append(p.Result, res)
		return nil
	})

	rack.Hook(domain.Before, domain.OpList, func(ctx context.Context, p *domain.Payload, _ *domain.Rollbacks) error {
		found, err := store.Find(ctx,
			domain.WithQuery(p.Query),
			domain.WithQuerySort(p.Sort),
			domain.WithQuerySkip(p.Skip),
			domain.WithQueryLimit(p.Limit),
		)
		if err != nil {
			return err
		}
		p.Result = append(p.Result, found...)
		return nil
	})

	rack.Hook(domain.Before, domain.OpFindOneByID, func(ctx context.Context, p *domain.Payload, _ *domain.Rollbacks) error {
		if len(p.Result) > 0 {
			return nil
		}
		found, err := store.FindByID(ctx, p.ID, p.Version)
		if err != nil || found == nil {
			return err
		}
		p.Result = append(p.Result, found)
		return nil
	})
}
