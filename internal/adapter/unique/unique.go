// Package unique rejects entries that collide with others on declared
// unique keys.
package unique

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/rackdb/pkg/ctxsync"
)

const releaseKey = "unique.release"

// Enforcer checks the unique keys of one rack. Checks and the writes that
// follow them run one at a time.
type Enforcer struct {
	rack   domain.Rack
	keys   map[string][]string
	names  []string
	mu     *ctxsync.Mutex
	fn     domain.FieldNavigator
	cmpr   domain.Comparer
	logger *slog.Logger
}

// NewPlugin returns the unique key plugin. Racks without unique fields get
// no hooks.
func NewPlugin(opts ...Option) domain.Plugin {
	return func(_ context.Context, params domain.PluginParams) error {
		e := &Enforcer{
			rack:   params.Rack,
			keys:   make(map[string][]string),
			mu:     ctxsync.NewMutex(),
			fn:     fieldnavigator.NewFieldNavigator(data.NewDocument),
			cmpr:   comparer.NewComparer(),
			logger: slog.New(slog.DiscardHandler),
		}
		for _, opt := range opts {
			opt(e)
		}

		schema := params.Rack.Schema()
		for _, path := range schema.Paths() {
			f, _ := schema.Field(path)
			name, err := keyName(path, f.Unique)
			if err != nil {
				return err
			}
			if name != "" {
				e.keys[name] = append(e.keys[name], path)
			}
		}
		if len(e.keys) == 0 {
			return nil
		}
		e.names = slices.Sorted(maps.Keys(e.keys))

		for _, op := range []domain.Operation{domain.OpCreate, domain.OpUpdate} {
			params.Rack.Hook(domain.Before, op, e.before)
			params.Rack.Hook(domain.After, op, e.after)
		}
		return nil
	}
}

func keyName(path string, unique any) (string, error) {
	switch u := unique.(type) {
	case nil:
		return "", nil
	case bool:
		if u {
			return path, nil
		}
		return "", nil
	case string:
		return u, nil
	}
	return "", fmt.Errorf("unique setting of %s must be a bool or a string, got %T", path, unique)
}

func (e *Enforcer) before(ctx context.Context, p *domain.Payload, rb *domain.Rollbacks) error {
	if err := e.mu.LockWithContext(ctx); err != nil {
		return err
	}
	release := sync.OnceFunc(e.mu.Unlock)
	rb.Push(func(context.Context) error {
		release()
		return nil
	})
	if p.State == nil {
		p.State = &domain.State{}
	}
	p.State.Set(releaseKey, release)

	return e.Check(ctx, p.Entry)
}

func (e *Enforcer) after(_ context.Context, p *domain.Payload, _ *domain.Rollbacks) error {
	if p.State == nil {
		return nil
	}
	if release, ok := p.State.Get(releaseKey); ok {
		release.(func())()
	}
	return nil
}

func (e *Enforcer) value(doc domain.Document, path string) (any, bool, error) {
	addr, err := e.fn.GetAddress(path)
	if err != nil {
		return nil, false, err
	}
	gss, expanded, err := e.fn.GetField(doc, addr...)
	if err != nil {
		return nil, false, err
	}
	if !expanded {
		v, defined := gss[0].Get()
		return v, defined, nil
	}
	values := make([]any, 0, len(gss))
	for _, gs := range gss {
		if v, defined := gs.Get(); defined {
			values = append(values, v)
		}
	}
	return values, true, nil
}

// Check returns [domain.ErrUniqueConstraint] if another entry shares a
// unique key with entry. Keys whose values are all undefined are ignored.
func (e *Enforcer) Check(ctx context.Context, entry domain.Document) error {
	var or []any
	for _, name := range e.names {
		and := make([]any, 0, len(e.keys[name]))
		enforced := false
		for _, path := range e.keys[name] {
			v, defined, err := e.value(entry, path)
			if err != nil {
				return err
			}
			if !defined {
				and = append(and, data.M{path: data.M{"$exists": false}})
				continue
			}
			enforced = true
			and = append(and, data.M{path: data.M{"$eq": v}})
		}
		if enforced {
			or = append(or, data.M{"$and": and})
		}
	}
	if len(or) == 0 {
		return nil
	}

	found, err := e.rack.List(ctx, data.M{"$or": or}, domain.WithRaw(true))
	if err != nil {
		return fmt.Errorf("looking for duplicates: %w", err)
	}
	for _, doc := range found {
		if c, err := e.cmpr.Compare(doc.ID(), entry.ID()); err == nil && c == 0 {
			continue
		}
		failing, err := e.failing(doc, entry)
		if err != nil {
			return err
		}
		e.logger.DebugContext(ctx, "unique keys violated",
			slog.String("rack", e.rack.Name()),
			slog.Any("keys", failing),
		)
		return domain.ErrUniqueConstraint{Keys: failing}
	}
	return nil
}

// failing returns the names of the keys whose values are equal in both
// documents.
func (e *Enforcer) failing(a, b domain.Document) ([]string, error) {
	var res []string
Keys:
	for _, name := range e.names {
		defined := false
		for _, path := range e.keys[name] {
			va, da, err := e.value(a, path)
			if err != nil {
				return nil, err
			}
			vb, db, err := e.value(b, path)
			if err != nil {
				return nil, err
			}
			if da != db {
				continue Keys
			}
			if !da {
				continue
			}
			if c, err := e.cmpr.Compare(va, vb); err != nil || c != 0 {
				continue Keys
			}
			defined = true
		}
		if defined {
			res = append(res, name)
		}
	}
	return res, nil
}
