// Package reference resolves fields that point to entries of other racks.
package reference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/fieldnavigator"
)

// DefaultConcurrency bounds how many listed entries are resolved at once.
const DefaultConcurrency = 8

type ref struct {
	path string
	addr []string
	rack string
}

// Loader checks that references exist before an entry is created and
// replaces them by the referenced entries on the way out.
type Loader struct {
	registry    domain.Registry
	refs        []ref
	fn          domain.FieldNavigator
	concurrency int
	logger      *slog.Logger
}

// NewPlugin returns the reference plugin. Racks without reference fields get
// no hooks.
func NewPlugin(opts ...Option) domain.Plugin {
	return func(_ context.Context, params domain.PluginParams) error {
		l := &Loader{
			registry:    params.Registry,
			fn:          fieldnavigator.NewFieldNavigator(data.NewDocument),
			concurrency: DefaultConcurrency,
			logger:      slog.New(slog.DiscardHandler),
		}
		for _, opt := range opts {
			opt(l)
		}

		schema := params.Rack.Schema()
		for _, path := range schema.Paths() {
			f, _ := schema.Field(path)
			if f.Rack == "" {
				continue
			}
			addr, err := l.fn.GetAddress(path)
			if err != nil {
				return fmt.Errorf("reference %s: %w", path, err)
			}
			l.refs = append(l.refs, ref{path: path, addr: addr, rack: f.Rack})
		}
		if len(l.refs) == 0 {
			return nil
		}

		rack := params.Rack
		rack.Hook(domain.Before, domain.OpCreate, l.check)
		rack.Hook(domain.After, domain.OpCreate, l.loadEntry)
		rack.Hook(domain.After, domain.OpRead, l.loadEntry)
		rack.Hook(domain.After, domain.OpList, l.loadList)
		return nil
	}
}

func (l *Loader) find(ctx context.Context, r ref, id any) (domain.Document, error) {
	target, err := l.registry.Rack(r.rack)
	if err != nil {
		return nil, err
	}
	found, err := target.FindOneByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrReferenceNotFound{Rack: r.rack, ID: id, Path: r.path}
	}
	return found, err
}

// each calls fn for every present value of every reference field of doc.
func (l *Loader) each(doc domain.Document, fn func(r ref, gs domain.GetSetter, id any) error) error {
	for _, r := range l.refs {
		gss, _, err := l.fn.GetField(doc, r.addr...)
		if err != nil {
			return err
		}
		for _, gs := range gss {
			v, defined := gs.Get()
			if !defined || v == nil {
				continue
			}
			if d, ok := v.(domain.Document); ok {
				v = d.ID()
			}
			if err := fn(r, gs, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Loader) check(ctx context.Context, p *domain.Payload, _ *domain.Rollbacks) error {
	return l.each(p.Entry, func(r ref, _ domain.GetSetter, id any) error {
		_, err := l.find(ctx, r, id)
		return err
	})
}

func (l *Loader) load(ctx context.Context, doc domain.Document) error {
	return l.each(doc, func(r ref, gs domain.GetSetter, id any) error {
		found, err := l.find(ctx, r, id)
		if err != nil {
			l.logger.DebugContext(ctx, "could not load reference",
				slog.String("path", r.path),
				slog.String("rack", r.rack),
				slog.Any("id", id),
				slog.Any("error", err),
			)
			return err
		}
		gs.Set(found)
		return nil
	})
}

func (l *Loader) loadEntry(ctx context.Context, p *domain.Payload, _ *domain.Rollbacks) error {
	if p.Entry == nil {
		return nil
	}
	return l.load(ctx, p.Entry)
}

func (l *Loader) loadList(ctx context.Context, p *domain.Payload, _ *domain.Rollbacks) error {
	if p.Raw {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, doc := range p.Result {
		g.Go(func() error {
			return l.load(gctx, doc)
		})
	}
	return g.Wait()
}
