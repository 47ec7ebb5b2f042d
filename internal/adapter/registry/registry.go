// Package registry contains the default [domain.Registry] implementation.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/emitter"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/idgenerator"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/lock"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/memstore"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/rack"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/reference"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/unique"
)

// Registry implements [domain.Registry].
type Registry struct {
	mu      sync.RWMutex
	racks   map[string]domain.Rack
	offs    map[string]func()
	plugins []domain.Plugin
	closed  bool

	emitter domain.Emitter
	idGen   domain.IDGenerator
	logger  *slog.Logger
}

// NewRegistry returns an empty registry. Unless [WithoutDefaultPlugins] is
// given, every rack gets, in order, entry locks, reference checks, unique
// keys and memory storage. Plugins given with [WithPlugins] run after those.
func NewRegistry(opts ...Option) (*Registry, error) {
	o := options{
		lockTimeout: lock.DefaultTimeout,
		idType:      idgenerator.TypeObjectID,
		logger:      slog.New(slog.DiscardHandler),
		defaults:    true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	idGen, err := idgenerator.New(o.idType)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		racks:   make(map[string]domain.Rack),
		offs:    make(map[string]func()),
		emitter: emitter.NewEmitter(emitter.WithLogger(o.logger)),
		idGen:   idGen,
		logger:  o.logger,
	}
	if o.defaults {
		r.plugins = defaultPlugins(o.lockTimeout, o.logger)
	}
	r.plugins = append(r.plugins, o.plugins...)
	return r, nil
}

func defaultPlugins(timeout time.Duration, logger *slog.Logger) []domain.Plugin {
	return []domain.Plugin{
		lock.NewPlugin(lock.WithTimeout(timeout), lock.WithLogger(logger)),
		reference.NewPlugin(reference.WithLogger(logger)),
		unique.NewPlugin(unique.WithLogger(logger)),
		memstore.NewPlugin(),
	}
}

// IDGenerator returns the generator schemas built for this registry should
// use for new ids.
func (r *Registry) IDGenerator() domain.IDGenerator {
	return r.idGen
}

// Init implements [domain.Registry].
func (r *Registry) Init(ctx context.Context, name string, schema domain.Schema, opts ...domain.RackOption) (domain.Rack, error) {
	if r.isClosed() {
		return nil, domain.ErrRegistryClosed
	}
	opts = append([]domain.RackOption{domain.WithRackLogger(r.logger)}, opts...)
	rk, err := rack.NewRack(name, schema, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Register(ctx, rk); err != nil {
		return nil, err
	}
	return rk, nil
}

// Register implements [domain.Registry]. The rack is visible to Rack while
// its plugins are installed, so plugins can look it up. If a plugin fails
// the rack is unregistered again.
func (r *Registry) Register(ctx context.Context, rk domain.Rack) error {
	name := rk.Name()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.ErrRegistryClosed
	}
	if _, ok := r.racks[name]; ok {
		r.mu.Unlock()
		return domain.ErrRackExists{Name: name}
	}
	r.racks[name] = rk
	plugins := slices.Clone(r.plugins)
	r.mu.Unlock()

	for _, plugin := range plugins {
		if err := plugin(ctx, domain.PluginParams{Registry: r, Rack: rk}); err != nil {
			r.mu.Lock()
			delete(r.racks, name)
			r.mu.Unlock()
			return fmt.Errorf("installing plugins on rack %s: %w", name, err)
		}
	}

	off := rk.On(r.emitter.Emit)

	r.mu.Lock()
	r.offs[name] = off
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "rack registered",
		slog.String("rack", name),
		slog.Int("plugins", len(plugins)),
	)
	return nil
}

// RemoveRack implements [domain.Registry]. Entries of the rack are kept by
// the rack itself and are not touched.
func (r *Registry) RemoveRack(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.ErrRegistryClosed
	}
	if _, ok := r.racks[name]; !ok {
		return domain.ErrRackNotFound{Name: name}
	}
	if off, ok := r.offs[name]; ok {
		off()
		delete(r.offs, name)
	}
	delete(r.racks, name)
	return nil
}

// Rack implements [domain.Registry].
func (r *Registry) Rack(name string) (domain.Rack, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, domain.ErrRegistryClosed
	}
	rk, ok := r.racks[name]
	if !ok {
		return nil, domain.ErrRackNotFound{Name: name}
	}
	return rk, nil
}

// ListRacks implements [domain.Registry].
func (r *Registry) ListRacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.racks))
}

// Plugin implements [domain.Registry]. Racks already registered are not
// affected.
func (r *Registry) Plugin(p domain.Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = append(r.plugins, p)
}

// On implements [domain.Registry]. Events carry the name of the rack that
// emitted them.
func (r *Registry) On(l domain.Listener) func() {
	return r.emitter.On(l)
}

// Shutdown implements [domain.Registry].
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.ErrRegistryClosed
	}
	r.closed = true
	for _, off := range r.offs {
		off()
	}
	r.offs = make(map[string]func())
	r.racks = make(map[string]domain.Rack)
	if c, ok := r.emitter.(interface{ Clear() }); ok {
		c.Clear()
	}

	r.logger.InfoContext(ctx, "registry closed")
	return nil
}

func (r *Registry) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}
