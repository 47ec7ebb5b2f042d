// Package statelogger records every applied entry method in a dedicated
// rack, so the history of an entry can be audited.
package statelogger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/schema"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/timegetter"
)

// RackName is the name of the rack holding the log.
const RackName = "state-mutations"

// StateLogger writes one log entry per apply.
type StateLogger struct {
	mu         sync.Mutex
	registered bool
	timeGetter domain.TimeGetter
	logger     *slog.Logger
}

// NewStateLogger returns a StateLogger.
func NewStateLogger(opts ...Option) *StateLogger {
	l := &StateLogger{
		timeGetter: timegetter.NewTimeGetter(),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewPlugin returns a plugin that registers the log rack in the registry the
// first time it runs and logs the applies of every other rack.
func NewPlugin(opts ...Option) domain.Plugin {
	l := NewStateLogger(opts...)
	return func(ctx context.Context, params domain.PluginParams) error {
		if err := l.register(ctx, params.Registry); err != nil {
			return err
		}
		if params.Rack.Name() == RackName {
			return nil
		}
		Install(params.Rack, params.Registry, l)
		return nil
	}
}

// Schema returns the schema of log entries.
func (l *StateLogger) Schema() domain.Schema {
	return schema.NewSchema(map[string]domain.Field{
		"createdAt": {
			Type:    domain.TypeDate,
			Default: func() any { return l.timeGetter.GetTime() },
		},
		"collection":   {Type: domain.TypeString, Required: true},
		"entryId":      {},
		"entryVersion": {Type: domain.TypeNumber},
		"method":       {Type: domain.TypeString},
		"data": {Fields: map[string]domain.Field{
			"payload":  {},
			"response": {},
			"newEntry": {},
			"events":   {},
		}},
		"error": {Type: domain.TypeString},
	})
}

// register creates the log rack once. The registry installs plugins on the
// new rack, which calls back into register, so the flag is set before Init.
func (l *StateLogger) register(ctx context.Context, registry domain.Registry) error {
	l.mu.Lock()
	if l.registered {
		l.mu.Unlock()
		return nil
	}
	l.registered = true
	l.mu.Unlock()

	_, err := registry.Init(ctx, RackName, l.Schema())
	if errors.As(err, new(domain.ErrRackExists)) {
		return nil
	}
	if err != nil {
		l.mu.Lock()
		l.registered = false
		l.mu.Unlock()
		return fmt.Errorf("registering %s: %w", RackName, err)
	}
	return nil
}

// Install hooks l into the apply lifecycle of rack. Failures to write the log
// are logged and never fail the apply.
func Install(rack domain.Rack, registry domain.Registry, l *StateLogger) {
	name := rack.Name()
	rack.Hook(domain.After, domain.OpApply, func(ctx context.Context, p *domain.Payload, _ *domain.Rollbacks) error {
		if err := l.write(ctx, registry, name, p); err != nil {
			l.logger.ErrorContext(ctx, "state log failed",
				slog.String("rack", name),
				slog.String("method", p.Method),
				slog.Any("id", p.ID),
				slog.Any("error", err),
			)
		}
		return nil
	})
}

func (l *StateLogger) write(ctx context.Context, registry domain.Registry, rack string, p *domain.Payload) error {
	target, err := registry.Rack(RackName)
	if err != nil {
		return err
	}

	entry := data.M{
		"collection": rack,
		"entryId":    safe(p.ID),
		"method":     p.Method,
		"data": data.M{
			"payload":  safe(p.Input),
			"response": safe(p.MethodResult),
			"newEntry": safe(p.EntryResult),
			"events":   events(p.EventsTrapped),
		},
	}
	if p.OldEntry != nil {
		if v, ok := data.AsInt64(p.OldEntry.Get("_v")); ok {
			entry["entryVersion"] = v
		}
	}
	if p.Err != nil {
		entry["error"] = p.Err.Error()
	}

	_, err = target.Create(ctx, entry)
	return err
}

// safe copies v into document values. Values that cannot be represented are
// stored as their string form.
func safe(v any) any {
	if v == nil {
		return nil
	}
	n, err := data.Normalize(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return n
}

func events(trapped []domain.TrappedEvent) []any {
	res := make([]any, 0, len(trapped))
	for _, ev := range trapped {
		payload := make([]any, len(ev.Payload))
		for n, v := range ev.Payload {
			payload[n] = safe(v)
		}
		res = append(res, data.M{"event": ev.Event, "payload": payload})
	}
	return res
}
