package rack

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/data"
)

var (
	errMethodNotFound  = errors.New("method not found")
	errEventUndeclared = errors.New("event is not declared")
)

// Apply implements [domain.Rack]. The entry stays locked while the method
// runs, and the document it leaves behind is stored with a regular update
// pinned to the version that was read. Events emitted by the method are
// trapped and only dispatched once the entry is stored.
func (r *Rack) Apply(ctx context.Context, req domain.ApplyRequest) (*domain.ApplyResult, error) {
	st := req.State
	if st == nil {
		st = &domain.State{}
	}
	if st.Method == "" {
		st.Method = domain.OpApply
	}

	p := &domain.Payload{
		ID:      req.ID,
		Version: req.Version,
		Method:  req.Method,
		Path:    req.Path,
		Input:   req.Payload,
		State:   st,
	}
	rb := &domain.Rollbacks{}
	if err := r.Trigger(ctx, domain.Before, domain.OpApply, p, rb); err != nil {
		return nil, err
	}

	old, err := r.FindOneByID(ctx, req.ID, domain.WithVersion(req.Version), domain.WithState(st))
	if err != nil {
		return nil, r.fail(ctx, rb, err)
	}
	if req.Validate != nil {
		if err := req.Validate(old); err != nil {
			return nil, r.fail(ctx, rb, err)
		}
	}
	method, ok := r.schema.Methods(req.Path)[req.Method]
	if !ok || method.Handler == nil {
		return nil, r.fail(ctx, rb, domain.ErrMethod{Method: req.Method, Err: errMethodNotFound})
	}

	working, err := data.NewDocument(old)
	if err != nil {
		return nil, r.fail(ctx, rb, err)
	}
	model := r.schema.Model(working)
	scoped, err := model.At(req.Path)
	if err != nil {
		return nil, r.fail(ctx, rb, err)
	}

	var trapped []domain.TrappedEvent
	model.OnEmit(func(event string, payload []any) error {
		if !slices.Contains(method.Events, event) {
			return domain.ErrEvent{Event: event, Err: errEventUndeclared}
		}
		trapped = append(trapped, domain.TrappedEvent{Event: event, Payload: payload})
		return nil
	})

	result, err := method.Handler(ctx, scoped, req.Payload)
	if err != nil {
		err = domain.ErrMethod{Method: req.Method, Err: err}
	}

	var entry domain.Document
	updated, updateErr := r.Update(ctx, old.ID(), model.Document(), domain.WithState(st))
	if updateErr != nil {
		if err != nil {
			r.logger.DebugContext(ctx, "method error masked by update error",
				slog.String("method", req.Method),
				slog.Any("error", err),
			)
		}
		err = updateErr
	} else if len(updated) > 0 {
		entry = updated[0]
	}

	p.OldEntry = old
	p.Err = err
	p.MethodResult = result
	p.EntryResult = entry
	p.EventsTrapped = trapped
	if hookErr := r.Trigger(ctx, domain.After, domain.OpApply, p, rb); hookErr != nil {
		return nil, hookErr
	}
	if err != nil {
		return nil, err
	}

	for _, ev := range trapped {
		r.emit(ctx, domain.EventMethod, domain.MethodEvent{
			Event:   ev.Event,
			Path:    req.Path,
			Entry:   entry,
			Payload: ev.Payload,
		})
	}

	return &domain.ApplyResult{
		MethodResult:     result,
		EntryResult:      entry,
		EventsDispatched: trapped,
	}, nil
}

// Call implements [domain.Rack]. Input and output are parsed by the schemas
// declared with the method, if any.
func (r *Rack) Call(ctx context.Context, method string, input any) (any, error) {
	m, ok := r.methods[method]
	if !ok || m.Handler == nil {
		return nil, domain.ErrRackMethod{Rack: r.name, Method: method, Err: errMethodNotFound}
	}

	if m.Input != nil {
		parsed, err := m.Input.Parse(input)
		if err != nil {
			return nil, domain.ErrRackMethod{Rack: r.name, Method: method, Err: err}
		}
		input = parsed
	}

	out, err := m.Handler(ctx, r, input)
	if err != nil {
		return nil, domain.ErrRackMethod{Rack: r.name, Method: method, Err: err}
	}

	if m.Output != nil {
		parsed, err := m.Output.Parse(out)
		if err != nil {
			return nil, domain.ErrRackMethod{Rack: r.name, Method: method, Err: err}
		}
		out = parsed
	}
	return out, nil
}

// Dispatch implements [domain.Rack].
func (r *Rack) Dispatch(ctx context.Context, event string, payload any) error {
	s, ok := r.events[event]
	if !ok {
		return domain.ErrEvent{Event: event, Err: errEventUndeclared}
	}
	if s != nil {
		parsed, err := s.Parse(payload)
		if err != nil {
			return domain.ErrEvent{Event: event, Err: err}
		}
		payload = parsed
	}
	r.emit(ctx, event, payload)
	return nil
}
