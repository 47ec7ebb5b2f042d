// Package rack contains the default [domain.Rack] implementation.
//
// A rack holds no storage or constraint logic of its own. Every operation is
// a sequence of before and after hooks, and plugins installed on those hooks
// store entries, lock them, resolve references and enforce unique keys.
package rack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/emitter"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/hooks"
)

// maxConflictRetries bounds how many times an update without a caller
// version is retried after losing a race with another writer.
const maxConflictRetries = 100

// ErrNameRequired is returned by [NewRack] when the name is empty.
var ErrNameRequired = errors.New("a name must be provided for a rack")

// Rack implements [domain.Rack].
type Rack struct {
	name    string
	schema  domain.Schema
	hooks   *hooks.Pipeline
	emitter domain.Emitter
	methods map[string]domain.RackMethod
	events  map[string]domain.Schema
	cmpr    domain.Comparer
	fn      domain.FieldNavigator
	logger  *slog.Logger
}

// NewRack returns a rack without any plugin. It cannot store anything until
// a backing store is installed on its hooks.
func NewRack(name string, schema domain.Schema, opts ...domain.RackOption) (domain.Rack, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	if schema == nil {
		return nil, fmt.Errorf("rack %s: a schema must be provided", name)
	}

	var options domain.RackOptions
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("rack", name))

	return &Rack{
		name:    name,
		schema:  schema,
		hooks:   hooks.NewPipeline(hooks.WithLogger(logger)),
		emitter: emitter.NewEmitter(emitter.WithLogger(logger)),
		methods: options.Methods,
		events:  options.Events,
		cmpr:    comparer.NewComparer(),
		fn:      fieldnavigator.NewFieldNavigator(data.NewDocument),
		logger:  logger,
	}, nil
}

// Name implements [domain.Rack].
func (r *Rack) Name() string {
	return r.name
}

// Schema implements [domain.Rack].
func (r *Rack) Schema() domain.Schema {
	return r.schema
}

// Hook implements [domain.Rack].
func (r *Rack) Hook(lifecycle domain.Lifecycle, operation domain.Operation, fn domain.HookFunc) {
	r.hooks.Hook(lifecycle, operation, fn)
}

// Trigger implements [domain.Rack].
func (r *Rack) Trigger(ctx context.Context, lifecycle domain.Lifecycle, operation domain.Operation, p *domain.Payload, rb *domain.Rollbacks) error {
	return r.hooks.Trigger(ctx, lifecycle, operation, p, rb)
}

// On implements [domain.Rack].
func (r *Rack) On(l domain.Listener) func() {
	return r.emitter.On(l)
}

func (r *Rack) emit(ctx context.Context, name string, payload any) {
	r.emitter.Emit(ctx, domain.Event{Name: name, Rack: r.name, Payload: payload})
}

func (r *Rack) options(opts []domain.OperationOption, op domain.Operation) domain.OperationOptions {
	var o domain.OperationOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.State == nil {
		o.State = &domain.State{}
	}
	if o.State.Method == "" {
		o.State.Method = op
	}
	return o
}

// fail runs the pending rollbacks of an operation that failed outside of a
// hook.
func (r *Rack) fail(ctx context.Context, rb *domain.Rollbacks, err error) error {
	if errs := rb.Run(ctx); len(errs) > 0 {
		r.logger.ErrorContext(ctx, "rollback failed", slog.Int("failures", len(errs)))
		return domain.ErrRollback{Hook: err, Errs: errs}
	}
	return err
}

func (r *Rack) consolidate(doc domain.Document) (domain.Document, error) {
	return r.schema.Parse(doc, domain.WithParseVirtuals(true))
}

func (r *Rack) object(v any) (domain.Document, error) {
	doc, err := data.NewDocument(v)
	if err != nil {
		return nil, domain.ErrInvalidEntry
	}
	return doc, nil
}

func (r *Rack) checkVersion(doc domain.Document) error {
	if !doc.Has("_v") {
		return nil
	}
	if _, ok := data.AsInt64(doc.Get("_v")); !ok {
		return domain.ErrInvalidVersion
	}
	return nil
}

// query turns anything that is not an object into a query by _id.
func (r *Rack) query(q any) (any, error) {
	if q == nil {
		return nil, nil
	}
	norm, err := data.Normalize(q)
	if err != nil {
		return nil, domain.ErrValidation{Reason: err.Error()}
	}
	if _, ok := norm.(domain.Document); ok {
		return norm, nil
	}
	return data.M{"_id": data.M{"$eq": norm}}, nil
}

func (r *Rack) sameID(a, b any) bool {
	c, err := r.cmpr.Compare(a, b)
	return err == nil && c == 0
}

// Create implements [domain.Rack].
func (r *Rack) Create(ctx context.Context, entry any, opts ...domain.OperationOption) (domain.Document, error) {
	o := r.options(opts, domain.OpCreate)

	in, err := r.object(entry)
	if err != nil {
		return nil, err
	}
	if err := r.checkVersion(in); err != nil {
		return nil, err
	}
	doc, err := r.schema.Parse(in, domain.WithParseIdentity(true))
	if err != nil {
		return nil, err
	}

	p := &domain.Payload{ID: doc.ID(), Entry: doc, State: o.State}
	rb := &domain.Rollbacks{}
	if err := r.Trigger(ctx, domain.Before, domain.OpCreate, p, rb); err != nil {
		return nil, err
	}
	if p.Entry, err = r.consolidate(p.Entry); err != nil {
		return nil, r.fail(ctx, rb, err)
	}
	if err := r.Trigger(ctx, domain.After, domain.OpCreate, p, rb); err != nil {
		return nil, err
	}

	r.emit(ctx, domain.EventCreate, p.Entry)
	return p.Entry, nil
}

// Read implements [domain.Rack]. The stored entry is parsed again, so
// changes to the result never reach the store.
func (r *Rack) Read(ctx context.Context, id any, opts ...domain.OperationOption) (domain.Document, error) {
	o := r.options(opts, domain.OpRead)

	found, err := r.FindOneByID(ctx, id, domain.WithState(o.State), domain.WithVersion(o.Version))
	if err != nil {
		return nil, err
	}

	p := &domain.Payload{ID: id, Entry: found, State: o.State}
	rb := &domain.Rollbacks{}
	if err := r.Trigger(ctx, domain.Before, domain.OpRead, p, rb); err != nil {
		return nil, err
	}
	if p.Entry, err = r.consolidate(p.Entry); err != nil {
		return nil, r.fail(ctx, rb, err)
	}
	if err := r.Trigger(ctx, domain.After, domain.OpRead, p, rb); err != nil {
		return nil, err
	}

	r.emit(ctx, domain.EventRead, p.Entry)
	return p.Entry, nil
}

// FindOneByID implements [domain.Rack]. The entry is returned as stored.
func (r *Rack) FindOneByID(ctx context.Context, id any, opts ...domain.OperationOption) (domain.Document, error) {
	o := r.options(opts, domain.OpFindOneByID)

	p := &domain.Payload{ID: id, Version: o.Version, State: o.State}
	rb := &domain.Rollbacks{}
	if err := r.Trigger(ctx, domain.Before, domain.OpFindOneByID, p, rb); err != nil {
		return nil, err
	}
	if err := r.Trigger(ctx, domain.After, domain.OpFindOneByID, p, rb); err != nil {
		return nil, err
	}
	if len(p.Result) == 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrNotFound, id)
	}
	return p.Result[0], nil
}

// List implements [domain.Rack].
func (r *Rack) List(ctx context.Context, query any, opts ...domain.OperationOption) ([]domain.Document, error) {
	o := r.options(opts, domain.OpList)

	q, err := r.query(query)
	if err != nil {
		return nil, err
	}

	p := &domain.Payload{
		Query: q,
		Sort:  o.Sort,
		Skip:  o.Skip,
		Limit: o.Limit,
		Raw:   o.Raw,
		State: o.State,
	}
	rb := &domain.Rollbacks{}
	if err := r.Trigger(ctx, domain.Before, domain.OpList, p, rb); err != nil {
		return nil, err
	}
	if !p.Raw {
		for n, doc := range p.Result {
			if p.Result[n], err = r.consolidate(doc); err != nil {
				return nil, r.fail(ctx, rb, err)
			}
		}
	}
	if err := r.Trigger(ctx, domain.After, domain.OpList, p, rb); err != nil {
		return nil, err
	}

	if !p.Raw {
		r.emit(ctx, domain.EventList, domain.ListEvent{Query: q, Result: p.Result})
	}
	if p.Result == nil {
		return []domain.Document{}, nil
	}
	return p.Result, nil
}

// Update implements [domain.Rack]. Each matching entry is written on its
// own. A patch without _v is retried against the latest version when
// another writer got there first.
func (r *Rack) Update(ctx context.Context, query any, patch any, opts ...domain.OperationOption) ([]domain.Document, error) {
	o := r.options(opts, domain.OpUpdate)

	q, err := r.query(query)
	if err != nil {
		return nil, err
	}
	changes, err := r.object(patch)
	if err != nil {
		return nil, err
	}
	if err := r.checkVersion(changes); err != nil {
		return nil, err
	}

	found, err := r.List(ctx, q, domain.WithRaw(true), domain.WithState(o.State))
	if err != nil {
		return nil, err
	}

	for _, old := range found {
		if changes.Has("_id") && !r.sameID(changes.ID(), old.ID()) {
			return nil, domain.ErrCannotModifyID
		}
		if changes.Has("_v") && !r.sameID(changes.Get("_v"), old.Get("_v")) {
			return nil, domain.ErrEntryVersionMismatch
		}
	}

	res := make([]domain.Document, 0, len(found))
	for _, old := range found {
		doc, err := r.updateOne(ctx, old, changes, o.State)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			res = append(res, doc)
		}
	}
	return res, nil
}

func (r *Rack) updateOne(ctx context.Context, old, changes domain.Document, st *domain.State) (domain.Document, error) {
	for attempt := 0; ; attempt++ {
		doc, err := r.tryUpdate(ctx, old, changes, st)
		if errors.Is(err, domain.ErrNotFound) {
			// deleted since it was listed
			return nil, nil
		}
		if err == nil || !errors.Is(err, domain.ErrEntryVersionMismatch) ||
			changes.Has("_v") || attempt >= maxConflictRetries {
			return doc, err
		}

		r.logger.DebugContext(ctx, "retrying update",
			slog.Any("id", old.ID()),
			slog.Int("attempt", attempt+1),
		)
		old, err = r.FindOneByID(ctx, old.ID(), domain.WithState(st))
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (r *Rack) tryUpdate(ctx context.Context, old, changes domain.Document, st *domain.State) (domain.Document, error) {
	if changes.Has("_v") && !r.sameID(changes.Get("_v"), old.Get("_v")) {
		return nil, domain.ErrEntryVersionMismatch
	}

	merged, err := r.merge(old, changes)
	if err != nil {
		return nil, err
	}
	entry, err := r.schema.Parse(merged)
	if err != nil {
		return nil, err
	}

	if c, err := r.cmpr.Compare(entry, old); err == nil && c == 0 {
		return r.consolidate(old)
	}

	version, _ := data.AsInt64(old.Get("_v"))
	entry.Set("_v", version+1)

	newEntry, err := data.NewDocument(changes)
	if err != nil {
		return nil, err
	}
	st.OldEntry = old
	p := &domain.Payload{
		ID:       old.ID(),
		OldEntry: old,
		NewEntry: newEntry,
		Entry:    entry,
		State:    st,
	}
	rb := &domain.Rollbacks{}
	if err := r.Trigger(ctx, domain.Before, domain.OpUpdate, p, rb); err != nil {
		return nil, err
	}
	consolidated, err := r.consolidate(p.Entry)
	if err != nil {
		return nil, r.fail(ctx, rb, err)
	}
	if err := r.Trigger(ctx, domain.After, domain.OpUpdate, p, rb); err != nil {
		return nil, err
	}

	r.emit(ctx, domain.EventUpdate, domain.UpdateEvent{
		OldEntry: old,
		NewEntry: newEntry,
		Entry:    consolidated,
	})
	return consolidated, nil
}

// merge writes changes over a copy of doc. Dotted keys reach nested fields.
func (r *Rack) merge(doc, changes domain.Document) (domain.Document, error) {
	res, err := data.NewDocument(doc)
	if err != nil {
		return nil, err
	}
	for k, v := range changes.Iter() {
		if k == "_v" {
			continue
		}
		val, err := data.Normalize(v)
		if err != nil {
			return nil, err
		}
		if !strings.Contains(k, ".") {
			res.Set(k, val)
			continue
		}
		addr, err := r.fn.GetAddress(k)
		if err != nil {
			return nil, domain.ErrValidation{Path: k, Reason: err.Error()}
		}
		gss, err := r.fn.EnsureField(res, addr...)
		if err != nil {
			return nil, domain.ErrValidation{Path: k, Reason: err.Error()}
		}
		gss[0].Set(val)
	}
	return res, nil
}

// Delete implements [domain.Rack].
func (r *Rack) Delete(ctx context.Context, query any, opts ...domain.OperationOption) ([]domain.Document, error) {
	o := r.options(opts, domain.OpDelete)

	q, err := r.query(query)
	if err != nil {
		return nil, err
	}

	p := &domain.Payload{Query: q, State: o.State}
	rb := &domain.Rollbacks{}
	if err := r.Trigger(ctx, domain.Before, domain.OpDeleteMultiple, p, rb); err != nil {
		return nil, err
	}
	found, err := r.List(ctx, q, domain.WithRaw(true), domain.WithState(o.State))
	if err != nil {
		return nil, r.fail(ctx, rb, err)
	}

	removed := make([]domain.Document, 0, len(found))
	for _, doc := range found {
		gone, err := r.deleteOne(ctx, doc, o.State)
		if err != nil {
			return nil, r.fail(ctx, rb, err)
		}
		if gone != nil {
			removed = append(removed, gone)
		}
	}

	p.Result = removed
	if err := r.Trigger(ctx, domain.After, domain.OpDeleteMultiple, p, rb); err != nil {
		return nil, err
	}
	return p.Result, nil
}

func (r *Rack) deleteOne(ctx context.Context, doc domain.Document, st *domain.State) (domain.Document, error) {
	p := &domain.Payload{ID: doc.ID(), Entry: doc, State: st}
	rb := &domain.Rollbacks{}
	if err := r.Trigger(ctx, domain.Before, domain.OpDelete, p, rb); err != nil {
		return nil, err
	}

	gone, err := r.DeleteByID(ctx, doc.ID(), domain.WithState(st))
	if errors.Is(err, domain.ErrNotFound) {
		gone, err = nil, nil
	}
	if err != nil {
		return nil, r.fail(ctx, rb, err)
	}
	if gone != nil {
		p.Entry = gone
	}

	if err := r.Trigger(ctx, domain.After, domain.OpDelete, p, rb); err != nil {
		return nil, err
	}
	if gone != nil {
		r.emit(ctx, domain.EventDelete, gone)
	}
	return gone, nil
}

// DeleteByID implements [domain.Rack]. It removes the entry without taking
// its lock or emitting events.
func (r *Rack) DeleteByID(ctx context.Context, id any, opts ...domain.OperationOption) (domain.Document, error) {
	o := r.options(opts, domain.OpDeleteByID)

	p := &domain.Payload{ID: id, State: o.State}
	rb := &domain.Rollbacks{}
	if err := r.Trigger(ctx, domain.Before, domain.OpDeleteByID, p, rb); err != nil {
		return nil, err
	}
	if err := r.Trigger(ctx, domain.After, domain.OpDeleteByID, p, rb); err != nil {
		return nil, err
	}
	if len(p.Result) == 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrNotFound, id)
	}
	return p.Result[0], nil
}
