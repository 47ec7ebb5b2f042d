package schema

import (
	"slices"
	"sync"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/data"
)

type emitter struct {
	mu  sync.Mutex
	fns []func(string, []any) error
}

// Model implements [domain.Model] over a parsed document. Every path is
// relative to the object the model is scoped to.
type Model struct {
	schema  *Schema
	root    domain.Document
	prefix  string
	emitter *emitter
}

func (m *Model) full(path string) string {
	return join(m.prefix, path)
}

// Get implements [domain.Model].
func (m *Model) Get(path string) (any, error) {
	full := m.full(path)
	if v, ok := m.schema.virtuals[full]; ok && v.Get != nil {
		parent, _, ok := m.schema.parent(m.root, full)
		if !ok {
			return nil, nil
		}
		return v.Get(parent), nil
	}
	if _, ok := m.schema.flat[full]; !ok && full != IDField && full != VersionField {
		return nil, domain.ErrUnknownPath{Path: full}
	}
	return m.value(full)
}

func (m *Model) value(full string) (any, error) {
	addr, err := m.schema.fn.GetAddress(full)
	if err != nil {
		return nil, err
	}
	gss, _, err := m.schema.fn.GetField(m.root, addr...)
	if err != nil {
		return nil, err
	}
	v, _ := gss[0].Get()
	return v, nil
}

// Set implements [domain.Model]. Values are validated against the field
// before being written.
func (m *Model) Set(path string, value any) error {
	full := m.full(path)
	switch full {
	case IDField:
		return domain.ErrCannotModifyID
	case VersionField:
		return domain.ErrValidation{Path: full, Reason: "read only"}
	}

	if v, ok := m.schema.virtuals[full]; ok && v.Set != nil {
		parent, _, ok := m.schema.parent(m.root, full)
		if !ok {
			return domain.ErrValidation{Path: full, Reason: "missing parent object"}
		}
		return v.Set(parent, value)
	}

	f, ok := m.schema.flat[full]
	if !ok {
		return domain.ErrUnknownPath{Path: full}
	}

	norm, err := data.Normalize(value)
	if err != nil {
		return domain.ErrValidation{Path: full, Reason: err.Error()}
	}
	val, _, err := m.schema.parseValue(full, f, norm, true)
	if err != nil {
		return err
	}

	addr, err := m.schema.fn.GetAddress(full)
	if err != nil {
		return err
	}
	gss, err := m.schema.fn.EnsureField(m.root, addr...)
	if err != nil {
		return domain.ErrValidation{Path: full, Reason: err.Error()}
	}
	gss[0].Set(val)
	return nil
}

// At implements [domain.Model]. A missing object is created empty.
func (m *Model) At(path string) (domain.Model, error) {
	if path == "" {
		return m, nil
	}
	full := m.full(path)
	f, ok := m.schema.flat[full]
	if !ok {
		return nil, domain.ErrUnknownPath{Path: full}
	}
	if typeOf(f) != domain.TypeObject {
		return nil, domain.ErrValidation{Path: full, Reason: "not an object"}
	}

	addr, err := m.schema.fn.GetAddress(full)
	if err != nil {
		return nil, err
	}
	gss, err := m.schema.fn.EnsureField(m.root, addr...)
	if err != nil {
		return nil, domain.ErrValidation{Path: full, Reason: err.Error()}
	}
	if v, _ := gss[0].Get(); v == nil {
		gss[0].Set(data.M{})
	} else if _, isDoc := v.(domain.Document); !isDoc {
		return nil, domain.ErrValidation{Path: full, Reason: "not an object"}
	}

	return &Model{
		schema:  m.schema,
		root:    m.root,
		prefix:  full,
		emitter: m.emitter,
	}, nil
}

// Emit implements [domain.Model]. Subscribers run in registration order and
// the first failure stops the delivery.
func (m *Model) Emit(event string, payload ...any) error {
	m.emitter.mu.Lock()
	fns := slices.Clone(m.emitter.fns)
	m.emitter.mu.Unlock()

	for _, fn := range fns {
		if err := fn(event, payload); err != nil {
			return err
		}
	}
	return nil
}

// OnEmit implements [domain.Model]. Scoped models share subscribers with the
// model they come from.
func (m *Model) OnEmit(fn func(event string, payload []any) error) {
	m.emitter.mu.Lock()
	defer m.emitter.mu.Unlock()
	m.emitter.fns = append(m.emitter.fns, fn)
}

// Document implements [domain.Model].
func (m *Model) Document() domain.Document {
	if m.prefix == "" {
		return m.root
	}
	v, err := m.value(m.prefix)
	if err != nil {
		return nil
	}
	doc, _ := v.(domain.Document)
	return doc
}
