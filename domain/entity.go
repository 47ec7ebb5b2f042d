package domain

import (
	"context"
	"sync"
)

// Sort represents an ordered list of fields which should be used to sort query
// results. Higher priority keys come first.
type Sort = []SortName

// SortName represents a single field and the order which should be used to sort
// it. A positive Order value means ascending order and a negative value means
// descending order. Zero keeps the current order.
type SortName struct {
	Key   string
	Order int64
}

// DocumentFactory represents a function that constructs [Document] instances
// from structured data types. If nil is provided, returns an empty document.
type DocumentFactory = func(any) (Document, error)

// Lifecycle tells whether a hook runs before or after an operation.
type Lifecycle string

// Lifecycles.
const (
	Before Lifecycle = "before"
	After  Lifecycle = "after"
)

// Operation names a rack operation that hooks can be attached to.
type Operation string

// Operations that trigger hooks.
const (
	OpCreate         Operation = "create"
	OpRead           Operation = "read"
	OpUpdate         Operation = "update"
	OpDelete         Operation = "delete"
	OpDeleteMultiple Operation = "deleteMultiple"
	OpDeleteByID     Operation = "deleteById"
	OpFindOneByID    Operation = "findOneById"
	OpList           Operation = "list"
	OpApply          Operation = "apply"
)

// Event names emitted by racks.
const (
	EventCreate = "create"
	EventRead   = "read"
	EventUpdate = "update"
	EventDelete = "delete"
	EventList   = "list"
	EventMethod = "method"
)

// HookFunc is a lifecycle hook. Hooks can mutate the payload and push
// compensating actions to the rollback list. A returned error aborts the
// operation.
type HookFunc func(ctx context.Context, p *Payload, rb *Rollbacks) error

// Rollbacks is the list of compensating actions queued by hooks during one
// operation. It is safe for concurrent use.
type Rollbacks struct {
	mu  sync.Mutex
	fns []func(context.Context) error
}

// Push queues a compensating action.
func (r *Rollbacks) Push(fn func(context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns = append(r.fns, fn)
}

// Len returns the number of pending actions.
func (r *Rollbacks) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fns)
}

// Run executes every pending action, last pushed first, and empties the
// list. Each action runs at most once.
func (r *Rollbacks) Run(ctx context.Context) []error {
	r.mu.Lock()
	fns := r.fns
	r.fns = nil
	r.mu.Unlock()

	var errs []error
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// State is shared by every hook of an operation and by the operations it
// nests, like the update run by apply.
type State struct {
	// Method is the outermost operation being executed.
	Method Operation
	// SkipLock tells the lock plugin the entry is already locked.
	SkipLock bool
	// OldEntry is the entry being replaced by the current update.
	OldEntry Document

	values map[string]any
}

// Set stores an arbitrary value for other hooks.
func (s *State) Set(key string, value any) {
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[key] = value
}

// Get returns a value stored with Set.
func (s *State) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Payload is the single mutable object handed to every hook of a trigger.
// Each operation fills only the fields it uses.
type Payload struct {
	ID      any
	Version int64
	Query   any
	Sort    Sort
	Skip    int64
	Limit   int64
	Raw     bool

	Entry    Document
	OldEntry Document
	NewEntry Document
	Result   []Document
	State    *State

	Method        string
	Path          string
	Input         any
	Err           error
	MethodResult  any
	EntryResult   Document
	EventsTrapped []TrappedEvent
}

// TrappedEvent is an event emitted by an entry method while it was applied.
type TrappedEvent struct {
	Event   string
	Payload []any
}

// Event is delivered to rack and registry listeners.
type Event struct {
	// Name is the event name.
	Name string
	// Rack is the name of the rack that emitted the event.
	Rack string
	// Payload depends on the event. See [UpdateEvent], [ListEvent] and
	// [MethodEvent].
	Payload any
}

// Listener receives events.
type Listener func(ctx context.Context, e Event)

// UpdateEvent is the payload of the update event.
type UpdateEvent struct {
	OldEntry Document
	NewEntry Document
	Entry    Document
}

// ListEvent is the payload of the list event.
type ListEvent struct {
	Query  any
	Result []Document
}

// MethodEvent is the payload of events emitted by entry methods once the
// entry has been stored.
type MethodEvent struct {
	Event   string
	Path    string
	Entry   Document
	Payload []any
}

// FieldType names the type of a schema field.
type FieldType string

// Field types.
const (
	TypeAny     FieldType = "any"
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
	TypeID      FieldType = "id"
)

// Field describes a schema field.
type Field struct {
	// Type of the value. Empty means [TypeAny].
	Type FieldType
	// Required rejects entries without this field.
	Required bool
	// Default is used when the field is absent. Functions with signature
	// func() any are called.
	Default any
	// Unique is either a bool, meaning a key named after the field path,
	// or a string naming a key shared by several fields.
	Unique any
	// Rack names the rack this field references.
	Rack string
	// Fields are the nested fields of an object.
	Fields map[string]Field
	// Items describes the elements of an array.
	Items *Field
	// Validate runs after the type check.
	Validate func(any) error
}

// Virtual is a computed field.
type Virtual struct {
	Get func(Document) any
	Set func(Document, any) error
}

// Method is an entry method. Events lists the events the method may emit.
type Method struct {
	Events  []string
	Handler func(ctx context.Context, m Model, payload any) (any, error)
}

// RackMethod is a method exposed by the rack itself.
type RackMethod struct {
	Input   Schema
	Output  Schema
	Handler func(ctx context.Context, r Rack, input any) (any, error)
}

// ApplyRequest describes a call to an entry method.
type ApplyRequest struct {
	ID any
	// Version pins the entry version when greater than zero.
	Version int64
	// Path of the object the method is declared on. Empty means root.
	Path     string
	Method   string
	Payload  any
	Validate func(Document) error
	State    *State
}

// ApplyResult is returned by a successful apply.
type ApplyResult struct {
	MethodResult     any
	EntryResult      Document
	EventsDispatched []TrappedEvent
}

// PluginParams is passed to plugins when a rack is registered.
type PluginParams struct {
	Registry Registry
	Rack     Rack
}

// Plugin installs hooks on a rack.
type Plugin func(ctx context.Context, p PluginParams) error
