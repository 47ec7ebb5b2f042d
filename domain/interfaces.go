// Package domain contains domain-specific interfaces and option types for
// rackdb.
//
// This package defines the core interfaces that must be implemented by
// adapters, as well as the payload, state and event types that flow through
// the hook pipeline of every rack.
package domain

import (
	"context"
	"iter"
	"time"
)

// Decoder converts between different data representations.
type Decoder interface {
	// Decode converts from one data format to another.
	Decode(any, any) error
}

// Comparer provides ordering and comparison operations for different data
// types.
type Comparer interface {
	// Compare returns -1, 0, or 1 based on the comparison of two values.
	Compare(any, any) (int, error)
	// Comparable returns true if two values can be compared.
	Comparable(any, any) bool
}

// TimeGetter provides current time for timestamping operations.
type TimeGetter interface {
	// GetTime returns the current time.
	GetTime() time.Time
}

// IDGenerator creates identifiers for new entries.
type IDGenerator interface {
	// GenerateID returns a new unique identifier.
	GenerateID() (string, error)
}

// Getter represents a value that can be treated as undefined.
type Getter interface {
	// Get returns the value for the given address and a bool that indicates
	// whether the value counts as defined or not. If an address points to
	// an unset key in a document, or an out of bounds index in an array or
	// any address within a primitive value ([string], [bool], etc.), it
	// counts as undefined. If a value is explicitly [nil], it will not
	// count as undefined.
	Get() (value any, defined bool)
}

// GetSetter represents a value in a [Document]. It will be returned by
// [FieldNavigator] so things like identifying unset values becomes easier.
// Default GetSetter IS NOT concurrency safe.
type GetSetter interface {
	Getter
	// Set will set a new value for the address.
	Set(any)
	// Unset removes the given value from the parent item (object or array).
	Unset()
}

// FieldNavigator provides field access operations with dot notation support.
type FieldNavigator interface {
	// GetField extracts values from nested documents, following path parts.
	// The returned bool reports whether an array was expanded on the way.
	GetField(any, ...string) ([]GetSetter, bool, error)
	// EnsureField works like GetField but creates missing intermediate
	// documents.
	EnsureField(any, ...string) ([]GetSetter, error)
	// GetAddress splits a dotted address into its parts.
	GetAddress(field string) ([]string, error)
}

// Document represents an entry stored in a rack. Document is read by one
// goroutine at a time and doesn't need to be concurrency safe.
type Document interface {
	// ID returns the document ID, if any.
	ID() any
	// D returns the subdocument for the given key, if any.
	D(string) Document
	// Get returns the value under the given key, or nil if unset.
	Get(string) any
	// Set sets the value under the given key.
	Set(string, any)
	// Unset unsets the value under the given key.
	Unset(string)
	// Iter returns an unordered sequence of key-value pairs in the
	// document.
	Iter() iter.Seq2[string, any]
	// Keys returns an unordered sequence of keys in the document.
	Keys() iter.Seq[string]
	// Values returns an unordered sequence of values in the document.
	Values() iter.Seq[any]
	// Has reports whether a value is set under the given key.
	Has(string) bool
	// Len returns the number of set fields in the document.
	Len() int
}

// Matcher evaluates whether values match query criteria.
type Matcher interface {
	// Match returns true if the value matches the query.
	Match(any, any) (bool, error)
}

// Sorter orders documents by a list of sort criteria.
type Sorter interface {
	// Sort returns a sorted copy of the given documents.
	Sort([]Document, Sort) ([]Document, error)
}

// Querier filters, sorts and paginates a set of documents.
type Querier interface {
	// Query returns the documents matching the given options.
	Query([]Document, ...QueryOption) ([]Document, error)
}

// Schema parses raw input into entries and describes their fields.
type Schema interface {
	// Parse validates and casts input into a new [Document], applying
	// defaults.
	Parse(input any, opts ...ParseOption) (Document, error)
	// Paths returns every declared field path in dot notation, sorted.
	Paths() []string
	// Field returns the settings of the field at the given path.
	Field(path string) (Field, bool)
	// Methods returns the entry methods declared for the object at path.
	// An empty path refers to the root.
	Methods(path string) map[string]Method
	// Model wraps a parsed document into a typed accessor.
	Model(doc Document) Model
}

// Model exposes typed access to a parsed document. Only declared paths and
// virtuals can be read or written.
type Model interface {
	// Get returns the value at the given path.
	Get(path string) (any, error)
	// Set validates and writes a value at the given path.
	Set(path string, value any) error
	// At returns a Model scoped to the object at the given path.
	At(path string) (Model, error)
	// Emit signals an event to the subscribers registered with OnEmit.
	Emit(event string, payload ...any) error
	// OnEmit registers a subscriber for emitted events.
	OnEmit(func(event string, payload []any) error)
	// Document returns the underlying document.
	Document() Document
}

// Emitter delivers rack events to listeners.
type Emitter interface {
	// On registers a listener and returns a function that removes it.
	On(Listener) func()
	// Emit delivers the event to every registered listener.
	Emit(context.Context, Event)
}

// Rack is a named collection of versioned entries. Every mutation goes
// through the rack hook pipeline, which is also how plugins add behavior.
type Rack interface {
	// Name returns the rack name.
	Name() string
	// Schema returns the schema used to parse entries.
	Schema() Schema
	// Hook registers fn to run on the given lifecycle of operation.
	Hook(Lifecycle, Operation, HookFunc)
	// Trigger runs every hook registered for lifecycle and operation.
	Trigger(context.Context, Lifecycle, Operation, *Payload, *Rollbacks) error
	// On subscribes a listener to every event emitted by the rack.
	On(Listener) func()

	// Create parses and stores a new entry.
	Create(ctx context.Context, entry any, opts ...OperationOption) (Document, error)
	// Read returns the entry with the given id.
	Read(ctx context.Context, id any, opts ...OperationOption) (Document, error)
	// Update merges patch into every entry matching query.
	Update(ctx context.Context, query any, patch any, opts ...OperationOption) ([]Document, error)
	// Delete removes every entry matching query.
	Delete(ctx context.Context, query any, opts ...OperationOption) ([]Document, error)
	// DeleteByID removes the entry with the given id.
	DeleteByID(ctx context.Context, id any, opts ...OperationOption) (Document, error)
	// FindOneByID returns the stored entry with the given id, optionally
	// pinned to a version.
	FindOneByID(ctx context.Context, id any, opts ...OperationOption) (Document, error)
	// List returns every entry matching query.
	List(ctx context.Context, query any, opts ...OperationOption) ([]Document, error)
	// Apply runs an entry method and stores the resulting entry.
	Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error)
	// Call runs a rack method.
	Call(ctx context.Context, method string, input any) (any, error)
	// Dispatch validates and emits a declared rack event.
	Dispatch(ctx context.Context, event string, payload any) error
}

// Registry holds every rack of a store and the plugins installed on them.
type Registry interface {
	// Init creates a rack with the given schema and registers it.
	Init(ctx context.Context, name string, schema Schema, opts ...RackOption) (Rack, error)
	// Register installs plugins on an existing rack and registers it.
	Register(ctx context.Context, rack Rack) error
	// RemoveRack unregisters the rack with the given name.
	RemoveRack(name string) error
	// Rack returns the rack with the given name.
	Rack(name string) (Rack, error)
	// ListRacks returns the names of every registered rack, sorted.
	ListRacks() []string
	// Plugin adds a plugin that will be installed on racks registered
	// from now on.
	Plugin(Plugin)
	// On subscribes a listener to the events of every rack.
	On(Listener) func()
	// Shutdown releases every rack and listener.
	Shutdown(ctx context.Context) error
}
