// Package rackdb provides versioned, schema-validated document racks with
// lifecycle hooks, entry methods and events.
//
// The basic usage starts with opening a [Store], which can be done by calling
// [Open], and declaring racks on it with [Store.Init]. Every rack is created
// with the default plugins: locking, reference checks, unique keys and
// in-memory storage.
package rackdb

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/metrics"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/registry"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/schema"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/statelogger"
)

var (
	// ErrNotFound is returned when no entry has the requested id.
	ErrNotFound = domain.ErrNotFound
	// ErrInvalidEntry is returned when an operation is given something
	// that is not an object where an entry is expected.
	ErrInvalidEntry = domain.ErrInvalidEntry
	// ErrInvalidVersion is returned when an entry carries an _v that is not
	// an integer.
	ErrInvalidVersion = domain.ErrInvalidVersion
	// ErrEntryVersionMismatch is returned when an update names an _v other
	// than the stored one.
	ErrEntryVersionMismatch = domain.ErrEntryVersionMismatch
	// ErrCannotModifyID is returned when an update would change an _id.
	ErrCannotModifyID = domain.ErrCannotModifyID
	// ErrEntryExists is returned when creating an entry whose _id is
	// already taken.
	ErrEntryExists = domain.ErrEntryExists
	// ErrRegistryClosed is returned by a [Store] after [Store.Shutdown].
	ErrRegistryClosed = domain.ErrRegistryClosed
	// ErrMixedOperators is returned when a query object mixes operators and
	// fields.
	ErrMixedOperators = domain.ErrMixedOperators
)

// ErrUnknownOperator is returned for query operators that are not supported.
type ErrUnknownOperator = domain.ErrUnknownOperator

// ErrValidation is returned when input does not match a rack schema.
type ErrValidation = domain.ErrValidation

// ErrLockTimeout is returned when a rack lock could not be acquired in time.
type ErrLockTimeout = domain.ErrLockTimeout

// ErrReferenceNotFound is returned when a field references an entry that
// does not exist.
type ErrReferenceNotFound = domain.ErrReferenceNotFound

// ErrUniqueConstraint names the unique keys an entry collided on.
type ErrUniqueConstraint = domain.ErrUniqueConstraint

// ErrHook wraps an error returned by a hook.
type ErrHook = domain.ErrHook

// ErrMethod wraps an error returned by an entry method.
type ErrMethod = domain.ErrMethod

// ErrRackMethod wraps an error returned by a rack method.
type ErrRackMethod = domain.ErrRackMethod

// ErrEvent is returned when an event is not declared or its payload is
// invalid.
type ErrEvent = domain.ErrEvent

// ErrRackExists is returned when registering a rack name twice.
type ErrRackExists = domain.ErrRackExists

// ErrRackNotFound is returned when looking up an unknown rack.
type ErrRackNotFound = domain.ErrRackNotFound

type (
	// M is the document representation used by racks.
	M = data.M
	// Document is a stored entry.
	Document = domain.Document
	// Rack is a named collection of versioned entries.
	Rack = domain.Rack
	// Schema parses raw input into entries.
	Schema = domain.Schema
	// Model gives entry methods typed access to an entry.
	Model = domain.Model
	// Field describes a schema field.
	Field = domain.Field
	// FieldType names the type of a schema field.
	FieldType = domain.FieldType
	// Virtual is a computed field.
	Virtual = domain.Virtual
	// Method is an entry method.
	Method = domain.Method
	// RackMethod is a method called on the rack itself.
	RackMethod = domain.RackMethod
	// ApplyRequest describes an entry method call.
	ApplyRequest = domain.ApplyRequest
	// ApplyResult is the outcome of [Rack.Apply].
	ApplyResult = domain.ApplyResult
	// Plugin adds behavior to racks as they are registered.
	Plugin = domain.Plugin
	// PluginParams are given to every [Plugin].
	PluginParams = domain.PluginParams
	// HookFunc is a lifecycle hook.
	HookFunc = domain.HookFunc
	// Payload is what hooks receive and can change.
	Payload = domain.Payload
	// Rollbacks collects compensating actions of an operation.
	Rollbacks = domain.Rollbacks
	// Event is delivered to listeners.
	Event = domain.Event
	// Listener receives events.
	Listener = domain.Listener
	// Sort lists the keys entries are ordered by.
	Sort = domain.Sort
	// SortName is one sort key.
	SortName = domain.SortName
	// OperationOption configures a rack operation.
	OperationOption = domain.OperationOption
	// RackOption configures a rack.
	RackOption = domain.RackOption
	// SchemaOption configures a schema.
	SchemaOption = schema.Option
	// Option configures a [Store].
	Option = registry.Option
)

// Field types.
const (
	TypeAny     = domain.TypeAny
	TypeString  = domain.TypeString
	TypeNumber  = domain.TypeNumber
	TypeBoolean = domain.TypeBoolean
	TypeDate    = domain.TypeDate
	TypeArray   = domain.TypeArray
	TypeObject  = domain.TypeObject
	TypeID      = domain.TypeID
)

// Lifecycles.
const (
	Before = domain.Before
	After  = domain.After
)

// Operations hooks can be attached to.
const (
	OpCreate         = domain.OpCreate
	OpRead           = domain.OpRead
	OpUpdate         = domain.OpUpdate
	OpDelete         = domain.OpDelete
	OpDeleteMultiple = domain.OpDeleteMultiple
	OpDeleteByID     = domain.OpDeleteByID
	OpFindOneByID    = domain.OpFindOneByID
	OpList           = domain.OpList
	OpApply          = domain.OpApply
)

// Store holds racks and the plugins installed on them.
type Store struct {
	*registry.Registry
}

// Open creates a new Store with the provided options:
//
// - [WithLockTimeout]: how long an operation waits for a rack lock.
//
// - [WithIDType]: "objectid" or "uuid" generated _id values.
//
// - [WithLogger]: logger given to every rack and plugin.
//
// - [WithPlugins]: extra plugins installed on every rack.
//
// - [WithoutDefaultPlugins]: skip the default plugins, including storage.
func Open(opts ...Option) (*Store, error) {
	reg, err := registry.NewRegistry(opts...)
	if err != nil {
		return nil, err
	}
	return &Store{Registry: reg}, nil
}

// NewSchema creates a schema whose missing _id values are generated the way
// the store was configured to.
func (s *Store) NewSchema(fields map[string]Field, opts ...SchemaOption) Schema {
	opts = append([]SchemaOption{schema.WithIDGenerator(s.IDGenerator())}, opts...)
	return schema.NewSchema(fields, opts...)
}

// Define creates a schema with [Store.NewSchema] and a rack using it.
func (s *Store) Define(ctx context.Context, name string, fields map[string]Field, opts ...SchemaOption) (Rack, error) {
	return s.Init(ctx, name, s.NewSchema(fields, opts...))
}

var defaultDecoder = decoder.NewDecoder()

// Decode copies an entry into target, which must be a non-nil pointer.
// Struct fields are matched by their `rackdb` tag or, without one,
// by name.
func Decode(entry any, target any) error {
	return defaultDecoder.Decode(entry, target)
}

// WithLockTimeout sets how long operations wait for a rack lock.
func WithLockTimeout(d time.Duration) Option { return registry.WithLockTimeout(d) }

// WithIDType sets the type of generated _id values.
func WithIDType(t string) Option { return registry.WithIDType(t) }

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option { return registry.WithLogger(l) }

// WithPlugins adds plugins installed on every rack.
func WithPlugins(p ...Plugin) Option { return registry.WithPlugins(p...) }

// WithoutDefaultPlugins skips the default plugins.
func WithoutDefaultPlugins() Option { return registry.WithoutDefaultPlugins() }

// WithVirtuals sets computed fields, keyed by their dotted path.
func WithVirtuals(v map[string]Virtual) SchemaOption { return schema.WithVirtuals(v) }

// WithMethods declares entry methods on the object at path.
func WithMethods(path string, m map[string]Method) SchemaOption {
	return schema.WithMethods(path, m)
}

// WithRackMethods declares rack methods.
func WithRackMethods(m map[string]RackMethod) RackOption { return domain.WithRackMethods(m) }

// WithRackEvents declares rack events and the schemas of their payloads.
func WithRackEvents(e map[string]Schema) RackOption { return domain.WithRackEvents(e) }

// WithVersion pins a lookup to an entry version.
func WithVersion(v int64) OperationOption { return domain.WithVersion(v) }

// WithRaw skips virtuals, reference loading and list events.
func WithRaw(r bool) OperationOption { return domain.WithRaw(r) }

// WithSort orders listed entries.
func WithSort(s Sort) OperationOption { return domain.WithSort(s) }

// WithSkip skips the first listed entries.
func WithSkip(n int64) OperationOption { return domain.WithSkip(n) }

// WithLimit limits the number of listed entries.
func WithLimit(n int64) OperationOption { return domain.WithLimit(n) }

// MetricsPlugin exports operation counts, latencies and entry counts of
// every rack to reg.
func MetricsPlugin(reg prometheus.Registerer) Plugin { return metrics.NewPlugin(reg) }

// StateLogPlugin records every applied entry method in the
// "state-mutations" rack.
func StateLogPlugin(logger *slog.Logger) Plugin {
	return statelogger.NewPlugin(statelogger.WithLogger(logger))
}
