package domain

import "log/slog"

// WithQuery sets the query criteria for a [Querier.Query] call.
func WithQuery(q any) QueryOption {
	return func(qo *QueryOptions) {
		qo.Query = q
	}
}

// WithQuerySort sets the sort order for query results.
func WithQuerySort(s Sort) QueryOption {
	return func(qo *QueryOptions) {
		qo.Sort = s
	}
}

// WithQuerySkip sets the number of documents to skip in query results.
func WithQuerySkip(s int64) QueryOption {
	return func(qo *QueryOptions) {
		qo.Skip = s
	}
}

// WithQueryLimit sets the maximum number of documents to return.
func WithQueryLimit(l int64) QueryOption {
	return func(qo *QueryOptions) {
		qo.Limit = l
	}
}

// QueryOption configures a query through the functional options pattern.
type QueryOption func(*QueryOptions)

// QueryOptions contains parameters for customizing query execution.
type QueryOptions struct {
	// Query filters the documents. Nil matches every document.
	Query any
	// Sort specifies the sort order for results.
	Sort Sort
	// Skip specifies the number of documents to skip.
	Skip int64
	// Limit specifies the maximum number of documents to return. Zero
	// means no limit.
	Limit int64
}

// WithState shares a [State] with the hooks of the operation.
func WithState(s *State) OperationOption {
	return func(oo *OperationOptions) {
		oo.State = s
	}
}

// WithVersion pins the entry version looked up by FindOneByID.
func WithVersion(v int64) OperationOption {
	return func(oo *OperationOptions) {
		oo.Version = v
	}
}

// WithRaw skips consolidation and the events of list operations.
func WithRaw(r bool) OperationOption {
	return func(oo *OperationOptions) {
		oo.Raw = r
	}
}

// WithSort sets the sort order of a list operation.
func WithSort(s Sort) OperationOption {
	return func(oo *OperationOptions) {
		oo.Sort = s
	}
}

// WithSkip sets the number of entries skipped by a list operation.
func WithSkip(s int64) OperationOption {
	return func(oo *OperationOptions) {
		oo.Skip = s
	}
}

// WithLimit sets the maximum number of entries returned by a list
// operation.
func WithLimit(l int64) OperationOption {
	return func(oo *OperationOptions) {
		oo.Limit = l
	}
}

// OperationOption configures a rack operation.
type OperationOption func(*OperationOptions)

// OperationOptions contains parameters for customizing rack operations. Each
// operation reads only the fields that apply to it.
type OperationOptions struct {
	State   *State
	Version int64
	Raw     bool
	Sort    Sort
	Skip    int64
	Limit   int64
}

// WithParseVirtuals includes the values of virtual getters in parsed
// documents.
func WithParseVirtuals(v bool) ParseOption {
	return func(po *ParseOptions) {
		po.Virtuals = v
	}
}

// WithParseIdentity makes Parse fill the reserved _id and _v fields.
func WithParseIdentity(i bool) ParseOption {
	return func(po *ParseOptions) {
		po.Identity = i
	}
}

// ParseOption configures [Schema.Parse].
type ParseOption func(*ParseOptions)

// ParseOptions contains parameters for customizing parsing.
type ParseOptions struct {
	Virtuals bool
	Identity bool
}

// WithRackMethods sets the methods exposed by a rack.
func WithRackMethods(m map[string]RackMethod) RackOption {
	return func(ro *RackOptions) {
		ro.Methods = m
	}
}

// WithRackEvents declares the events a rack can dispatch and their payload
// schemas.
func WithRackEvents(e map[string]Schema) RackOption {
	return func(ro *RackOptions) {
		ro.Events = e
	}
}

// WithRackLogger sets the logger used by a rack.
func WithRackLogger(l *slog.Logger) RackOption {
	return func(ro *RackOptions) {
		ro.Logger = l
	}
}

// RackOption configures a rack.
type RackOption func(*RackOptions)

// RackOptions contains parameters for customizing a rack.
type RackOptions struct {
	Methods map[string]RackMethod
	Events  map[string]Schema
	Logger  *slog.Logger
}
