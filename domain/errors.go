package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidEntry is returned when an entry is not an object.
	ErrInvalidEntry = errors.New("an entry must be provided")
	// ErrInvalidVersion is returned when an entry carries a non numeric
	// version.
	ErrInvalidVersion = errors.New("invalid entry version")
	// ErrCannotModifyID is returned when a patch changes the entry id.
	ErrCannotModifyID = errors.New("_id's cannot be modified")
	// ErrEntryVersionMismatch is returned when the given version differs
	// from the stored one.
	ErrEntryVersionMismatch = errors.New("entry version mismatch")
	// ErrEntryExists is returned when storing an entry whose id is taken.
	ErrEntryExists = errors.New("entry already exists")
	// ErrRegistryClosed is returned after Shutdown.
	ErrRegistryClosed = errors.New("registry is closed")
	// ErrMixedOperators is returned by the matcher when an object mixes
	// operators and plain fields.
	ErrMixedOperators = errors.New("you cannot mix operators and normal fields")
)

// ErrValidation is returned when input does not fit a schema.
type ErrValidation struct {
	Path   string
	Reason string
}

func (e ErrValidation) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// ErrLockTimeout is returned when a lock could not be acquired in time.
type ErrLockTimeout struct {
	ID      any
	Timeout time.Duration
}

func (e ErrLockTimeout) Error() string {
	return fmt.Sprintf("lock time-out for _id %v", e.ID)
}

// ErrReferenceNotFound is returned when a reference field points to a missing
// entry.
type ErrReferenceNotFound struct {
	Rack string
	ID   any
	Path string
}

func (e ErrReferenceNotFound) Error() string {
	return fmt.Sprintf("Could not find reference '%v' in rack '%s'", e.ID, e.Rack)
}

// ErrUniqueConstraint is returned when an entry collides on unique keys.
type ErrUniqueConstraint struct {
	Keys []string
}

func (e ErrUniqueConstraint) Error() string {
	return fmt.Sprintf("primary keys (%s) failed for document", strings.Join(e.Keys, ", "))
}

// ErrHook wraps an error returned by a hook.
type ErrHook struct {
	Lifecycle Lifecycle
	Operation Operation
	Err       error
}

func (e ErrHook) Error() string {
	return fmt.Sprintf("%s:%s hook: %s", e.Lifecycle, e.Operation, e.Err)
}

func (e ErrHook) Unwrap() error { return e.Err }

// ErrRollback is returned when a hook failed and so did one or more of the
// queued rollbacks.
type ErrRollback struct {
	Hook error
	Errs []error
}

func (e ErrRollback) Error() string {
	return fmt.Sprintf("rollback failed: %s (while handling %s)", errors.Join(e.Errs...), e.Hook)
}

func (e ErrRollback) Unwrap() []error {
	return append([]error{e.Hook}, e.Errs...)
}

// ErrMethod wraps an error returned by an entry method.
type ErrMethod struct {
	Method string
	Err    error
}

func (e ErrMethod) Error() string {
	return fmt.Sprintf("method %s: %s", e.Method, e.Err)
}

func (e ErrMethod) Unwrap() error { return e.Err }

// ErrRackMethod wraps an error returned by a rack method.
type ErrRackMethod struct {
	Rack   string
	Method string
	Err    error
}

func (e ErrRackMethod) Error() string {
	return fmt.Sprintf("rack %s method %s: %s", e.Rack, e.Method, e.Err)
}

func (e ErrRackMethod) Unwrap() error { return e.Err }

// ErrEvent is returned when dispatching an undeclared or invalid event.
type ErrEvent struct {
	Event string
	Err   error
}

func (e ErrEvent) Error() string {
	return fmt.Sprintf("%s payload is not valid", e.Event)
}

func (e ErrEvent) Unwrap() error { return e.Err }

// ErrUnknownOperator is returned by the matcher for operators it does not
// know.
type ErrUnknownOperator struct {
	Operator string
}

func (e ErrUnknownOperator) Error() string {
	return fmt.Sprintf("unknown operator %s", e.Operator)
}

// ErrUnknownPath is returned by models when accessing undeclared paths.
type ErrUnknownPath struct {
	Path string
}

func (e ErrUnknownPath) Error() string {
	return fmt.Sprintf("unknown path %s", e.Path)
}

// ErrRackExists is returned when registering a duplicated rack name.
type ErrRackExists struct {
	Name string
}

func (e ErrRackExists) Error() string {
	return fmt.Sprintf("a rack with the name %s is already registered", e.Name)
}

// ErrRackNotFound is returned when a rack name is not registered.
type ErrRackNotFound struct {
	Name string
}

func (e ErrRackNotFound) Error() string {
	return fmt.Sprintf("a rack with the name %s could not be found", e.Name)
}
