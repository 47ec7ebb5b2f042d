package fieldnavigator

import "github.com/vinicius-lino-figueiredo/rackdb/domain"

// GetSetter implements [domain.GetSetter]. It points either to a document
// key, to an array index or to nothing at all.
type GetSetter struct {
	doc   domain.Document
	key   string
	array []any
	index int
}

// NewGetSetterWithArrayIndex returns a [domain.GetSetter] that represents a
// value from a slice of [any].
func NewGetSetterWithArrayIndex(array []any, index int) domain.GetSetter {
	return &GetSetter{array: array, index: index}
}

// NewGetSetterWithDoc returns a [domain.GetSetter] that represents a value
// from a [domain.Document].
func NewGetSetterWithDoc(doc domain.Document, key string) domain.GetSetter {
	return &GetSetter{doc: doc, key: key}
}

// NewGetSetterEmpty returns a [domain.GetSetter] of an undefined value.
func NewGetSetterEmpty() domain.GetSetter {
	return &GetSetter{}
}

func (gs *GetSetter) inRange() bool {
	return gs.array != nil && gs.index >= 0 && gs.index < len(gs.array)
}

// Get implements [domain.GetSetter].
func (gs *GetSetter) Get() (any, bool) {
	switch {
	case gs.doc != nil:
		return gs.doc.Get(gs.key), gs.doc.Has(gs.key)
	case gs.inRange():
		return gs.array[gs.index], true
	default:
		return nil, false
	}
}

// Set implements [domain.GetSetter].
func (gs *GetSetter) Set(value any) {
	switch {
	case gs.doc != nil:
		gs.doc.Set(gs.key, value)
	case gs.inRange():
		gs.array[gs.index] = value
	}
}

// Unset implements [domain.GetSetter]. Array items are set to nil so
// indexes stay stable.
func (gs *GetSetter) Unset() {
	switch {
	case gs.doc != nil:
		gs.doc.Unset(gs.key)
	case gs.inRange():
		gs.array[gs.index] = nil
	}
}
