// Package fieldnavigator contains the default [domain.FieldNavigator]
// implementation.
package fieldnavigator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

// FieldNavigator implements [domain.FieldNavigator].
type FieldNavigator struct {
	docFac domain.DocumentFactory
}

// NewFieldNavigator returns a new instance of [domain.FieldNavigator].
func NewFieldNavigator(docFac domain.DocumentFactory) domain.FieldNavigator {
	return &FieldNavigator{
		docFac: docFac,
	}
}

// GetAddress implements [domain.FieldNavigator].
func (fn *FieldNavigator) GetAddress(field string) ([]string, error) {
	if field == "" {
		return nil, fmt.Errorf("empty field address")
	}
	return strings.Split(field, "."), nil
}

type step struct {
	v  any
	gs domain.GetSetter
}

// GetField implements [domain.FieldNavigator]. An array found midway is
// expanded when the next part is not an index, so the result holds one
// entry per array element.
func (fn *FieldNavigator) GetField(obj any, fieldParts ...string) ([]domain.GetSetter, bool, error) {
	if _, ok := obj.(domain.Document); !ok || len(fieldParts) == 0 {
		return []domain.GetSetter{NewGetSetterEmpty()}, false, nil
	}

	curr := []step{{v: obj}}
	expanded := false

	for _, part := range fieldParts {
		next := make([]step, 0, len(curr))
		for _, item := range curr {
			switch t := item.v.(type) {
			case domain.Document:
				next = append(next, fn.docStep(t, part))
			case []any:
				if i, err := strconv.Atoi(part); err == nil {
					if i >= 0 && i < len(t) {
						next = append(next, step{v: t[i], gs: NewGetSetterWithArrayIndex(t, i)})
					} else {
						next = append(next, step{gs: NewGetSetterEmpty()})
					}
					continue
				}
				expanded = true
				for _, elem := range t {
					if doc, ok := elem.(domain.Document); ok {
						next = append(next, fn.docStep(doc, part))
					} else {
						next = append(next, step{gs: NewGetSetterEmpty()})
					}
				}
			default:
				next = append(next, step{gs: NewGetSetterEmpty()})
			}
		}
		curr = next
	}

	if len(curr) == 0 {
		return []domain.GetSetter{NewGetSetterEmpty()}, expanded, nil
	}

	res := make([]domain.GetSetter, len(curr))
	for n, v := range curr {
		res[n] = v.gs
	}
	return res, expanded, nil
}

func (fn *FieldNavigator) docStep(doc domain.Document, part string) step {
	if !doc.Has(part) {
		return step{gs: NewGetSetterEmpty()}
	}
	return step{v: doc.Get(part), gs: NewGetSetterWithDoc(doc, part)}
}

// EnsureField implements [domain.FieldNavigator]. Missing or nil
// intermediate values are replaced by new documents. Arrays are only
// traversed by index.
func (fn *FieldNavigator) EnsureField(obj any, fieldParts ...string) ([]domain.GetSetter, error) {
	if len(fieldParts) == 0 {
		return nil, fmt.Errorf("empty field address")
	}
	curr := obj
	last := len(fieldParts) - 1
	for idx, part := range fieldParts {
		switch t := curr.(type) {
		case domain.Document:
			if idx == last {
				return []domain.GetSetter{NewGetSetterWithDoc(t, part)}, nil
			}
			if v := t.Get(part); v != nil {
				curr = v
				continue
			}
			newDoc, err := fn.docFac(nil)
			if err != nil {
				return nil, err
			}
			t.Set(part, newDoc)
			curr = newDoc
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(t) {
				return nil, fmt.Errorf("cannot reach %q in array", strings.Join(fieldParts[:idx+1], "."))
			}
			if idx == last {
				return []domain.GetSetter{NewGetSetterWithArrayIndex(t, i)}, nil
			}
			if t[i] == nil {
				newDoc, err := fn.docFac(nil)
				if err != nil {
					return nil, err
				}
				t[i] = newDoc
			}
			curr = t[i]
		default:
			return nil, fmt.Errorf("cannot create field %q in a non-object value", strings.Join(fieldParts[:idx+1], "."))
		}
	}
	return nil, fmt.Errorf("unreachable address")
}
