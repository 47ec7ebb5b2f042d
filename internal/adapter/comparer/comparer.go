// Package comparer contains the default [domain.Comparer] implementation.
package comparer

import (
	"cmp"
	"fmt"
	"math"
	"math/big"
	"slices"
	"time"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

// Values of different kinds are ordered by kind, in this order.
type kind int

const (
	kindUndefined kind = iota
	kindNil
	kindNumber
	kindString
	kindBool
	kindTime
	kindArray
	kindDoc
	kindUnknown
)

// Comparer implements domain.Comparer.
type Comparer struct{}

// NewComparer returns a new implementation of domain.Comparer.
func NewComparer() domain.Comparer {
	return &Comparer{}
}

// Comparable implements domain.Comparer. Only numbers, strings and dates can
// be compared with range operators, and only with values of the same kind.
func (c *Comparer) Comparable(a, b any) bool {
	ka, kb := c.kindOf(a), c.kindOf(b)
	if ka != kb {
		return false
	}
	return ka == kindNumber || ka == kindString || ka == kindTime
}

// Compare implements domain.Comparer.
func (c *Comparer) Compare(a any, b any) (int, error) {
	ka, kb := c.kindOf(a), c.kindOf(b)
	if ka == kindUnknown || kb == kindUnknown {
		return 0, fmt.Errorf("cannot compare unexpected types %T and %T", a, b)
	}
	if ka != kb {
		return cmp.Compare(ka, kb), nil
	}

	a, b = c.getVal(a), c.getVal(b)

	switch ka {
	case kindNumber:
		na, _ := c.asNumber(a)
		nb, _ := c.asNumber(b)
		// NaN sorts before every other number and equals itself
		if na == nil || nb == nil {
			return cmp.Compare(btoi(nb == nil), btoi(na == nil)), nil
		}
		// big.Float compares float64 and int64 without precision loss
		return na.Cmp(nb), nil
	case kindString:
		return cmp.Compare(a.(string), b.(string)), nil
	case kindBool:
		return c.compareBool(a.(bool), b.(bool)), nil
	case kindTime:
		return a.(time.Time).Compare(b.(time.Time)), nil
	case kindArray:
		return c.compareArray(a.([]any), b.([]any))
	case kindDoc:
		return c.compareDoc(a.(domain.Document), b.(domain.Document))
	default:
		return 0, nil
	}
}

func (c *Comparer) kindOf(v any) kind {
	if g, ok := v.(domain.Getter); ok {
		val, defined := g.Get()
		if !defined {
			return kindUndefined
		}
		v = val
	}
	if v == nil {
		return kindNil
	}
	if _, ok := c.asNumber(v); ok {
		return kindNumber
	}
	switch v.(type) {
	case string:
		return kindString
	case bool:
		return kindBool
	case time.Time:
		return kindTime
	case []any:
		return kindArray
	case domain.Document:
		return kindDoc
	}
	return kindUnknown
}

func (c *Comparer) compareArray(a, b []any) (int, error) {
	for i := range min(len(a), len(b)) {
		comp, err := c.Compare(a[i], b[i])
		if err != nil || comp != 0 {
			return comp, err
		}
	}

	// Common section was identical, longest one wins
	return cmp.Compare(len(a), len(b)), nil
}

func (c *Comparer) compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if a {
		return 1
	}
	return -1
}

func (c *Comparer) compareDoc(a domain.Document, b domain.Document) (int, error) {
	aKeys := slices.Sorted(a.Keys())
	bKeys := slices.Sorted(b.Keys())

	for i := range min(len(aKeys), len(bKeys)) {
		comp, err := c.Compare(a.Get(aKeys[i]), b.Get(bKeys[i]))
		if err != nil || comp != 0 {
			return comp, err
		}
	}

	if comp := cmp.Compare(len(aKeys), len(bKeys)); comp != 0 {
		return comp, nil
	}

	return slices.Compare(aKeys, bKeys), nil
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

// asNumber reports whether v is a number. NaN is a number without a
// big.Float value.
func (c *Comparer) asNumber(v any) (*big.Float, bool) {
	r := big.NewFloat(0)
	switch n := v.(type) {
	case int:
		r.SetInt64(int64(n))
	case int8:
		r.SetInt64(int64(n))
	case int16:
		r.SetInt64(int64(n))
	case int32:
		r.SetInt64(int64(n))
	case int64:
		r.SetInt64(n)
	case uint:
		r.SetUint64(uint64(n))
	case uint8:
		r.SetUint64(uint64(n))
	case uint16:
		r.SetUint64(uint64(n))
	case uint32:
		r.SetUint64(uint64(n))
	case uint64:
		r.SetUint64(n)
	case float32:
		if math.IsNaN(float64(n)) {
			return nil, true
		}
		r.SetFloat64(float64(n))
	case float64:
		if math.IsNaN(n) {
			return nil, true
		}
		r.SetFloat64(n)
	case *big.Int:
		if n == nil {
			return nil, false
		}
		r.SetInt(n)
	default:
		return nil, false
	}
	return r, true
}

func (c *Comparer) getVal(v any) any {
	if g, ok := v.(domain.Getter); ok {
		val, _ := g.Get()
		return val
	}
	return v
}
