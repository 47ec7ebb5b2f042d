// Package sorter contains the default [domain.Sorter] implementation.
package sorter

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/fieldnavigator"
)

// Sorter implements [domain.Sorter]. It runs one stable pass per sort key,
// from the last declared key to the first, so the first key ends up as the
// primary one.
type Sorter struct {
	cmpr domain.Comparer
	fn   domain.FieldNavigator
}

// NewSorter returns a new implementation of [domain.Sorter].
func NewSorter(opts ...Option) domain.Sorter {
	s := &Sorter{cmpr: comparer.NewComparer()}
	for _, opt := range opts {
		opt(s)
	}
	if s.fn == nil {
		s.fn = fieldnavigator.NewFieldNavigator(data.NewDocument)
	}
	return s
}

// Sort implements [domain.Sorter].
func (s *Sorter) Sort(docs []domain.Document, sort domain.Sort) ([]domain.Document, error) {
	res := slices.Clone(docs)
	for _, crit := range slices.Backward(sort) {
		if err := s.pass(res, crit); err != nil {
			return nil, err
		}
	}
	return res, nil
}

type keyed struct {
	doc domain.Document
	key any
}

func (s *Sorter) pass(docs []domain.Document, crit domain.SortName) error {
	if crit.Order == 0 {
		return nil
	}
	addr, err := s.fn.GetAddress(crit.Key)
	if err != nil {
		return fmt.Errorf("getting address: %w", err)
	}

	items := make([]keyed, len(docs))
	for n, doc := range docs {
		if items[n].key, err = s.key(doc, addr); err != nil {
			return err
		}
		items[n].doc = doc
	}

	factor := 1
	if crit.Order < 0 {
		factor = -1
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		if err != nil {
			return 0
		}
		var c int
		c, err = s.calcIndex(a.key, b.key)
		return c * factor
	})
	if err != nil {
		return fmt.Errorf("comparing %s: %w", crit.Key, err)
	}

	for n, item := range items {
		docs[n] = item.doc
	}
	return nil
}

func (s *Sorter) key(doc domain.Document, addr []string) (any, error) {
	fields, expanded, err := s.fn.GetField(doc, addr...)
	if err != nil {
		return nil, fmt.Errorf("getting field: %w", err)
	}
	if !expanded {
		return fields[0], nil
	}
	values := make([]any, 0, len(fields))
	for _, f := range fields {
		if v, ok := f.Get(); ok {
			values = append(values, v)
		}
	}
	return values, nil
}

// calcIndex compares two sort keys. Booleans weigh 1 and -1, strings and
// dates compare by order, numbers by difference. Anything else uses the
// total order of the comparer.
func (s *Sorter) calcIndex(a, b any) (int, error) {
	a, b = s.toIndex(a), s.toIndex(b)
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return cmp.Compare(sa, sb), nil
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb), nil
		}
	}
	return s.cmpr.Compare(a, b)
}

func (s *Sorter) toIndex(v any) any {
	if g, ok := v.(domain.Getter); ok {
		val, defined := g.Get()
		if !defined {
			return g
		}
		v = val
	}
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return -1
	}
	return v
}
