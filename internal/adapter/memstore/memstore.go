// Package memstore keeps rack entries in memory. It is the backing store
// installed by default and is only reached through rack hooks.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/bst/adapter/avl"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/querier"
	"github.com/vinicius-lino-figueiredo/rackdb/pkg/ctxsync"
)

// Store is a set of entries indexed by _id in an AVL tree. Every document
// going in or out is copied, so callers never share state with it.
type Store struct {
	mu      *ctxsync.Mutex
	tree    bst.BST[any, domain.Document]
	cmpr    domain.Comparer
	querier domain.Querier
	docFac  domain.DocumentFactory
}

// NewStore returns an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		mu:     ctxsync.NewMutex(),
		docFac: data.NewDocument,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cmpr == nil {
		s.cmpr = comparer.NewComparer()
	}
	if s.querier == nil {
		s.querier = querier.NewQuerier()
	}
	s.tree = avl.NewBST(true, 8, &idComparer{cmpr: s.cmpr})
	return s
}

type idComparer struct {
	cmpr domain.Comparer
}

// CompareKeys implements bst.Comparer.
func (c *idComparer) CompareKeys(a, b any) (int, error) {
	return c.cmpr.Compare(a, b)
}

// CompareValues implements bst.Comparer.
func (c *idComparer) CompareValues(a, b domain.Document) (bool, error) {
	cmp, err := c.cmpr.Compare(a.ID(), b.ID())
	if err != nil {
		return false, err
	}
	return cmp == 0, nil
}

func (s *Store) clone(doc domain.Document) (domain.Document, error) {
	res, err := s.docFac(doc)
	if err != nil {
		return nil, fmt.Errorf("copying document: %w", err)
	}
	return res, nil
}

func (s *Store) get(id any) (domain.Document, error) {
	node, err := s.tree.Search(id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}
	values := node.Values()
	if len(values) == 0 {
		return nil, nil
	}
	return values[0], nil
}

// Insert stores a copy of doc. It fails with [domain.ErrEntryExists] if the
// id is taken.
func (s *Store) Insert(ctx context.Context, doc domain.Document) error {
	if doc.ID() == nil {
		return domain.ErrValidation{Path: "_id", Reason: "required"}
	}
	stored, err := s.clone(doc)
	if err != nil {
		return err
	}
	if err := s.mu.LockWithContext(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := s.tree.Insert(stored.ID(), stored); err != nil {
		if errors.As(err, new(bst.ErrUniqueViolated)) {
			return fmt.Errorf("%w: %v", domain.ErrEntryExists, doc.ID())
		}
		return err
	}
	return nil
}

// Replace stores a copy of doc in place of the entry with the same id. The
// stored version must still be expected, otherwise
// [domain.ErrEntryVersionMismatch] is returned and nothing changes.
func (s *Store) Replace(ctx context.Context, expected int64, doc domain.Document) error {
	stored, err := s.clone(doc)
	if err != nil {
		return err
	}
	if err := s.mu.LockWithContext(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()

	current, err := s.get(doc.ID())
	if err != nil {
		return err
	}
	if current == nil {
		return domain.ErrNotFound
	}
	if v, _ := data.AsInt64(current.Get("_v")); v != expected {
		return domain.ErrEntryVersionMismatch
	}
	if err := s.tree.Delete(current.ID(), &current); err != nil {
		return err
	}
	return s.tree.Insert(stored.ID(), stored)
}

// Remove deletes the entry with the given id and returns it, or nil if
// there was none.
func (s *Store) Remove(ctx context.Context, id any) (domain.Document, error) {
	if err := s.mu.LockWithContext(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	current, err := s.get(id)
	if err != nil || current == nil {
		return nil, err
	}
	if err := s.tree.Delete(current.ID(), &current); err != nil {
		return nil, err
	}
	return current, nil
}

// FindByID returns a copy of the entry with the given id, or nil. A
// positive version only matches that exact version.
func (s *Store) FindByID(ctx context.Context, id any, version int64) (domain.Document, error) {
	if err := s.mu.LockWithContext(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	current, err := s.get(id)
	if err != nil || current == nil {
		return nil, err
	}
	if version > 0 {
		if v, _ := data.AsInt64(current.Get("_v")); v != version {
			return nil, nil
		}
	}
	return s.clone(current)
}

// Find returns copies of the entries selected by opts.
func (s *Store) Find(ctx context.Context, opts ...domain.QueryOption) ([]domain.Document, error) {
	if err := s.mu.LockWithContext(ctx); err != nil {
		return nil, err
	}
	all := slices.Collect(s.tree.GetAll())
	s.mu.Unlock()

	found, err := s.querier.Query(all, opts...)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Document, len(found))
	for n, doc := range found {
		if res[n], err = s.clone(doc); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.GetNumberOfKeys()
}
