package memstore

import "github.com/vinicius-lino-figueiredo/rackdb/domain"

// WithComparer sets the comparer that orders ids.
func WithComparer(c domain.Comparer) Option {
	return func(s *Store) {
		s.cmpr = c
	}
}

// WithQuerier sets the querier used by list operations.
func WithQuerier(q domain.Querier) Option {
	return func(s *Store) {
		s.querier = q
	}
}

// WithDocumentFactory sets the factory used to copy documents.
func WithDocumentFactory(f domain.DocumentFactory) Option {
	return func(s *Store) {
		if f != nil {
			s.docFac = f
		}
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*Store)
