package sorter

import "github.com/vinicius-lino-figueiredo/rackdb/domain"

// WithComparer sets the comparer used when sort keys are neither strings
// nor dates.
func WithComparer(c domain.Comparer) Option {
	return func(s *Sorter) {
		s.cmpr = c
	}
}

// WithFieldNavigator sets the field navigator used to read sort keys.
func WithFieldNavigator(f domain.FieldNavigator) Option {
	return func(s *Sorter) {
		s.fn = f
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*Sorter)
