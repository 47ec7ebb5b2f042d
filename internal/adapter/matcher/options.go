package matcher

import "github.com/vinicius-lino-figueiredo/rackdb/domain"

// WithDocumentFactory sets the factory used to build documents from query
// input.
func WithDocumentFactory(df domain.DocumentFactory) Option {
	return func(m *Matcher) {
		m.docFac = df
	}
}

// WithComparer sets the comparer used for equality and range operators.
func WithComparer(c domain.Comparer) Option {
	return func(m *Matcher) {
		m.comparer = c
	}
}

// WithFieldNavigator sets the field navigator used to read document paths.
func WithFieldNavigator(f domain.FieldNavigator) Option {
	return func(m *Matcher) {
		m.fieldNav = f
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*Matcher)
