package querier

import "github.com/vinicius-lino-figueiredo/rackdb/domain"

// WithMatcher sets the matcher implementation for querier evaluations.
func WithMatcher(m domain.Matcher) Option {
	return func(q *Querier) {
		q.mtchr = m
	}
}

// WithSorter sets the sorter implementation used when a sort is given.
func WithSorter(s domain.Sorter) Option {
	return func(q *Querier) {
		q.srtr = s
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*Querier)
