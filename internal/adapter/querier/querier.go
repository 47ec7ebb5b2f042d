// Package querier contains the default [domain.Querier] implementation.
package querier

import (
	"fmt"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/sorter"
)

// Querier implements [domain.Querier].
type Querier struct {
	mtchr domain.Matcher
	srtr  domain.Sorter
}

// NewQuerier returns a new implementation of [domain.Querier].
func NewQuerier(opts ...Option) domain.Querier {
	var q Querier
	for _, opt := range opts {
		opt(&q)
	}
	if q.mtchr == nil {
		q.mtchr = matcher.NewMatcher()
	}
	if q.srtr == nil {
		q.srtr = sorter.NewSorter()
	}
	return &q
}

// Query implements [domain.Querier]. Documents are filtered, then sorted,
// then paginated.
func (q *Querier) Query(data []domain.Document, opts ...domain.QueryOption) ([]domain.Document, error) {
	var options domain.QueryOptions
	for _, opt := range opts {
		opt(&options)
	}

	var skipped int64
	res := make([]domain.Document, 0, len(data))
	for _, doc := range data {
		if options.Query != nil {
			matches, err := q.mtchr.Match(doc, options.Query)
			if err != nil {
				return nil, fmt.Errorf("matching document: %w", err)
			}
			if !matches {
				continue
			}
		}
		if len(options.Sort) == 0 {
			if skipped < options.Skip {
				skipped++
				continue
			}
			if options.Limit > 0 && int64(len(res)) == options.Limit {
				return res, nil
			}
		}
		res = append(res, doc)
	}

	if len(options.Sort) == 0 {
		return res, nil
	}

	sorted, err := q.srtr.Sort(res, options.Sort)
	if err != nil {
		return nil, fmt.Errorf("sorting: %w", err)
	}
	return q.skipAndLimit(sorted, options.Skip, options.Limit), nil
}

func (q *Querier) skipAndLimit(data []domain.Document, skip, limit int64) []domain.Document {
	length := int64(len(data))

	skip = min(max(skip, 0), length)
	if limit <= 0 {
		return data[skip:]
	}
	return data[skip:min(skip+limit, length)]
}
