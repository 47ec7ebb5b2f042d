package metrics

import "github.com/vinicius-lino-figueiredo/rackdb/domain"

type options struct {
	namespace  string
	timeGetter domain.TimeGetter
}

// WithNamespace sets the prefix of every metric name. Defaults to rackdb.
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithTimeGetter sets the clock used to measure latency.
func WithTimeGetter(tg domain.TimeGetter) Option {
	return func(o *options) {
		if tg != nil {
			o.timeGetter = tg
		}
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*options)
