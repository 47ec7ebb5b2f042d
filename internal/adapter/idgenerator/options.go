package idgenerator

import (
	"io"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

type options struct {
	reader     io.Reader
	timeGetter domain.TimeGetter
}

// WithReader sets the reader that will provide random bytes.
func WithReader(r io.Reader) Option {
	return func(o *options) {
		o.reader = r
	}
}

// WithTimeGetter sets the clock used for the timestamp part of ObjectIDs.
func WithTimeGetter(tg domain.TimeGetter) Option {
	return func(o *options) {
		o.timeGetter = tg
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*options)
