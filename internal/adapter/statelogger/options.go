package statelogger

import (
	"log/slog"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

// WithTimeGetter sets the clock used for createdAt.
func WithTimeGetter(tg domain.TimeGetter) Option {
	return func(l *StateLogger) {
		if tg != nil {
			l.timeGetter = tg
		}
	}
}

// WithLogger sets the logger used to report failed writes.
func WithLogger(logger *slog.Logger) Option {
	return func(l *StateLogger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*StateLogger)
