package scenario

import (
	"log/slog"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

// WithIDGenerator sets the generator used by the schemas of scenario racks.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(r *Runner) {
		r.idGen = g
	}
}

// WithLogger sets the logger used to report failed steps.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*Runner)
