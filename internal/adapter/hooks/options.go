package hooks

import "log/slog"

// WithLogger sets the logger that reports hook and rollback failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*Pipeline)
