package unique

import "log/slog"

// WithLogger sets the logger that reports violations.
func WithLogger(l *slog.Logger) Option {
	return func(e *Enforcer) {
		if l != nil {
			e.logger = l
		}
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*Enforcer)
