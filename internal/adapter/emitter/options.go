package emitter

import "log/slog"

// WithLogger sets the logger that reports panicking listeners.
func WithLogger(l *slog.Logger) Option {
	return func(e *Emitter) {
		if l != nil {
			e.logger = l
		}
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*Emitter)
