package reference

import "log/slog"

// WithConcurrency bounds how many listed entries are resolved at once.
// Non positive values keep [DefaultConcurrency].
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithLogger sets the logger that reports failed resolutions.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*Loader)
