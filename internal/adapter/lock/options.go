package lock

import (
	"log/slog"
	"time"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

// WithTimeout sets how long Lock waits before failing. Non positive values
// keep [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the logger that reports lock timeouts.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTimeGetter sets the clock lock deadlines are measured with.
func WithTimeGetter(tg domain.TimeGetter) Option {
	return func(m *Manager) {
		if tg != nil {
			m.clock = tg
		}
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*Manager)
