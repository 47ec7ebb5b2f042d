package registry

import (
	"log/slog"
	"time"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
)

type options struct {
	lockTimeout time.Duration
	idType      string
	logger      *slog.Logger
	plugins     []domain.Plugin
	defaults    bool
}

// WithLockTimeout sets how long the default lock plugin waits for an entry.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithIDType sets the kind of id generated for new entries, either objectid
// or uuid.
func WithIDType(t string) Option {
	return func(o *options) {
		if t != "" {
			o.idType = t
		}
	}
}

// WithLogger sets the logger shared by the registry, its racks and the
// default plugins.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPlugins adds plugins installed on every rack after the default ones.
func WithPlugins(p ...domain.Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, p...)
	}
}

// WithoutDefaultPlugins leaves only the plugins given with [WithPlugins].
func WithoutDefaultPlugins() Option {
	return func(o *options) {
		o.defaults = false
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*options)
