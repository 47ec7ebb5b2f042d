// Package metrics exports rack activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/timegetter"
)

const startKey = "metrics.start.%s"

// Observed are the operations counted by the collector.
var Observed = []domain.Operation{
	domain.OpCreate,
	domain.OpRead,
	domain.OpUpdate,
	domain.OpDelete,
	domain.OpList,
	domain.OpApply,
}

// Collector holds the metrics shared by every rack it is installed on.
type Collector struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	documents  *prometheus.GaugeVec
	timeGetter domain.TimeGetter
}

// NewCollector creates the collector metrics and registers them with reg.
// Metrics already registered by another collector are reused.
func NewCollector(reg prometheus.Registerer, opts ...Option) (*Collector, error) {
	o := options{
		namespace:  "rackdb",
		timeGetter: timegetter.NewTimeGetter(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "operations_total",
			Help:      "Total rack operations completed",
		}, []string{"rack", "operation"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of completed rack operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"rack", "operation"}),
		documents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: o.namespace,
			Name:      "documents",
			Help:      "Current number of entries in a rack",
		}, []string{"rack"}),
		timeGetter: o.timeGetter,
	}

	var err error
	if c.operations, err = register(reg, c.operations); err != nil {
		return nil, err
	}
	if c.latency, err = register(reg, c.latency); err != nil {
		return nil, err
	}
	if c.documents, err = register(reg, c.documents); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("registering metrics: %w", err)
}

// NewPlugin returns a plugin installing one collector on every rack. The
// collector is registered with reg when the first rack is installed.
func NewPlugin(reg prometheus.Registerer, opts ...Option) domain.Plugin {
	collector := sync.OnceValues(func() (*Collector, error) {
		return NewCollector(reg, opts...)
	})
	return func(ctx context.Context, params domain.PluginParams) error {
		c, err := collector()
		if err != nil {
			return err
		}
		return Install(ctx, params.Rack, c)
	}
}

// Install hooks c into rack and seeds the document gauge with the entries
// the rack already holds.
func Install(ctx context.Context, rack domain.Rack, c *Collector) error {
	name := rack.Name()

	docs, err := rack.List(ctx, nil, domain.WithRaw(true))
	if err != nil {
		return err
	}
	gauge := c.documents.WithLabelValues(name)
	gauge.Set(float64(len(docs)))

	for _, op := range Observed {
		counter := c.operations.WithLabelValues(name, string(op))
		latency := c.latency.WithLabelValues(name, string(op))
		key := fmt.Sprintf(startKey, op)

		rack.Hook(domain.Before, op, func(_ context.Context, p *domain.Payload, _ *domain.Rollbacks) error {
			if p.State != nil {
				p.State.Set(key, c.timeGetter.GetTime())
			}
			return nil
		})
		rack.Hook(domain.After, op, func(_ context.Context, p *domain.Payload, _ *domain.Rollbacks) error {
			counter.Inc()
			if p.State == nil {
				return nil
			}
			if start, ok := p.State.Get(key); ok {
				latency.Observe(c.timeGetter.GetTime().Sub(start.(time.Time)).Seconds())
			}
			return nil
		})
	}

	rack.Hook(domain.After, domain.OpCreate, func(_ context.Context, _ *domain.Payload, rb *domain.Rollbacks) error {
		gauge.Inc()
		rb.Push(func(context.Context) error {
			gauge.Dec()
			return nil
		})
		return nil
	})
	rack.Hook(domain.After, domain.OpDeleteByID, func(_ context.Context, p *domain.Payload, _ *domain.Rollbacks) error {
		gauge.Sub(float64(len(p.Result)))
		return nil
	})
	return nil
}
