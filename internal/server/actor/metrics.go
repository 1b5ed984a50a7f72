package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultOK      = "ok"
	resultError   = "error"
	resultTimeout = "timeout"
	resultClosed  = "closed"
)

type metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqlidentity",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Identity store operations by result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sqlidentity",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Identity store operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.ops, err = register(reg, m.ops); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// register reuses an identical collector already registered by another
// actor on the same registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metrics: %w", err)
	}
	return c, nil
}

func (m *metrics) observe(op, result string, d time.Duration) {
	m.ops.WithLabelValues(op, result).Inc()
	if result != resultClosed {
		m.duration.WithLabelValues(op).Observe(d.Seconds())
	}
}
