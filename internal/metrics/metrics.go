package metrics

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
)

// Collector holds the engine's prometheus collectors. A nil *Collector is
// valid and records nothing.
type Collector struct {
	structureOps      *prometheus.CounterVec
	structureDuration *prometheus.HistogramVec
	lifecycleSteps    *prometheus.CounterVec
}

func NewCollector() *Collector {
	return &Collector{
		structureOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dbforge",
				Subsystem: "structure",
				Name:      "operations_total",
				Help:      "Structure mutations by object, action and result.",
			}, []string{"object", "action", "result"}),
		structureDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dbforge",
				Subsystem: "structure",
				Name:      "operation_duration_seconds",
				Help:      "Bucketed histogram of structure mutation time.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
			}, []string{"object", "action"}),
		lifecycleSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dbforge",
				Subsystem: "lifecycle",
				Name:      "steps_total",
				Help:      "Instance and staging lifecycle steps by operation, step and result.",
			}, []string{"operation", "step", "result"}),
	}
}

// Register registers every collector with registry.
func (c *Collector) Register(registry prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{c.structureOps, c.structureDuration, c.lifecycleSteps} {
		if err := registry.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveStructure records one finished structure mutation.
func (c *Collector) ObserveStructure(object, action string, started time.Time, err error) {
	if c == nil {
		return
	}
	c.structureOps.WithLabelValues(object, action, Result(err)).Inc()
	c.structureDuration.WithLabelValues(object, action).Observe(time.Since(started).Seconds())
}

// LifecycleStep records one lifecycle step.
func (c *Collector) LifecycleStep(operation, step string, err error) {
	if c == nil {
		return
	}
	c.lifecycleSteps.WithLabelValues(operation, step, Result(err)).Inc()
}

// Result converts err into a low-cardinality label value.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ReplaceAll(apperr.KindOf(err).String(), " ", "_")
}
