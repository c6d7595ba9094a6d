// Package metrics collects engine metrics for Prometheus scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "arbor"

// Collector owns the engine's instruments. Each collector registers on
// its own registry, so several engines can live in one process (and one
// test binary) without duplicate registration panics.
type Collector struct {
	registry *prometheus.Registry

	actionCalls    *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	tasksProcessed *prometheus.CounterVec
	fanOutChildren prometheus.Histogram
	fanOutReports  *prometheus.CounterVec
}

// New creates a collector on the given registry. A nil registry gets a
// private one.
func New(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,

		actionCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_calls_total",
				Help:      "Action dispatches by outcome and error kind.",
			},
			[]string{"action", "outcome", "kind"},
		),
		actionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Action dispatch duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		tasksProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_processed_total",
				Help:      "Background tasks processed by queue and outcome.",
			},
			[]string{"queue", "outcome"},
		),
		fanOutChildren: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fanout_children",
				Help:      "Number of child tasks per fan-out.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		fanOutReports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fanout_reports_total",
				Help:      "Child reports recorded against fan-out aggregates.",
			},
			[]string{"outcome"},
		),
	}
}

// ObserveAction records one dispatch. Kind is empty on success.
func (c *Collector) ObserveAction(action, outcome, kind string, d time.Duration) {
	c.actionCalls.WithLabelValues(action, outcome, kind).Inc()
	c.actionDuration.WithLabelValues(action).Observe(d.Seconds())
}

// ObserveTask records one processed background task.
func (c *Collector) ObserveTask(queue, outcome string) {
	c.tasksProcessed.WithLabelValues(queue, outcome).Inc()
}

// ObserveFanOut records the size of one fan-out batch.
func (c *Collector) ObserveFanOut(total int) {
	c.fanOutChildren.Observe(float64(total))
}

// ObserveReport records one child report by outcome.
func (c *Collector) ObserveReport(outcome string) {
	c.fanOutReports.WithLabelValues(outcome).Inc()
}

// Handler exposes the collector's registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
