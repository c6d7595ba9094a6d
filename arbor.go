package arbor

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/metrics"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/fanout"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/session"
)

// Engine is the high-level entry point for the arbor library. It holds
// the action registry and the backing stores, and hands out connections
// that dispatch actions through the shared pipeline.
type Engine struct {
	name string

	registry     *registry.Registry
	sessionStore ports.SessionStore
	aggregates   ports.AggregateStore
	queue        ports.TaskQueue
	broker       ports.Broker

	sessions    *session.Manager
	coordinator *fanout.Coordinator
	collector   *metrics.Collector

	logger    *slog.Logger
	startedAt time.Time
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithName labels the engine in logs and the status action.
func WithName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.name = name
		}
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSessionStore replaces the in-memory session store.
func WithSessionStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		if store != nil {
			e.sessionStore = store
		}
	}
}

// WithAggregateStore replaces the in-memory fan-out aggregate store.
func WithAggregateStore(store ports.AggregateStore) Option {
	return func(e *Engine) {
		if store != nil {
			e.aggregates = store
		}
	}
}

// WithQueue replaces the in-memory task queue.
func WithQueue(queue ports.TaskQueue) Option {
	return func(e *Engine) {
		if queue != nil {
			e.queue = queue
		}
	}
}

// WithBroker replaces the in-memory pub/sub broker.
func WithBroker(broker ports.Broker) Option {
	return func(e *Engine) {
		if broker != nil {
			e.broker = broker
		}
	}
}

// WithMetricsRegistry collects engine metrics into the given Prometheus
// registry instead of a private one.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(e *Engine) {
		if reg != nil {
			e.collector = metrics.New(reg)
		}
	}
}

// New initializes an engine. Without options it runs entirely in
// memory, which is all tests and single-node deployments need.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		name:     "arbor",
		registry: registry.New(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.sessionStore == nil {
		e.sessionStore = memory.NewSessions()
	}
	if e.aggregates == nil {
		e.aggregates = memory.NewAggregates()
	}
	if e.queue == nil {
		e.queue = memory.NewQueue()
	}
	if e.broker == nil {
		e.broker = memory.NewBroker()
	}
	if e.collector == nil {
		e.collector = metrics.New(nil)
	}

	e.logger = e.logger.With("engine", e.name)
	e.sessions = session.NewManager(e.sessionStore, session.WithLogger(e.logger))
	e.coordinator = fanout.NewCoordinator(e.queue, e.aggregates,
		fanout.WithLogger(e.logger),
		fanout.WithCollector(e.collector),
	)
	e.startedAt = time.Now()

	return e, nil
}

// Register adds actions to the registry. A rejected action reports as
// SERVER_INITIALIZATION so the process fails loudly at boot rather
// than quietly at dispatch.
func (e *Engine) Register(actions ...*domain.Action) error {
	for _, action := range actions {
		if err := e.registry.Register(action); err != nil {
			return domain.WrapError(domain.KindServerInit, err, "failed to register action: %s", err)
		}
	}
	return nil
}

// Name returns the engine's label.
func (e *Engine) Name() string {
	return e.name
}

// Uptime reports how long the engine has been running.
func (e *Engine) Uptime() time.Duration {
	return time.Since(e.startedAt)
}

// Registry exposes the action registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Sessions exposes the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Coordinator exposes the fan-out coordinator.
func (e *Engine) Coordinator() *fanout.Coordinator {
	return e.coordinator
}

// Queue exposes the task queue.
func (e *Engine) Queue() ports.TaskQueue {
	return e.queue
}

// Broker exposes the pub/sub broker.
func (e *Engine) Broker() ports.Broker {
	return e.broker
}

// Logger exposes the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// MetricsHandler serves the engine's metrics in Prometheus text format.
func (e *Engine) MetricsHandler() http.Handler {
	return e.collector.Handler()
}
