package arbor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/params"
)

// Connection is one caller identity on one transport. Transports
// create a connection per client (or per request, for plain HTTP) and
// dispatch actions through it; handlers receive it as a domain.Caller.
//
// The session is loaded at most once per connection and cached, so a
// handler always sees the same snapshot the dispatcher loaded, and
// long-lived connections do not hit the store on every call.
type Connection struct {
	id     string
	kind   string
	engine *Engine
	logger *slog.Logger

	mu            sync.Mutex
	session       *domain.Session
	subscriptions []string
}

// NewConnection creates a connection of the given kind. An empty id
// gets a generated one.
func (e *Engine) NewConnection(kind, id string) *Connection {
	if id == "" {
		id = uuid.NewString()
	}
	return &Connection{
		id:     id,
		kind:   kind,
		engine: e,
		logger: e.logger.With("connection_id", id, "connection_kind", kind),
	}
}

// ID returns the connection id.
func (c *Connection) ID() string { return c.id }

// Kind returns the transport kind.
func (c *Connection) Kind() string { return c.kind }

// Logger returns the connection-scoped logger.
func (c *Connection) Logger() *slog.Logger { return c.logger }

// Act dispatches the named action with the given raw params and
// returns the response envelope. It never returns an error or panics;
// failures come back tagged inside the envelope.
func (c *Connection) Act(ctx context.Context, name string, raw map[string]any) *domain.Response {
	action, _ := c.engine.registry.Resolve(name)
	return c.dispatch(ctx, name, action, raw)
}

// ActMatch dispatches by HTTP verb and path. Captured path params are
// merged into the raw params; explicitly supplied params win over
// captures on the same key.
func (c *Connection) ActMatch(ctx context.Context, method, path string, raw map[string]any) *domain.Response {
	matched, ok := c.engine.registry.Match(method, path)
	if !ok {
		return c.dispatch(ctx, method+" "+path, nil, raw)
	}

	if len(matched.PathParams) > 0 {
		merged := make(map[string]any, len(raw)+len(matched.PathParams))
		for k, v := range matched.PathParams {
			merged[k] = v
		}
		for k, v := range raw {
			merged[k] = v
		}
		raw = merged
	}
	return c.dispatch(ctx, matched.Action.Name, matched.Action, raw)
}

// dispatch runs the per-call pipeline. The label is the action name
// when resolved, otherwise whatever identifier the caller tried.
func (c *Connection) dispatch(ctx context.Context, label string, action *domain.Action, raw map[string]any) *domain.Response {
	start := time.Now()

	var failure *domain.Error
	var result any

	// 1. Resolution already happened; a nil action is the miss.
	if action == nil {
		failure = domain.NewError(domain.KindActionNotFound, "unknown action %q", label)
	}

	// 2. Load the session once per connection before the handler runs.
	if failure == nil {
		if _, err := c.Session(ctx); err != nil {
			failure = domain.Classify(err)
		}
	}

	// 3. Format, default, and validate params against the schema.
	var formatted domain.Params
	if failure == nil {
		var err error
		formatted, err = params.Format(raw, action.Inputs)
		if err != nil {
			failure = domain.Classify(err)
		}
	}

	// 4. Run the handler. A panic is a failure, never a crash.
	if failure == nil {
		var err error
		result, err = c.runHandler(ctx, action, formatted)
		if err != nil {
			failure = domain.Classify(err)
		}
	}

	// 5. Exactly one log line and one observation per call.
	duration := time.Since(start)
	outcome := "ok"
	if failure != nil {
		outcome = "error"
	}
	attrs := []any{
		"action", label,
		"outcome", outcome,
		"duration_ms", duration.Milliseconds(),
		"connection_id", c.id,
		"connection_kind", c.kind,
	}
	if action != nil {
		attrs = append(attrs, "params", params.Redact(raw, action.Inputs))
	}

	metricLabel := label
	if action == nil {
		metricLabel = "unknown"
	}

	if failure != nil {
		attrs = append(attrs, "kind", string(failure.Kind), "error", failure.Message)
		c.logger.Error("action dispatched", attrs...)
		c.engine.collector.ObserveAction(metricLabel, outcome, string(failure.Kind), duration)
		return domain.Fail(failure)
	}

	c.logger.Info("action dispatched", attrs...)
	c.engine.collector.ObserveAction(metricLabel, outcome, "", duration)
	return domain.OK(result)
}

func (c *Connection) runHandler(ctx context.Context, action *domain.Action, p domain.Params) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewError(domain.KindRun, "action %s panicked: %v", action.Name, r)
		}
	}()
	return action.Run(ctx, p, c)
}

// Session returns the connection's session, loading or creating it on
// first use.
func (c *Connection) Session(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionLocked(ctx)
}

func (c *Connection) sessionLocked(ctx context.Context) (*domain.Session, error) {
	if c.session != nil {
		return c.session, nil
	}
	sess, err := c.engine.sessions.LoadOrCreate(ctx, c.id)
	if err != nil {
		return nil, err
	}
	c.session = sess
	return sess, nil
}

// UpdateSession shallow-merges the patch into the session data and
// persists the whole record. It returns the merged data.
func (c *Connection) UpdateSession(ctx context.Context, patch map[string]any) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.sessionLocked(ctx)
	if err != nil {
		return nil, err
	}
	return c.engine.sessions.Update(ctx, sess, patch)
}

// DestroySession removes the session. The cache is dropped either way,
// so a later access starts fresh.
func (c *Connection) DestroySession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = nil
	return c.engine.sessions.Destroy(ctx, c.id)
}

// Subscribe adds the channel to this connection's subscriptions.
// Subscribing twice is a no-op.
func (c *Connection) Subscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, name := range c.subscriptions {
		if name == channel {
			return
		}
	}
	c.subscriptions = append(c.subscriptions, channel)
}

// Unsubscribe removes the channel from this connection's
// subscriptions.
func (c *Connection) Unsubscribe(channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, name := range c.subscriptions {
		if name == channel {
			c.subscriptions = append(c.subscriptions[:i], c.subscriptions[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotSubscribed
}

// Subscriptions returns the subscribed channels in subscription order.
func (c *Connection) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.subscriptions))
	copy(out, c.subscriptions)
	return out
}

// Publish sends a payload to a channel this connection is subscribed
// to. Publishing to a channel it never joined is an error.
func (c *Connection) Publish(ctx context.Context, channel string, payload []byte) error {
	c.mu.Lock()
	subscribed := false
	for _, name := range c.subscriptions {
		if name == channel {
			subscribed = true
			break
		}
	}
	c.mu.Unlock()

	if !subscribed {
		return domain.ErrNotSubscribed
	}
	return c.engine.broker.Publish(ctx, channel, payload)
}

// FanOut creates a fan-out from this connection.
func (c *Connection) FanOut(ctx context.Context, req domain.FanOutRequest) (*domain.FanOutReceipt, error) {
	return c.engine.coordinator.FanOut(ctx, req)
}

// FanOutStatus polls a fan-out aggregate.
func (c *Connection) FanOutStatus(ctx context.Context, fanOutID string) (*domain.FanOutStatus, error) {
	return c.engine.coordinator.Status(ctx, fanOutID)
}

var _ domain.Caller = (*Connection)(nil)
