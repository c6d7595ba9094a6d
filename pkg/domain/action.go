package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// FormatterFunc coerces a raw input value into its typed form.
// Returning an error yields a PARAM_FORMATTING failure for the input.
type FormatterFunc func(value any) (any, error)

// ValidatorFunc checks a formatted input value.
// Returning an error yields a PARAM_VALIDATION failure for the input.
type ValidatorFunc func(value any) error

// RunFunc is the handler body of an Action. It receives the typed params
// produced by the pipeline and the Caller view of the invoking connection.
type RunFunc func(ctx context.Context, p Params, c Caller) (any, error)

// Input declares one parameter of an Action's schema. Inputs are evaluated
// in declaration order: default, required check, formatter, validator.
type Input struct {
	// Name is the raw parameter key. Must be unique within the Action.
	Name string

	// Required fails the call with PARAM_REQUIRED when the value is still
	// absent after defaults were applied.
	Required bool

	// Default is a literal fallback for an absent value.
	Default any

	// DefaultFunc produces a fallback for an absent value. Takes precedence
	// over Default when both are set. An error yields PARAM_DEFAULT.
	DefaultFunc func() (any, error)

	// Formatter coerces the raw value (e.g. string to int).
	Formatter FormatterFunc

	// Validator checks the formatted value.
	Validator ValidatorFunc

	// Secret marks the input for redaction in logs. The handler still
	// receives the real value.
	Secret bool
}

// WebBinding exposes an Action on the HTTP surface.
type WebBinding struct {
	// Method is the HTTP verb (GET, POST, ...).
	Method string

	// Route is the path pattern relative to the API mount, e.g.
	// "/messages/{id}". Segments wrapped in braces capture path params.
	Route string
}

// TaskBinding exposes an Action on the background queue.
type TaskBinding struct {
	// Queue names the task queue. Empty means DefaultQueue.
	Queue string

	// Frequency, when positive, makes the action periodic: workers
	// re-enqueue it on this interval.
	Frequency time.Duration
}

// Action is an immutable, transport-agnostic handler definition. Declare it
// as a struct literal and register it on an Engine at boot:
//
//	var echo = &domain.Action{
//		Name:   "echo",
//		Inputs: []domain.Input{{Name: "message", Required: true}},
//		Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
//			return map[string]any{"message": p.String("message")}, nil
//		},
//	}
type Action struct {
	// Name is the globally unique dispatch key. It doubles as the
	// queue-routable task identifier.
	Name string

	// Description feeds CLI help and rendered docs.
	Description string

	// Inputs is the ordered parameter schema.
	Inputs []Input

	// Run is the handler. Registration fails when nil.
	Run RunFunc

	// Web optionally binds the action to an HTTP route and verb.
	Web *WebBinding

	// Task optionally binds the action to a task queue, with an optional
	// periodic frequency.
	Task *TaskBinding
}

// Caller is the view of the invoking connection that an Action handler
// receives. It is the explicit application-context handle: everything a
// handler may touch (session, pub/sub, fan-out) flows through it, never
// through package-level state.
type Caller interface {
	// ID returns the opaque connection identity (the session key).
	ID() string

	// Kind returns the transport tag (web, websocket, cli, task).
	Kind() string

	// Session returns the connection's session, loading or creating it on
	// first access. The result is cached for the connection's lifetime.
	Session(ctx context.Context) (*Session, error)

	// UpdateSession shallow-merges patch into the session data and
	// persists it. Returns the merged data map.
	UpdateSession(ctx context.Context, patch map[string]any) (map[string]any, error)

	// DestroySession deletes the session. The next Session call creates a
	// fresh one.
	DestroySession(ctx context.Context) error

	// Subscribe adds a pub/sub channel to the connection's subscriptions.
	Subscribe(channel string)

	// Unsubscribe removes a channel. Returns ErrNotSubscribed when the
	// connection is not a member.
	Unsubscribe(channel string) error

	// Subscriptions lists the subscribed channel names.
	Subscriptions() []string

	// Publish sends payload to a channel the connection is subscribed to.
	// Returns ErrNotSubscribed otherwise.
	Publish(ctx context.Context, channel string, payload []byte) error

	// FanOut scatters a batch of child tasks and returns its receipt.
	FanOut(ctx context.Context, req FanOutRequest) (*FanOutReceipt, error)

	// FanOutStatus reports the aggregate view of a fan-out batch.
	FanOutStatus(ctx context.Context, fanOutID string) (*FanOutStatus, error)

	// Logger returns a logger scoped to this connection.
	Logger() *slog.Logger
}

// File is an uploaded parameter value (multipart transports).
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// String keeps log lines and %v formatting free of raw file bytes.
func (f *File) String() string {
	return fmt.Sprintf("file(%s, %d bytes)", f.Filename, f.Size)
}

// Connection kinds, one per transport.
const (
	ConnectionWeb       = "web"
	ConnectionWebSocket = "websocket"
	ConnectionCLI       = "cli"
	ConnectionTask      = "task"
)
