package domain

import "time"

// DefaultQueue is the queue tasks land on when no queue is named.
const DefaultQueue = "default"

// Task is one queued invocation of an Action, serialized onto a task queue
// and executed later by a worker.
type Task struct {
	// ID identifies this enqueued unit (for logs and tracing).
	ID string `json:"id"`

	// Action is the name of the Action to invoke.
	Action string `json:"action"`

	// Params is the raw string input set for the invocation. The worker
	// feeds it through the same parameter pipeline as any transport.
	Params map[string]string `json:"params,omitempty"`

	// Queue is the queue the task was enqueued on.
	Queue string `json:"queue"`

	// FanOutID ties the task to a fan-out aggregate. Workers report the
	// outcome into the aggregate when set; empty means plain background
	// work with no aggregation.
	FanOutID string `json:"fan_out_id,omitempty"`

	// EnqueuedAt is the enqueue stamp.
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Message is one pub/sub delivery.
type Message struct {
	Channel string
	Payload []byte
}
