package domain

import "time"

// DefaultFanOutTTL bounds how long a fan-out aggregate stays queryable
// without new completion reports.
const DefaultFanOutTTL = 600 * time.Second

// FanOutJob is one child unit of a fan-out batch.
type FanOutJob struct {
	// Action is the child action name.
	Action string `json:"action"`

	// Inputs is the raw input set for this child.
	Inputs map[string]string `json:"inputs,omitempty"`

	// Queue overrides the batch queue for this job. Empty inherits it.
	Queue string `json:"queue,omitempty"`
}

// FanOutRequest describes a batch to scatter. Populate either Action plus
// InputSets (the same action over N input sets) or Jobs (a heterogeneous
// list); Jobs wins when both are set.
type FanOutRequest struct {
	// Action is the child action repeated over InputSets.
	Action string

	// InputSets holds one raw input set per child.
	InputSets []map[string]string

	// Jobs is an explicit heterogeneous child list.
	Jobs []FanOutJob

	// Queue is the default queue for the batch. Empty means DefaultQueue.
	Queue string

	// ResultTTL bounds the aggregate's lifetime between reports. Zero
	// means DefaultFanOutTTL.
	ResultTTL time.Duration

	// BatchSize chunks the enqueue round-trips. Zero means the
	// coordinator's default.
	BatchSize int
}

// FanOutReceipt acknowledges a scattered batch. The parent resumes as soon
// as it holds one; children run later, elsewhere.
type FanOutReceipt struct {
	// ID is the opaque batch identifier children report against.
	ID string `json:"id"`

	// Total is the number of children, fixed at creation.
	Total int `json:"total"`
}

// FanOutStatus is the aggregate view of one batch. Completed and Failed
// only grow, Completed+Failed never exceeds Total, and the record expires
// passively once its TTL elapses without a refresh.
type FanOutStatus struct {
	ID        string    `json:"id"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	Results   []any     `json:"results"`
	Errors    []Error   `json:"errors"`
	CreatedAt time.Time `json:"created_at"`
}

// Terminal reports whether every child has reported. A terminal aggregate
// stays queryable until its TTL elapses.
func (s *FanOutStatus) Terminal() bool {
	return s.Completed+s.Failed >= s.Total
}
