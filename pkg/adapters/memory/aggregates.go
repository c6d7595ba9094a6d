package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// Aggregates implements ports.AggregateStore in memory. Reports count
// and append under one lock, so concurrent children never lose updates.
// Like the session store, expiry is passive.
type Aggregates struct {
	mu   sync.Mutex
	data map[string]*aggregate
	now  func() time.Time
}

type aggregate struct {
	total     int
	completed int
	failed    int
	results   []any
	errors    []domain.Error
	createdAt time.Time
	ttl       time.Duration
	expiresAt time.Time
}

// AggregatesOption configures an Aggregates store.
type AggregatesOption func(*Aggregates)

// WithAggregateClock injects the time source.
func WithAggregateClock(now func() time.Time) AggregatesOption {
	return func(a *Aggregates) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregates creates an in-memory fan-out aggregate store.
func NewAggregates(opts ...AggregatesOption) *Aggregates {
	a := &Aggregates{
		data: make(map[string]*aggregate),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Create registers a new aggregate with the given expected total.
func (a *Aggregates) Create(ctx context.Context, id string, total int, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = domain.DefaultFanOutTTL
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.data[id] = &aggregate{
		total:     total,
		createdAt: now.UTC(),
		ttl:       ttl,
		expiresAt: now.Add(ttl),
	}
	return nil
}

// AddResult records one successful child and refreshes the aggregate TTL.
// Reports that arrive after expiry get ErrFanOutNotFound rather than
// resurrecting the aggregate.
func (a *Aggregates) AddResult(ctx context.Context, id string, result any) error {
	// Round-trip through JSON so stored values match what a serializing
	// backend returns (maps with string keys, numbers as float64).
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	var value any
	if err := json.Unmarshal(encoded, &value); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	agg, err := a.live(id)
	if err != nil {
		return err
	}
	agg.completed++
	agg.results = append(agg.results, value)
	agg.expiresAt = a.now().Add(agg.ttl)
	return nil
}

// AddError records one failed child and refreshes the aggregate TTL.
func (a *Aggregates) AddError(ctx context.Context, id string, cause *domain.Error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	agg, err := a.live(id)
	if err != nil {
		return err
	}
	agg.failed++
	agg.errors = append(agg.errors, *cause)
	agg.expiresAt = a.now().Add(agg.ttl)
	return nil
}

// Status returns a snapshot of the aggregate. Reading the status does
// not refresh the TTL; only reports keep an aggregate alive.
func (a *Aggregates) Status(ctx context.Context, id string) (*domain.FanOutStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	agg, err := a.live(id)
	if err != nil {
		return nil, err
	}

	status := &domain.FanOutStatus{
		ID:        id,
		Total:     agg.total,
		Completed: agg.completed,
		Failed:    agg.failed,
		Results:   make([]any, len(agg.results)),
		Errors:    make([]domain.Error, len(agg.errors)),
		CreatedAt: agg.createdAt,
	}
	copy(status.Results, agg.results)
	copy(status.Errors, agg.errors)
	return status, nil
}

// live looks up an aggregate, dropping it if expired. Callers hold the lock.
func (a *Aggregates) live(id string) (*aggregate, error) {
	agg, ok := a.data[id]
	if !ok {
		return nil, domain.ErrFanOutNotFound
	}
	if !a.now().Before(agg.expiresAt) {
		delete(a.data, id)
		return nil, domain.ErrFanOutNotFound
	}
	return agg, nil
}
