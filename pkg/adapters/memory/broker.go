package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// subscriberBuffer bounds each subscriber's in-flight messages. A full
// buffer drops new messages rather than blocking the publisher.
const subscriberBuffer = 64

// Broker implements ports.Broker with in-process channels. Delivery is
// at-most-once per subscriber.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[int]chan domain.Message
	next int
}

// NewBroker creates an in-memory pub/sub broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[int]chan domain.Message),
	}
}

// Publish delivers the payload to every current subscriber of the channel.
func (b *Broker) Publish(ctx context.Context, channel string, payload []byte) error {
	msg := domain.Message{Channel: channel, Payload: payload}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers one delivery channel for all the given channels.
// The returned stop function unregisters it and closes the channel; it
// is safe to call more than once.
func (b *Broker) Subscribe(ctx context.Context, channels ...string) (<-chan domain.Message, func() error, error) {
	if len(channels) == 0 {
		return nil, nil, fmt.Errorf("at least one channel is required")
	}

	ch := make(chan domain.Message, subscriberBuffer)

	b.mu.Lock()
	id := b.next
	b.next++
	for _, name := range channels {
		if b.subs[name] == nil {
			b.subs[name] = make(map[int]chan domain.Message)
		}
		b.subs[name][id] = ch
	}
	b.mu.Unlock()

	var once sync.Once
	stop := func() error {
		once.Do(func() {
			b.mu.Lock()
			for _, name := range channels {
				delete(b.subs[name], id)
				if len(b.subs[name]) == 0 {
					delete(b.subs, name)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
		return nil
	}
	return ch, stop, nil
}
