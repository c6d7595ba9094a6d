package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/arbor/pkg/domain"
)

// subscriberBuffer bounds each subscriber's in-flight messages. A full
// buffer drops new messages rather than stalling the pump goroutine.
const subscriberBuffer = 64

// Broker implements ports.Broker on Redis pub/sub. Channel names are
// prefixed on the wire and stripped again on delivery.
type Broker struct {
	client *backend.Client
	prefix string
}

// NewBroker creates a Redis-backed pub/sub broker.
func NewBroker(client *backend.Client, opts ...Option) *Broker {
	s := newSettings(opts...)
	return &Broker{
		client: client,
		prefix: s.prefix,
	}
}

func (b *Broker) channelKey(channel string) string {
	return b.prefix + "channel:" + channel
}

// Publish delivers the payload to every subscriber of the channel.
func (b *Broker) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, b.channelKey(channel), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens one delivery channel for all the given channels. It
// waits for the subscription to be confirmed before returning, so a
// publish issued afterwards is guaranteed to reach the subscriber.
func (b *Broker) Subscribe(ctx context.Context, channels ...string) (<-chan domain.Message, func() error, error) {
	if len(channels) == 0 {
		return nil, nil, fmt.Errorf("at least one channel is required")
	}

	keys := make([]string, len(channels))
	for i, name := range channels {
		keys[i] = b.channelKey(name)
	}

	sub := b.client.Subscribe(ctx, keys...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan domain.Message, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			m := domain.Message{
				Channel: strings.TrimPrefix(msg.Channel, b.prefix+"channel:"),
				Payload: []byte(msg.Payload),
			}
			select {
			case out <- m:
			default:
			}
		}
	}()

	var once sync.Once
	stop := func() error {
		var err error
		once.Do(func() {
			err = sub.Close()
		})
		return err
	}
	return out, stop, nil
}
