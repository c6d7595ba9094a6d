package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// hub reference-counts broker subscriptions per channel. The first
// socket joining a channel opens the broker subscription, the last one
// leaving closes it, so N chat members cost one subscription per
// process, not one per socket.
type hub struct {
	broker ports.Broker
	logger *slog.Logger

	mu       sync.Mutex
	channels map[string]*hubChannel
}

type hubChannel struct {
	stop    func() error
	members map[*socket]struct{}
}

func newHub(broker ports.Broker, logger *slog.Logger) *hub {
	return &hub{
		broker:   broker,
		logger:   logger,
		channels: make(map[string]*hubChannel),
	}
}

// join registers the socket for a channel, opening the broker
// subscription when it is the channel's first member.
func (h *hub) join(channel string, s *socket) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	hc, ok := h.channels[channel]
	if !ok {
		// Delivery must outlive any single request, so the
		// subscription gets its own context.
		msgs, stop, err := h.broker.Subscribe(context.Background(), channel)
		if err != nil {
			return err
		}
		hc = &hubChannel{stop: stop, members: make(map[*socket]struct{})}
		h.channels[channel] = hc
		go h.forward(channel, msgs)
	}
	hc.members[s] = struct{}{}
	return nil
}

// leave removes the socket, closing the broker subscription when the
// channel has no members left.
func (h *hub) leave(channel string, s *socket) {
	h.mu.Lock()
	hc, ok := h.channels[channel]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(hc.members, s)

	var stop func() error
	if len(hc.members) == 0 {
		stop = hc.stop
		delete(h.channels, channel)
	}
	h.mu.Unlock()

	if stop != nil {
		if err := stop(); err != nil {
			h.logger.Error("failed to close channel subscription", "channel", channel, "error", err)
		}
	}
}

// forward pushes broker deliveries to every member socket. It exits
// when the subscription's channel closes.
func (h *hub) forward(channel string, msgs <-chan domain.Message) {
	for msg := range msgs {
		h.mu.Lock()
		hc := h.channels[channel]
		members := make([]*socket, 0, 4)
		if hc != nil {
			for s := range hc.members {
				members = append(members, s)
			}
		}
		h.mu.Unlock()

		for _, s := range members {
			s.deliver(msg)
		}
	}
}
