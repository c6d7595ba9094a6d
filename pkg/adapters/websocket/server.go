// Package websocket exposes an Engine over a long-lived socket. Unlike
// the HTTP adapter's one-connection-per-request model, each socket keeps
// one Connection for its whole lifetime, so the session loads once and
// subscriptions survive between frames. Frames are JSON objects tagged
// by an "event" field; pub/sub deliveries arrive as "message" frames.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/params"
)

// sessionCookie mirrors the HTTP adapter's cookie so a browser shares
// one session across both transports.
const sessionCookie = "arborSession"

// deliverTimeout bounds one outbound push to a slow socket.
const deliverTimeout = 5 * time.Second

// Frame events understood by the server.
const (
	EventAction      = "action"
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventSay         = "say"

	EventWelcome  = "welcome"
	EventResponse = "response"
	EventMessage  = "message"
)

// Frame is the wire shape in both directions; unused fields stay empty.
type Frame struct {
	Event   string         `json:"event"`
	ID      string         `json:"id,omitempty"`
	Action  string         `json:"action,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
	Channel string         `json:"channel,omitempty"`
	Payload string         `json:"payload,omitempty"`

	ConnectionID string        `json:"connection_id,omitempty"`
	Response     any           `json:"response,omitempty"`
	Error        *domain.Error `json:"error,omitempty"`
}

// Server upgrades HTTP requests and serves the frame protocol. Mount it
// on any router; it implements http.Handler.
type Server struct {
	engine *arbor.Engine
	logger *slog.Logger
	hub    *hub
}

// NewServer builds a WebSocket server over the engine.
func NewServer(engine *arbor.Engine) *Server {
	logger := engine.Logger().With("component", "websocket")
	return &Server{
		engine: engine,
		logger: logger,
		hub:    newHub(engine.Broker(), logger),
	}
}

// ServeHTTP upgrades the request and runs the socket until the client
// goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to accept websocket", "error", err)
		return
	}

	id := connectionID(r)
	conn := s.engine.NewConnection(domain.ConnectionWebSocket, id)

	sock := &socket{
		ws:     ws,
		conn:   conn,
		server: s,
	}
	defer sock.close()

	sock.run(r.Context())
}

func connectionID(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return uuid.NewString()
}

// socket is one upgraded client. The websocket library forbids
// concurrent writes, so every send goes through writeMu.
type socket struct {
	ws     *websocket.Conn
	conn   *arbor.Connection
	server *Server

	writeMu sync.Mutex
	once    sync.Once
}

func (s *socket) run(ctx context.Context) {
	if err := s.send(ctx, &Frame{Event: EventWelcome, ConnectionID: s.conn.ID()}); err != nil {
		return
	}

	for {
		_, data, err := s.ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				s.conn.Logger().Debug("websocket read ended", "error", err)
			}
			return
		}
		s.handleFrame(ctx, data)
	}
}

func (s *socket) handleFrame(ctx context.Context, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.reply(ctx, "", nil, domain.NewError(domain.KindParamFormatting, "invalid frame: %v", err))
		return
	}

	switch frame.Event {
	case EventAction:
		raw, err := cleanParams(frame.Params)
		if err != nil {
			s.reply(ctx, frame.ID, nil, err)
			return
		}
		resp := s.conn.Act(ctx, frame.Action, raw)
		s.reply(ctx, frame.ID, resp.Response, resp.Error)

	case EventSubscribe:
		channel, err := cleanChannel(frame.Channel)
		if err != nil {
			s.reply(ctx, frame.ID, nil, err)
			return
		}
		if err := s.server.hub.join(channel, s); err != nil {
			s.reply(ctx, frame.ID, nil, domain.Classify(err))
			return
		}
		s.conn.Subscribe(channel)
		s.reply(ctx, frame.ID, map[string]any{"subscribed": channel}, nil)

	case EventUnsubscribe:
		channel, err := cleanChannel(frame.Channel)
		if err != nil {
			s.reply(ctx, frame.ID, nil, err)
			return
		}
		if err := s.conn.Unsubscribe(channel); err != nil {
			s.reply(ctx, frame.ID, nil, domain.Classify(err))
			return
		}
		s.server.hub.leave(channel, s)
		s.reply(ctx, frame.ID, map[string]any{"unsubscribed": channel}, nil)

	case EventSay:
		channel, err := cleanChannel(frame.Channel)
		if err != nil {
			s.reply(ctx, frame.ID, nil, err)
			return
		}
		payload, cerr := params.Clean(frame.Payload, 0)
		if cerr != nil {
			s.reply(ctx, frame.ID, nil, domain.NewError(domain.KindParamFormatting, "invalid payload: %v", cerr))
			return
		}
		if err := s.conn.Publish(ctx, channel, []byte(payload)); err != nil {
			s.reply(ctx, frame.ID, nil, domain.Classify(err))
			return
		}
		s.reply(ctx, frame.ID, map[string]any{"published": channel}, nil)

	default:
		s.reply(ctx, frame.ID, nil, domain.NewError(domain.KindRun, "unknown event %q", frame.Event))
	}
}

// reply sends a response frame mirroring the inbound frame's id.
func (s *socket) reply(ctx context.Context, id string, response any, failure *domain.Error) {
	frame := &Frame{Event: EventResponse, ID: id, Response: response, Error: failure}
	if err := s.send(ctx, frame); err != nil {
		s.conn.Logger().Debug("failed to write response frame", "error", err)
	}
}

// deliver pushes one broker message. Called from the hub's forwarding
// goroutine, so it carries its own deadline instead of a request ctx.
func (s *socket) deliver(msg domain.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	frame := &Frame{Event: EventMessage, Channel: msg.Channel, Payload: string(msg.Payload)}
	if err := s.send(ctx, frame); err != nil {
		s.conn.Logger().Debug("failed to deliver message", "channel", msg.Channel, "error", err)
	}
}

func (s *socket) send(ctx context.Context, frame *Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ws.Write(ctx, websocket.MessageText, data)
}

// close leaves every joined channel and closes the socket. Safe to call
// more than once.
func (s *socket) close() {
	s.once.Do(func() {
		for _, channel := range s.conn.Subscriptions() {
			s.server.hub.leave(channel, s)
		}
		_ = s.ws.Close(websocket.StatusNormalClosure, "")
	})
}

func cleanParams(raw map[string]any) (map[string]any, *domain.Error) {
	if len(raw) == 0 {
		return raw, nil
	}
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		if str, ok := value.(string); ok {
			clean, err := params.Clean(str, 0)
			if err != nil {
				return nil, domain.NewParamError(domain.KindParamFormatting, key, nil,
					"invalid parameter %q: %v", key, err)
			}
			value = clean
		}
		out[key] = value
	}
	return out, nil
}

func cleanChannel(channel string) (string, *domain.Error) {
	clean, err := params.Clean(channel, 0)
	if err != nil || clean == "" {
		return "", domain.NewError(domain.KindParamFormatting, "invalid channel name %q", channel)
	}
	return clean, nil
}
