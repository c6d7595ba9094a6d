// Package http exposes an Engine over HTTP. Every web-bound action is
// reachable under /api by its declared route, and every action at all by
// its name (POST /api/{action}). The transport stays thin: it gathers raw
// params from the query, body, and uploads, hands them to the dispatch
// pipeline, and writes the envelope back with a status derived from the
// error kind.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/params"
)

// SessionCookie names the cookie that carries the connection id across
// requests. One browser keeps one session this way.
const SessionCookie = "arborSession"

const (
	// maxBodySize bounds a JSON request body.
	maxBodySize = 1 << 20

	// maxUploadMemory is the in-memory ceiling for multipart parsing;
	// larger uploads spill to temp files.
	maxUploadMemory = 32 << 20
)

// Server serves an Engine's actions over HTTP.
type Server struct {
	engine          *arbor.Engine
	addr            string
	shutdownTimeout time.Duration
	websocket       http.Handler
	logger          *slog.Logger

	srv      *http.Server
	listener net.Listener
}

// Option configures the Server.
type Option func(*Server)

// WithAddr sets the listen address. Default ":8080".
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithWebSocket mounts a WebSocket upgrade handler at /ws, sharing the
// listener with the API routes.
func WithWebSocket(handler http.Handler) Option {
	return func(s *Server) {
		s.websocket = handler
	}
}

// NewServer builds an HTTP server over the engine.
func NewServer(engine *arbor.Engine, opts ...Option) *Server {
	s := &Server{
		engine:          engine,
		addr:            ":8080",
		shutdownTimeout: 5 * time.Second,
		logger:          engine.Logger().With("component", "http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the router. It is exposed so tests can drive the server
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", s.engine.MetricsHandler())
	r.HandleFunc("/api/*", s.handleAction)
	if s.websocket != nil {
		r.Method(http.MethodGet, "/ws", s.websocket)
	}
	return r
}

// Start begins listening in the background. A failure to bind reports as
// SERVER_START.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return domain.WrapError(domain.KindServerStart, err, "failed to listen on %s: %s", s.addr, err)
	}
	s.listener = ln
	s.logger.Info("http server started", "addr", ln.Addr().String())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address, useful when Start was given
// port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop drains in-flight requests and shuts the listener down. A failed
// drain falls back to a hard close and reports as SERVER_STOP.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		_ = s.srv.Close()
		return domain.WrapError(domain.KindServerStop, err, "failed to stop http server: %s", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// handleAction is the catch-all dispatch endpoint. The route match is
// decided up front so each request dispatches exactly once: a declared
// web binding wins, otherwise a single bare segment is treated as an
// action name.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	id, minted := s.connectionID(r)
	if minted {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	conn := s.engine.NewConnection(domain.ConnectionWeb, id)

	raw, paramErr := collectParams(r)
	if paramErr != nil {
		s.writeEnvelope(w, domain.Fail(paramErr))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api")
	name := strings.Trim(path, "/")

	var resp *domain.Response
	_, routed := s.engine.Registry().Match(r.Method, path)
	if !routed && name != "" && !strings.Contains(name, "/") {
		resp = conn.Act(r.Context(), name, raw)
	} else {
		resp = conn.ActMatch(r.Context(), r.Method, path, raw)
	}
	s.writeEnvelope(w, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	queues := make(map[string]int64)
	for _, name := range s.engine.Registry().Queues() {
		depth, err := s.engine.Queue().Depth(r.Context(), name)
		if err != nil {
			s.logger.Error("failed to read queue depth", "queue", name, "error", err)
			continue
		}
		queues[name] = depth
	}

	payload := map[string]any{
		"engine":     s.engine.Name(),
		"uptime_sec": int64(s.engine.Uptime().Seconds()),
		"actions":    s.engine.Registry().Len(),
		"queues":     queues,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode status", "error", err)
	}
}

// connectionID reads the session cookie, minting a fresh id when the
// request carries none.
func (s *Server) connectionID(r *http.Request) (id string, minted bool) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, false
	}
	return uuid.NewString(), true
}

// writeEnvelope serializes the response envelope with the status code its
// error kind maps to. The envelope body is always JSON, success or not.
func (s *Server) writeEnvelope(w http.ResponseWriter, resp *domain.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(resp))
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func statusFor(resp *domain.Response) int {
	if resp.Error == nil {
		return http.StatusOK
	}
	if resp.Error.Kind == domain.KindActionNotFound {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// collectParams merges the request's inputs into one raw param map:
// query params first, then body params on top (JSON, urlencoded form, or
// multipart, by content type). Multipart files become *domain.File.
// String values pass the transport hygiene filter; rejects report as
// PARAM_FORMATTING.
func collectParams(r *http.Request) (map[string]any, *domain.Error) {
	raw := make(map[string]any)

	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		clean, err := params.Clean(values[0], 0)
		if err != nil {
			return nil, domain.NewParamError(domain.KindParamFormatting, key, nil,
				"invalid query parameter %q: %v", key, err)
		}
		raw[key] = clean
	}

	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, _ = mime.ParseMediaType(ct)
	}

	switch mediaType {
	case "application/json":
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			return nil, domain.NewError(domain.KindParamFormatting, "failed to read request body: %v", err)
		}
		if len(strings.TrimSpace(string(body))) == 0 {
			break
		}
		var decoded map[string]any
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, domain.NewError(domain.KindParamFormatting, "invalid JSON body: %v", err)
		}
		for key, value := range decoded {
			if str, ok := value.(string); ok {
				clean, err := params.Clean(str, 0)
				if err != nil {
					return nil, domain.NewParamError(domain.KindParamFormatting, key, nil,
						"invalid body parameter %q: %v", key, err)
				}
				value = clean
			}
			raw[key] = value
		}

	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			return nil, domain.NewError(domain.KindParamFormatting, "invalid multipart body: %v", err)
		}
		for key, values := range r.MultipartForm.Value {
			if len(values) == 0 {
				continue
			}
			clean, err := params.Clean(values[0], 0)
			if err != nil {
				return nil, domain.NewParamError(domain.KindParamFormatting, key, nil,
					"invalid form parameter %q: %v", key, err)
			}
			raw[key] = clean
		}
		for key, files := range r.MultipartForm.File {
			if len(files) == 0 {
				continue
			}
			file, err := readUpload(files[0])
			if err != nil {
				return nil, domain.NewParamError(domain.KindParamFormatting, key, nil,
					"failed to read upload %q: %v", key, err)
			}
			raw[key] = file
		}

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, domain.NewError(domain.KindParamFormatting, "invalid form body: %v", err)
		}
		for key, values := range r.PostForm {
			if len(values) == 0 {
				continue
			}
			clean, err := params.Clean(values[0], 0)
			if err != nil {
				return nil, domain.NewParamError(domain.KindParamFormatting, key, nil,
					"invalid form parameter %q: %v", key, err)
			}
			raw[key] = clean
		}
	}

	return raw, nil
}

func readUpload(header *multipart.FileHeader) (*domain.File, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &domain.File{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        data,
	}, nil
}
