package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/params"
)

func newTestEngine(t *testing.T) *arbor.Engine {
	t.Helper()
	engine, err := arbor.New()
	require.NoError(t, err)

	require.NoError(t, engine.Register(
		&domain.Action{
			Name: "echo",
			Inputs: []domain.Input{
				{Name: "message", Required: true, Formatter: params.String},
			},
			Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
				return map[string]any{"message": p.String("message")}, nil
			},
		},
		&domain.Action{
			Name: "userShow",
			Inputs: []domain.Input{
				{Name: "id", Required: true, Formatter: params.String},
			},
			Web: &domain.WebBinding{Method: "GET", Route: "/users/{id}"},
			Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
				return map[string]any{"id": p.String("id")}, nil
			},
		},
		&domain.Action{
			Name: "login",
			Inputs: []domain.Input{
				{Name: "user", Required: true, Formatter: params.String},
			},
			Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
				return c.UpdateSession(ctx, map[string]any{"user": p.String("user")})
			},
		},
		&domain.Action{
			Name: "whoami",
			Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
				sess, err := c.Session(ctx)
				if err != nil {
					return nil, err
				}
				return sess.Data["user"], nil
			},
		},
		&domain.Action{
			Name: "upload",
			Inputs: []domain.Input{
				{Name: "doc", Required: true},
				{Name: "label", Formatter: params.String},
			},
			Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
				doc := p.File("doc")
				if doc == nil {
					return nil, errors.New("doc is not a file")
				}
				return map[string]any{
					"filename": doc.Filename,
					"size":     doc.Size,
					"label":    p.String("label"),
				}, nil
			},
		},
	))
	return engine
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) *domain.Response {
	t.Helper()
	var resp domain.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return &resp
}

func TestServer_DispatchByName(t *testing.T) {
	handler := NewServer(newTestEngine(t)).Handler()

	req := httptest.NewRequest("POST", "/api/echo", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"message": "hi"}, resp.Response)
}

func TestServer_DispatchByRoute(t *testing.T) {
	handler := NewServer(newTestEngine(t)).Handler()

	req := httptest.NewRequest("GET", "/api/users/42", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"id": "42"}, resp.Response)
}

func TestServer_UnknownActionIs404(t *testing.T) {
	handler := NewServer(newTestEngine(t)).Handler()

	req := httptest.NewRequest("GET", "/api/users/42/avatars/7", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.KindActionNotFound, resp.Error.Kind)
}

func TestServer_ParamFailureIs500(t *testing.T) {
	handler := NewServer(newTestEngine(t)).Handler()

	req := httptest.NewRequest("POST", "/api/echo", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.KindParamRequired, resp.Error.Kind)
	assert.Equal(t, "message", resp.Error.Key)
}

func TestServer_MalformedJSONBody(t *testing.T) {
	handler := NewServer(newTestEngine(t)).Handler()

	req := httptest.NewRequest("POST", "/api/echo", strings.NewReader(`{"message":`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.KindParamFormatting, resp.Error.Kind)
}

func TestServer_BodyWinsOverQuery(t *testing.T) {
	handler := NewServer(newTestEngine(t)).Handler()

	req := httptest.NewRequest("POST", "/api/echo?message=query", strings.NewReader(`{"message":"body"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := decodeEnvelope(t, rec)
	require.Nil(t, resp.Error)
	assert.Equal(t, "body", resp.Response.(map[string]any)["message"])
}

func TestServer_SessionCookieRoundTrip(t *testing.T) {
	handler := NewServer(newTestEngine(t)).Handler()

	// First request carries no cookie, so the server mints one.
	req := httptest.NewRequest("POST", "/api/login?user=ada", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	var session *http.Cookie
	for _, c := range cookies {
		if c.Name == SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session, "first response should set the session cookie")
	require.NotEmpty(t, session.Value)

	// Replaying the cookie lands on the same session.
	req = httptest.NewRequest("GET", "/api/whoami", nil)
	req.AddCookie(session)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := decodeEnvelope(t, rec)
	require.Nil(t, resp.Error)
	assert.Equal(t, "ada", resp.Response)
	assert.Empty(t, rec.Result().Cookies(), "a returning client gets no new cookie")
}

func TestServer_MultipartUpload(t *testing.T) {
	handler := NewServer(newTestEngine(t)).Handler()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("doc", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("label", "meeting"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.Nil(t, resp.Error)

	got := resp.Response.(map[string]any)
	assert.Equal(t, "notes.txt", got["filename"])
	assert.Equal(t, float64(len("hello world")), got["size"])
	assert.Equal(t, "meeting", got["label"])
}

func TestServer_Status(t *testing.T) {
	engine := newTestEngine(t)
	handler := NewServer(engine).Handler()

	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "arbor", payload["engine"])
	assert.Equal(t, float64(engine.Registry().Len()), payload["actions"])
	assert.Contains(t, payload["queues"], domain.DefaultQueue)
}

func TestServer_StartAndStop(t *testing.T) {
	engine := newTestEngine(t)
	srv := NewServer(engine, WithAddr("127.0.0.1:0"))

	require.NoError(t, srv.Start())

	res, err := http.Get("http://" + srv.Addr() + "/status")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// A second server on the same port cannot bind.
	clone := NewServer(engine, WithAddr(srv.Addr()))
	err = clone.Start()
	require.Error(t, err)
	var tagged *domain.Error
	require.True(t, errors.As(err, &tagged))
	assert.Equal(t, domain.KindServerStart, tagged.Kind)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
}
