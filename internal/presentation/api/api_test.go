package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/parley/internal/application/chat"
	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/infrastructure/configs"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/metrics"
	"github.com/hilthontt/parley/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/parley/internal/infrastructure/transport/local"
	"github.com/hilthontt/parley/internal/infrastructure/ws"
	healthHandler "github.com/hilthontt/parley/internal/presentation/handler/health"
	messagesHandler "github.com/hilthontt/parley/internal/presentation/handler/messages"
	roomHandler "github.com/hilthontt/parley/internal/presentation/handler/rooms"
	translateHandler "github.com/hilthontt/parley/internal/presentation/handler/translate"
	"github.com/hilthontt/parley/internal/presentation/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoom = "lobby"

type translatorFunc func(ctx context.Context, text, from, to string) string

func (f translatorFunc) Translate(ctx context.Context, text, from, to string) string {
	return f(ctx, text, from, to)
}

func prefixTranslator() translatorFunc {
	return func(_ context.Context, text, _, to string) string {
		return to + ":" + text
	}
}

type failingMessages struct {
	domain.MessageRepository
}

func (failingMessages) Add(context.Context, string, domain.NewMessage) (*domain.ChatMessage, error) {
	return nil, errors.New("connection reset")
}

type failingStore struct {
	chat.Store
}

func (s failingStore) Messages() domain.MessageRepository {
	return failingMessages{s.Store.Messages()}
}

type testServer struct {
	*httptest.Server
	metrics *metrics.Metrics
	service *chat.Service
}

type serverOptions struct {
	store    func(*local.Backend) chat.Store
	maxBurst int
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()

	backend := local.New(local.Options{})
	var store chat.Store = backend
	if opts.store != nil {
		store = opts.store(backend)
	}
	if opts.maxBurst == 0 {
		opts.maxBurst = 1000
	}

	m := metrics.New()
	logger := logging.NewNop()
	translator := prefixTranslator()

	svc := chat.NewService(store, translator, nil, logger, m, chat.Options{})
	rm := ws.NewRoomManager([]string{"*"}, logger, m)
	core := ws.NewCore(rm, svc, roomHandler.NewCommands(svc, rm, logger, true), logger)

	ctx, cancel := context.WithCancel(context.Background())
	go core.Run(ctx)

	cfg := configs.Config{
		HTTP: configs.HTTPConfig{
			AllowedOrigins: []string{"https://chat.example.com"},
			AllowedHeaders: []string{"Content-Type", "X-Client-ID"},
		},
	}
	limiter := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: 1,
		MaxBurst:         opts.maxBurst,
	})

	app := NewApplication(cfg, Handlers{
		Rooms:     roomHandler.NewHandler(svc, rm, core, logger, false),
		Messages:  messagesHandler.NewHandler(svc, logger),
		Translate: translateHandler.NewHandler(translator),
		Health:    healthHandler.NewHandler(backend.Name(), false),
	}, logger, limiter, m)

	srv := httptest.NewServer(app.Mount())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		svc.Close()
		backend.Close()
	})

	return &testServer{Server: srv, metrics: m, service: svc}
}

func (s *testServer) do(t *testing.T, method, path, clientID string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if clientID != "" {
		req.Header.Set(utils.HeaderClientID, clientID)
	}

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *testServer) join(t *testing.T, clientID, name, language string) domain.PresenceRecord {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/rooms/"+testRoom+"/join", clientID, map[string]string{
		"name":     name,
		"language": language,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		ClientID string                `json:"clientId"`
		Member   domain.PresenceRecord `json:"member"`
	}
	decode(t, resp, &out)
	assert.Equal(t, clientID, out.ClientID)
	return out.Member
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestJoinAssignsRoles(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	assert.Equal(t, domain.RoleParticipantA, s.join(t, "a", "Ana", "es").Role)
	assert.Equal(t, domain.RoleParticipantB, s.join(t, "b", "Bob", "en").Role)
	assert.Equal(t, domain.RoleSpectator, s.join(t, "c", "Cy", "fr").Role)

	// Rejoining keeps the role.
	assert.Equal(t, domain.RoleParticipantA, s.join(t, "a", "Ana", "es").Role)

	resp := s.do(t, http.MethodGet, "/api/rooms/"+testRoom+"/presence", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var presence struct {
		Members []domain.PresenceRecord `json:"members"`
	}
	decode(t, resp, &presence)
	require.Len(t, presence.Members, 3)
	assert.Equal(t, "a", presence.Members[0].ClientID)
}

func TestJoinWithoutIdentitySetsCookie(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	resp := s.do(t, http.MethodPost, "/api/rooms/"+testRoom+"/join", "", map[string]string{"name": "Ana"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == utils.CookieNameClientID {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.Expires.IsZero())
}

func TestJoinValidation(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	resp := s.do(t, http.MethodPost, "/api/rooms/"+testRoom+"/join", "a", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/rooms/"+testRoom+"/join", "a", map[string]string{"name": "Ana", "language": "??"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/rooms/bad%20room/join", "a", map[string]string{"name": "Ana"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/rooms/"+testRoom+"/join", "a", map[string]string{"name": "Ana", "extra": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHeartbeatAndLeave(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	resp := s.do(t, http.MethodPost, "/api/rooms/"+testRoom+"/heartbeat", "a", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	s.join(t, "a", "Ana", "es")

	resp = s.do(t, http.MethodPost, "/api/rooms/"+testRoom+"/heartbeat", "a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/rooms/"+testRoom+"/heartbeat", "a", map[string]string{"language": "pt-BR"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hb struct {
		Member domain.PresenceRecord `json:"member"`
	}
	decode(t, resp, &hb)
	assert.Equal(t, "pt-BR", hb.Member.Language)
	assert.Equal(t, domain.RoleParticipantA, hb.Member.Role)

	resp = s.do(t, http.MethodPost, "/api/rooms/"+testRoom+"/leave", "a", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, s.service.Presence(context.Background(), testRoom))

	resp = s.do(t, http.MethodPost, "/api/rooms/"+testRoom+"/leave", "a", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSendMessageStatuses(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	s.join(t, "a", "Ana", "es")
	s.join(t, "b", "Bob", "en")
	s.join(t, "c", "Cy", "en")

	path := "/api/rooms/" + testRoom + "/messages"

	resp := s.do(t, http.MethodPost, path, "a", map[string]string{"text": "Hola"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var msg domain.ChatMessage
	decode(t, resp, &msg)
	assert.Equal(t, "Hola", msg.Text)
	assert.True(t, msg.IsTranslating)

	resp = s.do(t, http.MethodPost, path, "c", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodPost, path, "stranger", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodPost, path, "a", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp := s.do(t, http.MethodGet, path, "", nil)
		var out struct {
			Messages []domain.ChatMessage `json:"messages"`
		}
		decode(t, resp, &out)
		return len(out.Messages) == 1 &&
			out.Messages[0].TranslatedText != nil &&
			*out.Messages[0].TranslatedText == "en:Hola" &&
			!out.Messages[0].IsTranslating
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSendMessageStoreFailure(t *testing.T) {
	s := newTestServer(t, serverOptions{
		store: func(b *local.Backend) chat.Store { return failingStore{b} },
	})
	s.join(t, "a", "Ana", "es")

	resp := s.do(t, http.MethodPost, "/api/rooms/"+testRoom+"/messages", "a", map[string]string{"text": "Hola"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestToggleOriginalAndClear(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	s.join(t, "a", "Ana", "en")

	resp := s.do(t, http.MethodPost, "/api/rooms/"+testRoom+"/messages", "a", map[string]string{"text": "Hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var msg domain.ChatMessage
	decode(t, resp, &msg)

	path := "/api/rooms/" + testRoom + "/messages/" + msg.ID
	resp = s.do(t, http.MethodPatch, path, "a", map[string]bool{"showOriginal": true})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	msgs := s.service.Messages(context.Background(), testRoom)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].ShowOriginal)

	resp = s.do(t, http.MethodPatch, path, "a", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown ids are ignored.
	resp = s.do(t, http.MethodPatch, "/api/rooms/"+testRoom+"/messages/missing", "a", map[string]bool{"showOriginal": true})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, "/api/rooms/"+testRoom+"/messages", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, s.service.Messages(context.Background(), testRoom))

	resp = s.do(t, http.MethodDelete, "/api/rooms/"+testRoom+"/presence", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, s.service.Presence(context.Background(), testRoom))
}

func TestTypingIdle(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	resp := s.do(t, http.MethodGet, "/api/rooms/"+testRoom+"/typing", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestTranslateEndpoint(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	resp := s.do(t, http.MethodPost, "/api/translate", "", map[string]string{"text": "Hola", "from": "es", "to": "en"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		TranslatedText string `json:"translatedText"`
	}
	decode(t, resp, &out)
	assert.Equal(t, "en:Hola", out.TranslatedText)

	resp = s.do(t, http.MethodPost, "/api/translate", "", map[string]string{"text": "Hola", "from": "es"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/translate", "", map[string]string{"text": "", "from": "es", "to": "en"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthReportsBackend(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	for _, path := range []string{"/api/health", "/api/healthz", "/api/ready", "/api/live"} {
		resp := s.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)

		var out map[string]string
		decode(t, resp, &out)
		assert.Equal(t, "ok", out["status"])
		assert.Equal(t, "local", out["backend"])
		assert.Equal(t, "fallback", out["translation"])
	}
}

func TestMetricsUseRoutePattern(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	s.do(t, http.MethodGet, "/api/rooms/"+testRoom+"/presence", "", nil)

	resp := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `route="/api/rooms/{roomId}/presence"`)

	resp = s.do(t, http.MethodGet, "/debug/vars", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSwaggerDocumentIsServed(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	resp := s.do(t, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	decode(t, resp, &doc)
	assert.Equal(t, "/api", doc.BasePath)
	for path, methods := range map[string][]string{
		"/rooms/{roomId}/join":                 {"post"},
		"/rooms/{roomId}/messages":             {"get", "post", "delete"},
		"/rooms/{roomId}/messages/{messageId}": {"patch"},
		"/rooms/{roomId}/presence":             {"get", "delete"},
		"/translate":                           {"post"},
	} {
		require.Contains(t, doc.Paths, path)
		for _, method := range methods {
			assert.Contains(t, doc.Paths[path], method, path)
		}
	}
}

func TestCorsPreflight(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	req, err := http.NewRequest(http.MethodOptions, s.URL+"/api/rooms/"+testRoom+"/messages", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://chat.example.com")
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://chat.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "X-Client-ID")

	req.Header.Set("Origin", "https://evil.example.com")
	resp2, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, serverOptions{maxBurst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req, err := http.NewRequest(http.MethodGet, s.URL+"/api/health", nil)
		require.NoError(t, err)
		req.Header.Set("X-RateLimit-Key", "tester")
		resp, err := s.Client().Do(req)
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
		resp.Body.Close()
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestWebSocketStreamsRoomChanges(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	s.join(t, "a", "Ana", "en")

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/rooms/" + testRoom + "/ws"
	header := http.Header{}
	header.Set(utils.HeaderClientID, "a")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(ws.Command{
		Type: ws.SendMessageCommand,
		Data: json.RawMessage(`{"text":"over the wire"}`),
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Type == ws.MessagesSnapshot && strings.Contains(string(frame.Data), "over the wire") {
			break
		}
	}

	// Closing the only connection removes the presence record.
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return len(s.service.Presence(context.Background(), testRoom)) == 0
	}, 3*time.Second, 20*time.Millisecond)
}
