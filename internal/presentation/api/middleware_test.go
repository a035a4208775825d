package api

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/hilthontt/parley/internal/infrastructure/configs"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/presentation/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedEvents struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (c *capturedEvents) all() []*sentry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*sentry.Event(nil), c.events...)
}

// captureSentry points the global hub at a client that records events
// instead of sending them.
func captureSentry(t *testing.T) *capturedEvents {
	t.Helper()

	captured := &capturedEvents{}
	err := sentry.Init(sentry.ClientOptions{
		Dsn: "https://public@sentry.example.com/1",
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			captured.mu.Lock()
			captured.events = append(captured.events, event)
			captured.mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { sentry.CurrentHub().BindClient(nil) })
	return captured
}

func panicking() http.Handler {
	return http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("store exploded")
	})
}

func TestRecovererReportsPanicsToSentry(t *testing.T) {
	captured := captureSentry(t)

	cfg := configs.Config{Sentry: configs.SentryConfig{DSN: "https://public@sentry.example.com/1"}}
	app := NewApplication(cfg, Handlers{}, logging.NewNop(), nil, nil)
	require.NotNil(t, app.sentry)

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/lobby/messages", nil)
	req.Header.Set(utils.HeaderClientID, "a")
	rec := httptest.NewRecorder()
	app.recoverer(panicking()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	events := captured.all()
	require.Len(t, events, 1)
	assert.Equal(t, "store exploded", events[0].Message)
	assert.Equal(t, "a", events[0].User.ID)
	assert.Equal(t, "client", events[0].Tags["user_type"])
}

func TestRecovererWithoutSentryStillRecovers(t *testing.T) {
	captured := captureSentry(t)

	app := NewApplication(configs.Config{}, Handlers{}, logging.NewNop(), nil, nil)
	assert.Nil(t, app.sentry)

	rec := httptest.NewRecorder()
	app.recoverer(panicking()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, captured.all())
}
