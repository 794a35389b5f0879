package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"djBot/internal/app/events"
	"djBot/internal/domain"
	"djBot/internal/usecase/commands"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticCommands []commands.CommandDTO

func (s staticCommands) List() []commands.CommandDTO { return s }

type staticHealth []domain.Platform

func (s staticHealth) Platforms() []domain.Platform { return s }

func TestEventsFeedRelaysBus(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t))
	defer bus.Close()
	s := NewServer(Config{Feed: bus, Logger: zaptest.NewLogger(t)})

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	pumped := make(chan struct{})
	go func() {
		s.pump(ctx)
		close(pumped)
	}()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	// pump subscribes asynchronously; keep publishing until one arrives.
	got := make(chan envelopeJSON, 1)
	go func() {
		var env envelopeJSON
		if err := conn.ReadJSON(&env); err == nil {
			got <- env
		}
	}()
	var env envelopeJSON
	require.Eventually(t, func() bool {
		bus.PublishChat(domain.Message{Platform: domain.PlatformTwitch, ChannelID: "#chan", Username: "ana", Text: "hola"})
		select {
		case env = <-got:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, "chat", env.Type)
	var dto events.ChatMessageDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Equal(t, "hola", dto.Text)
	assert.Equal(t, "#chan", dto.ChannelID)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return s.ClientCount() == 0 }, time.Second, 10*time.Millisecond)

	cancel()
	<-pumped
}

type envelopeJSON struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func TestCommandsEndpoint(t *testing.T) {
	s := NewServer(Config{Commands: staticCommands{
		{Name: "!hug", Response: "{user} hugs {touser}", Enabled: true, Source: commands.CommandSourceCustom, Permissions: []string{"everyone"}},
	}})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/commands", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var got []commands.CommandDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "!hug", got[0].Name)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/commands", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthz(t *testing.T) {
	cases := []struct {
		name      string
		platforms staticHealth
		status    string
	}{
		{"running", staticHealth{domain.PlatformTwitch}, "ok"},
		{"none", nil, "degraded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewServer(Config{Health: tc.platforms})
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			var got healthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tc.status, got.Status)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer(Config{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
