package twitchinfra

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"djBot/internal/domain"
	"djBot/internal/infrastructure/eventsub"
)

func newHelixServer(t *testing.T, routes map[string]http.HandlerFunc) string {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range routes {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestResolvesBroadcasterIDFromLogin(t *testing.T) {
	base := newHelixServer(t, map[string]http.HandlerFunc{
		"/users": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "streamer", r.URL.Query().Get("login"))
			writeJSON(w, http.StatusOK, `{"data":[{"id":"1234","login":"streamer"}]}`)
		},
	})

	svc, err := NewStreamService(Config{ClientID: "cid", AccessToken: "tok", BroadcasterLogin: "#streamer", APIBaseURL: base})
	require.NoError(t, err)
	assert.Equal(t, "1234", svc.BroadcasterID())
}

func TestStatusLiveAndOffline(t *testing.T) {
	var live atomic.Bool
	live.Store(true)
	base := newHelixServer(t, map[string]http.HandlerFunc{
		"/streams": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "99", r.URL.Query().Get("user_id"))
			if !live.Load() {
				writeJSON(w, http.StatusOK, `{"data":[]}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"data":[{"id":"s1","user_id":"99","title":"late night","game_name":"Music","viewer_count":12,"started_at":"2026-01-02T03:04:05Z"}]}`)
		},
	})
	svc, err := NewStreamService(Config{ClientID: "cid", AccessToken: "tok", BroadcasterID: "99", APIBaseURL: base})
	require.NoError(t, err)

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.IsLive)
	assert.Equal(t, "late night", st.Title)
	assert.Equal(t, 12, st.ViewerCount)
	assert.Equal(t, 2026, st.StartedAt.Year())

	live.Store(false)
	st, err = svc.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.IsLive)
	assert.Equal(t, domain.PlatformTwitch, st.Platform)
}

func TestCreateSubscriptionReturnsStatusCode(t *testing.T) {
	var got map[string]any
	var code atomic.Int32
	code.Store(http.StatusAccepted)
	base := newHelixServer(t, map[string]http.HandlerFunc{
		"/eventsub/subscriptions": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			if code.Load() == http.StatusConflict {
				writeJSON(w, http.StatusConflict, `{"error":"Conflict","status":409,"message":"subscription already exists"}`)
				return
			}
			writeJSON(w, http.StatusAccepted, `{"data":[{"id":"sub1","status":"enabled"}]}`)
		},
	})
	svc, err := NewStreamService(Config{ClientID: "cid", AccessToken: "tok", BroadcasterID: "99", APIBaseURL: base})
	require.NoError(t, err)

	sub := eventsub.Subscription{Type: eventsub.TypeRedemptionAdd, Version: "1"}
	status, err := svc.CreateSubscription(context.Background(), "sess-1", sub)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, status)

	transport := got["transport"].(map[string]any)
	assert.Equal(t, "websocket", transport["method"])
	assert.Equal(t, "sess-1", transport["session_id"])
	assert.Equal(t, "99", got["condition"].(map[string]any)["broadcaster_user_id"])

	code.Store(http.StatusConflict)
	status, err = svc.CreateSubscription(context.Background(), "sess-1", sub)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, status)
}

func TestSetTitleReportsHelixError(t *testing.T) {
	base := newHelixServer(t, map[string]http.HandlerFunc{
		"/channels": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, `{"error":"Unauthorized","status":401,"message":"missing scope"}`)
		},
	})
	svc, err := NewStreamService(Config{ClientID: "cid", AccessToken: "tok", BroadcasterID: "99", APIBaseURL: base})
	require.NoError(t, err)

	err = svc.SetTitle(context.Background(), "new title")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
