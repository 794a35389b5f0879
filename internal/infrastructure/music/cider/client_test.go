package cider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"djBot/internal/domain"
)

func newTestClient(t *testing.T, cider, itunes http.HandlerFunc) *Client {
	t.Helper()
	cfg := Config{Token: "secret", Logger: zaptest.NewLogger(t)}
	if cider != nil {
		srv := httptest.NewServer(cider)
		t.Cleanup(srv.Close)
		cfg.Host = srv.URL
	}
	if itunes != nil {
		srv := httptest.NewServer(itunes)
		t.Cleanup(srv.Close)
		cfg.ITunesBase = srv.URL
	}
	return New(cfg)
}

func TestExtractID(t *testing.T) {
	c := New(Config{})
	cases := map[string]string{
		"https://music.apple.com/us/album/yellow/1122782080?i=1122782283": "1122782283",
		"https://music.apple.com/us/song/yellow/1122782283":               "1122782283",
		"1122782283": "1122782283",
	}
	for in, want := range cases {
		got, ok := c.ExtractID(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := c.ExtractID("coldplay yellow")
	assert.False(t, ok)
}

func TestSearchUsesCatalog(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/amapi/catalog/us/search", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("apptoken"))
		assert.Equal(t, "yellow", r.URL.Query().Get("term"))
		_, _ = io.WriteString(w, `{"results":{"songs":{"data":[{"id":"42","attributes":{"name":"Yellow","artistName":"Coldplay","albumName":"Parachutes","artwork":{"url":"https://img/{w}x{h}.jpg"}}}]}}}`)
	}, nil)

	ref, err := c.Search(context.Background(), "yellow")
	require.NoError(t, err)
	assert.Equal(t, "42", ref.ID)
	assert.Equal(t, "Coldplay", ref.Artist)
	assert.Equal(t, "https://img/300x300.jpg", ref.ImageURL)
}

func TestSearchFallsBackToITunes(t *testing.T) {
	c := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/search", r.URL.Path)
			assert.Empty(t, r.Header.Get("apptoken"))
			_, _ = io.WriteString(w, `{"resultCount":1,"results":[{"trackId":77,"trackName":"Clocks","artistName":"Coldplay"}]}`)
		})

	ref, err := c.Search(context.Background(), "clocks")
	require.NoError(t, err)
	assert.Equal(t, "77", ref.ID)
	assert.Equal(t, "Clocks", ref.Name)
}

func TestSearchNoResults(t *testing.T) {
	c := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, `{"results":{}}`) },
		func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, `{"resultCount":0,"results":[]}`) })

	_, err := c.Search(context.Background(), "nothing")
	assert.Equal(t, domain.CodeSearchNoResults, domain.CodeOf(err, ""))
}

func TestEnqueueTriesPathsUntilAccepted(t *testing.T) {
	var mu sync.Mutex
	var tried []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tried = append(tried, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/api/v1/play-next" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}, nil)

	require.NoError(t, c.Enqueue(context.Background(), "42"))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/api/v1/playback/play-next", "/play-next", "/api/v1/play-next"}, tried)
}

func TestEnqueueAllPathsFail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, nil)
	err := c.Enqueue(context.Background(), "42")
	assert.Equal(t, domain.CodeQueueAddFailed, domain.CodeOf(err, ""))
}

func TestEnqueueCiderNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	host := srv.URL
	srv.Close()

	c := New(Config{Host: host})
	err := c.Enqueue(context.Background(), "42")
	assert.Equal(t, domain.CodeCiderNotRunning, domain.CodeOf(err, ""))
}

func TestCurrentTrack(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/playback/now-playing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"info":{"name":"Fix You","artistName":"Coldplay","albumName":"X&Y"}}`)
	}, nil)

	ref, err := c.CurrentTrack(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Fix You", ref.Name)
	assert.Equal(t, "X&Y", ref.Album)
}

func TestParsePageTitle(t *testing.T) {
	cases := []struct {
		raw, name, artist string
	}{
		{"Yellow - Song by Coldplay - Apple Music", "Yellow", "Coldplay"},
		{"Yellow - Song by Coldplay &#8212; Apple&nbsp;Music", "Yellow", "Coldplay"},
		{"Parachutes - Single - Apple Music", "Parachutes", "Unknown"},
	}
	for _, tc := range cases {
		name, artist := parsePageTitle(tc.raw)
		assert.Equal(t, tc.name, name, tc.raw)
		assert.Equal(t, tc.artist, artist, tc.raw)
	}
}
