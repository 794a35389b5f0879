package music

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"djBot/internal/domain"
)

type fakeBackend struct {
	name    domain.Backend
	idRe    *regexp.Regexp
	info    map[string]domain.TrackRef
	infoErr error
	search  func(q string) (domain.TrackRef, error)
	enqueue func(id string) error

	mu        sync.Mutex
	searches  []string
	enqueued  []string
	infoCalls int
	playlist  []string
}

func (f *fakeBackend) Name() domain.Backend { return f.name }

func (f *fakeBackend) ExtractID(input string) (string, bool) {
	if f.idRe == nil {
		return "", false
	}
	m := f.idRe.FindStringSubmatch(input)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (f *fakeBackend) Search(_ context.Context, q string) (domain.TrackRef, error) {
	f.mu.Lock()
	f.searches = append(f.searches, q)
	f.mu.Unlock()
	if f.search == nil {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeSearchNoResults, nil)
	}
	return f.search(q)
}

func (f *fakeBackend) TrackInfo(_ context.Context, id string) (domain.TrackRef, error) {
	f.mu.Lock()
	f.infoCalls++
	f.mu.Unlock()
	if f.infoErr != nil {
		return domain.TrackRef{}, f.infoErr
	}
	t, ok := f.info[id]
	if !ok {
		return domain.TrackRef{}, errors.New("not found")
	}
	return t, nil
}

func (f *fakeBackend) Enqueue(_ context.Context, id string) error {
	f.mu.Lock()
	f.enqueued = append(f.enqueued, id)
	f.mu.Unlock()
	if f.enqueue == nil {
		return nil
	}
	return f.enqueue(id)
}

func (f *fakeBackend) CurrentTrack(context.Context) (domain.TrackRef, error) {
	return domain.TrackRef{}, domain.NewMusicError(domain.CodeNoTrackPlaying, nil)
}

func (f *fakeBackend) Skip(context.Context) error { return nil }

func (f *fakeBackend) AddToPlaylist(_ context.Context, trackID, url string) error {
	f.playlist = append(f.playlist, trackID+"@"+url)
	return nil
}

func newSpotify() *fakeBackend {
	return &fakeBackend{
		name: domain.BackendSpotify,
		idRe: regexp.MustCompile(`open\.spotify\.com/track/([a-zA-Z0-9]+)`),
		info: map[string]domain.TrackRef{
			"4uLU6hMCjMI75M1A2tKUQC": {ID: "4uLU6hMCjMI75M1A2tKUQC", Name: "Never Gonna Give You Up", Artist: "Rick Astley"},
		},
		search: func(q string) (domain.TrackRef, error) {
			return domain.TrackRef{ID: "s1", Name: "Found " + q, Artist: "Someone"}, nil
		},
	}
}

func newCider() *fakeBackend {
	return &fakeBackend{
		name: domain.BackendCider,
		idRe: regexp.MustCompile(`[?&]i=(\d+)`),
		info: map[string]domain.TrackRef{
			"1440": {ID: "1440", Name: "Take On Me", Artist: "a-ha Apple Music"},
		},
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestAppleLinkResolutionFailureLeavesSpotifyUntouched(t *testing.T) {
	spotify := newSpotify()
	cider := newCider()
	cider.infoErr = domain.NewMusicError(domain.CodeCiderNotRunning, nil)

	r := NewResolver([]domain.MusicBackend{spotify, cider}, WithLogger(zaptest.NewLogger(t)), withSleep(noSleep))
	out := r.Resolve(context.Background(), domain.BackendSpotify,
		"https://music.apple.com/us/album/hunting-high-and-low/1440?i=1440", nil)

	assert.False(t, out.Success)
	assert.Equal(t, domain.CodeResolutionFailed, out.Code)
	assert.Nil(t, out.Track)
	assert.Empty(t, spotify.searches)
	assert.Empty(t, spotify.enqueued)
	assert.Zero(t, spotify.infoCalls)
}

func TestAppleLinkCrossResolvesToSpotifySearch(t *testing.T) {
	spotify := newSpotify()
	cider := newCider()

	r := NewResolver([]domain.MusicBackend{spotify, cider}, withSleep(noSleep))
	out := r.Resolve(context.Background(), domain.BackendSpotify,
		"https://music.apple.com/us/album/x/1?i=1440", nil)

	require.True(t, out.Success)
	assert.Equal(t, []string{"a-ha Take On Me"}, spotify.searches)
	assert.Equal(t, []string{"s1"}, spotify.enqueued)
	assert.Empty(t, cider.enqueued)
}

func TestSpotifyLinkCrossResolvesToCider(t *testing.T) {
	spotify := newSpotify()
	cider := newCider()
	cider.search = func(q string) (domain.TrackRef, error) {
		return domain.TrackRef{ID: "99", Name: q}, nil
	}

	r := NewResolver([]domain.MusicBackend{spotify, cider}, withSleep(noSleep))
	out := r.Resolve(context.Background(), domain.BackendCider,
		"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc", nil)

	require.True(t, out.Success)
	assert.Equal(t, []string{"Rick Astley Never Gonna Give You Up"}, cider.searches)
	assert.Equal(t, []string{"99"}, cider.enqueued)
}

func TestDirectLinkUsesTrackInfo(t *testing.T) {
	spotify := newSpotify()
	r := NewResolver([]domain.MusicBackend{spotify}, WithPlaylistURL(func() string { return "https://open.spotify.com/playlist/p1" }))

	out := r.Resolve(context.Background(), domain.BackendSpotify, "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", nil)
	require.True(t, out.Success)
	assert.Equal(t, domain.CodeQueueSuccess, out.Code)
	assert.Equal(t, "Never Gonna Give You Up", out.Track.Name)
	assert.Empty(t, spotify.searches)
	assert.Equal(t, []string{"4uLU6hMCjMI75M1A2tKUQC@https://open.spotify.com/playlist/p1"}, spotify.playlist)
}

func TestTransientErrorIsRetriedOnce(t *testing.T) {
	spotify := newSpotify()
	spotify.enqueue = func(string) error {
		return domain.NewMusicError(domain.CodeSpotifyAPIError, errors.New("502"))
	}

	var notices []domain.OutcomeCode
	var slept []time.Duration
	r := NewResolver([]domain.MusicBackend{spotify},
		WithRetryDelay(5*time.Second),
		withSleep(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}))

	out := r.Resolve(context.Background(), domain.BackendSpotify, "some song", NotifierFunc(func(_ context.Context, code domain.OutcomeCode) {
		notices = append(notices, code)
	}))

	assert.False(t, out.Success)
	assert.Equal(t, domain.CodeSpotifyAPIError, out.Code)
	assert.Len(t, spotify.enqueued, 2)
	assert.Equal(t, []time.Duration{5 * time.Second}, slept)
	assert.Equal(t, []domain.OutcomeCode{domain.CodeSpotifyAPIError}, notices)
}

func TestRetrySucceedsOnSecondAttempt(t *testing.T) {
	spotify := newSpotify()
	calls := 0
	spotify.enqueue = func(string) error {
		calls++
		if calls == 1 {
			return domain.NewMusicError(domain.CodeQueueTimeout, nil)
		}
		return nil
	}
	r := NewResolver([]domain.MusicBackend{spotify}, withSleep(noSleep))
	out := r.Resolve(context.Background(), domain.BackendSpotify, "song", nil)
	assert.True(t, out.Success)
	assert.Equal(t, 2, calls)
}

func TestTerminalErrorsAreNotRetried(t *testing.T) {
	for _, code := range []domain.OutcomeCode{domain.CodeNoDevice, domain.CodePremiumRequired} {
		t.Run(string(code), func(t *testing.T) {
			spotify := newSpotify()
			spotify.enqueue = func(string) error { return domain.NewMusicError(code, nil) }
			r := NewResolver([]domain.MusicBackend{spotify}, withSleep(func(context.Context, time.Duration) error {
				t.Fatal("must not sleep")
				return nil
			}))
			out := r.Resolve(context.Background(), domain.BackendSpotify, "song", nil)
			assert.Equal(t, code, out.Code)
			assert.Len(t, spotify.enqueued, 1)
		})
	}

	spotify := newSpotify()
	spotify.search = nil
	r := NewResolver([]domain.MusicBackend{spotify}, withSleep(noSleep))
	out := r.Resolve(context.Background(), domain.BackendSpotify, "nothing", nil)
	assert.Equal(t, domain.CodeSearchNoResults, out.Code)
	assert.Len(t, spotify.searches, 1)
}

func TestUnknownBackend(t *testing.T) {
	r := NewResolver(nil)
	out := r.Resolve(context.Background(), domain.BackendCider, "x", nil)
	assert.Equal(t, domain.CodeUnknownBackend, out.Code)
}

func TestCancelledContextStopsRetry(t *testing.T) {
	spotify := newSpotify()
	spotify.enqueue = func(string) error { return domain.NewMusicError(domain.CodeSearchTimeout, nil) }
	r := NewResolver([]domain.MusicBackend{spotify}, WithRetryDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := r.Resolve(ctx, domain.BackendSpotify, "song", nil)
	assert.Equal(t, domain.CodeSearchTimeout, out.Code)
	assert.Len(t, spotify.enqueued, 1)
}

func TestResponseKey(t *testing.T) {
	assert.Equal(t, "sr_no_device", ResponseKey(domain.CodeNoDevice))
	assert.Equal(t, "sr_resolution_failed", ResponseKey(domain.CodeResolutionFailed))
	assert.Equal(t, "sr_error", ResponseKey(domain.CodeCiderNotRunning))
}
