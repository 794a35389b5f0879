// Package music turns a free-form request into a queue mutation on one of the
// playback backends.
package music

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"djBot/internal/domain"
	"djBot/internal/infrastructure/telemetry"
)

const (
	defaultRetryDelay = 5 * time.Second
	defaultMaxRetries = 1
)

var transientCodes = map[domain.OutcomeCode]bool{
	domain.CodeSpotifyAPIError: true,
	domain.CodeQueueTimeout:    true,
	domain.CodeSearchTimeout:   true,
	domain.CodeSearchError:     true,
}

// IsTransient reports whether code is worth another attempt.
func IsTransient(code domain.OutcomeCode) bool {
	return transientCodes[code]
}

// Outcome is the normalized result of Resolve.
type Outcome struct {
	Success bool
	Code    domain.OutcomeCode
	Track   *domain.TrackRef
}

// Notifier receives the interim notice sent before a retry. A nil Notifier
// means there is no interactive caller.
type Notifier interface {
	NotifyRetry(ctx context.Context, code domain.OutcomeCode)
}

type NotifierFunc func(ctx context.Context, code domain.OutcomeCode)

func (f NotifierFunc) NotifyRetry(ctx context.Context, code domain.OutcomeCode) { f(ctx, code) }

type Resolver struct {
	backends    map[domain.Backend]domain.MusicBackend
	playlistURL func() string
	retryDelay  time.Duration
	maxRetries  int
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *zap.Logger
}

type Option func(*Resolver)

func WithRetryDelay(d time.Duration) Option {
	return func(r *Resolver) { r.retryDelay = d }
}

// WithPlaylistURL makes successful Spotify adds also land in a playlist.
func WithPlaylistURL(fn func() string) Option {
	return func(r *Resolver) { r.playlistURL = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Resolver) { r.sleep = fn }
}

func NewResolver(backends []domain.MusicBackend, opts ...Option) *Resolver {
	r := &Resolver{
		backends:   make(map[domain.Backend]domain.MusicBackend),
		retryDelay: defaultRetryDelay,
		maxRetries: defaultMaxRetries,
		sleep:      sleepCtx,
		logger:     zap.NewNop(),
	}
	for _, b := range backends {
		if b != nil {
			r.backends[b.Name()] = b
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backend returns the registered backend for name.
func (r *Resolver) Backend(name domain.Backend) (domain.MusicBackend, bool) {
	b, ok := r.backends[name]
	return b, ok
}

// Resolve adds rawQuery to target. Links that belong to the other backend are
// first turned into an "<artist> <name>" search on their own backend.
func (r *Resolver) Resolve(ctx context.Context, target domain.Backend, rawQuery string, notifier Notifier) Outcome {
	query := strings.TrimSpace(rawQuery)
	backend, ok := r.backends[target]
	if !ok {
		return r.finish(target, Outcome{Code: domain.CodeUnknownBackend})
	}

	if source, isForeign := foreignSource(target, query); isForeign {
		search, err := r.crossResolve(ctx, source, query)
		if err != nil {
			r.logger.Warn("music: cross resolution failed",
				zap.String("source", string(source)),
				zap.String("target", string(target)),
				zap.Error(err))
			return r.finish(target, Outcome{Code: domain.CodeResolutionFailed})
		}
		r.logger.Info("music: cross resolved", zap.String("query", search))
		query = search
	}

	var out Outcome
	for attempt := 0; ; attempt++ {
		telemetry.ResolverAttempts.WithLabelValues(string(target)).Inc()
		out = r.add(ctx, backend, query)
		if out.Success || !IsTransient(out.Code) || attempt >= r.maxRetries {
			break
		}
		r.logger.Warn("music: transient error, retrying",
			zap.String("backend", string(target)),
			zap.String("code", string(out.Code)),
			zap.Duration("delay", r.retryDelay))
		if notifier != nil {
			notifier.NotifyRetry(ctx, out.Code)
		}
		if err := r.sleep(ctx, r.retryDelay); err != nil {
			break
		}
	}
	return r.finish(target, out)
}

// foreignSource reports the native backend of query when it is a link that
// does not belong to target.
func foreignSource(target domain.Backend, query string) (domain.Backend, bool) {
	switch {
	case target == domain.BackendSpotify && isAppleLink(query):
		return domain.BackendCider, true
	case target == domain.BackendCider && isSpotifyLink(query):
		return domain.BackendSpotify, true
	}
	return "", false
}

func isSpotifyLink(q string) bool {
	return strings.Contains(q, "spotify.com") || strings.Contains(q, "spotify:")
}

func isAppleLink(q string) bool {
	return strings.Contains(q, "music.apple.com")
}

func (r *Resolver) crossResolve(ctx context.Context, source domain.Backend, query string) (string, error) {
	b, ok := r.backends[source]
	if !ok {
		return "", fmt.Errorf("backend %s not configured", source)
	}
	id, ok := b.ExtractID(query)
	if !ok {
		return "", fmt.Errorf("no track id in %q", query)
	}
	info, err := b.TrackInfo(ctx, id)
	if err != nil {
		return "", err
	}
	artist := strings.TrimSpace(strings.ReplaceAll(info.Artist, "Apple Music", ""))
	return strings.TrimSpace(artist + " " + info.Name), nil
}

// add runs one attempt: id extraction or search, track info, enqueue.
func (r *Resolver) add(ctx context.Context, b domain.MusicBackend, query string) Outcome {
	var track domain.TrackRef
	if id, ok := b.ExtractID(query); ok {
		info, err := b.TrackInfo(ctx, id)
		if err != nil {
			return Outcome{Code: domain.CodeOf(err, domain.CodeTrackInfoFailed)}
		}
		if info.ID == "" {
			info.ID = id
		}
		track = info
	} else {
		found, err := b.Search(ctx, query)
		if err != nil {
			return Outcome{Code: domain.CodeOf(err, domain.CodeSearchError)}
		}
		if found.Name == "" {
			info, err := b.TrackInfo(ctx, found.ID)
			if err != nil {
				return Outcome{Code: domain.CodeTrackInfoFailed}
			}
			if info.ID == "" {
				info.ID = found.ID
			}
			found = info
		}
		track = found
	}

	if err := b.Enqueue(ctx, track.ID); err != nil {
		return Outcome{Code: domain.CodeOf(err, domain.CodeQueueAddFailed)}
	}

	if adder, ok := b.(domain.PlaylistAdder); ok && r.playlistURL != nil {
		if url := r.playlistURL(); url != "" {
			if err := adder.AddToPlaylist(ctx, track.ID, url); err != nil {
				r.logger.Warn("music: playlist add failed", zap.Error(err))
			}
		}
	}
	return Outcome{Success: true, Code: domain.CodeQueueSuccess, Track: &track}
}

func (r *Resolver) finish(target domain.Backend, out Outcome) Outcome {
	telemetry.ResolverOutcomes.WithLabelValues(string(target), string(out.Code)).Inc()
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
