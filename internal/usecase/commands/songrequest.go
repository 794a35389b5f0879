package commands

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"djBot/internal/domain"
	"djBot/internal/usecase/music"
)

type SettingsSource interface {
	Get() domain.Settings
}

type LiveChecker interface {
	IsLive(ctx context.Context) bool
}

// Recorder keeps chat-visible events for the overlay feed and the log.
type Recorder interface {
	Record(ctx context.Context, n *domain.Notification)
}

// SongRequestCommand queues a song on the active music service.
type SongRequestCommand struct {
	resolver  *music.Resolver
	settings  SettingsSource
	live      LiveChecker
	responder *Responder
	recorder  Recorder
	logger    *zap.Logger
}

func NewSongRequestCommand(resolver *music.Resolver, settings SettingsSource, live LiveChecker, responder *Responder, recorder Recorder, logger *zap.Logger) *SongRequestCommand {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SongRequestCommand{
		resolver:  resolver,
		settings:  settings,
		live:      live,
		responder: responder,
		recorder:  recorder,
		logger:    logger,
	}
}

func (c *SongRequestCommand) Name() string      { return "sr" }
func (c *SongRequestCommand) Aliases() []string { return []string{"request", "songrequest"} }

func (c *SongRequestCommand) SupportsPlatform(domain.Platform) bool { return true }

func (c *SongRequestCommand) Handle(ctx context.Context, cmdCtx *Context) error {
	user := cmdCtx.Message.Username
	s := c.settings.Get()

	if s.DisableRequestsOffline && c.live != nil && !c.live.IsLive(ctx) {
		return c.responder.Reply(ctx, cmdCtx, "sr_offline", map[string]string{"user": user})
	}
	if !s.SpotifyRequestsEnabled {
		return c.responder.Reply(ctx, cmdCtx, "sr_disabled", map[string]string{"user": user})
	}

	query := cmdCtx.Query()
	if query == "" {
		return cmdCtx.Reply(ctx, "Usage: !sr <song name or link>")
	}

	return requestSong(ctx, cmdCtx, c.resolver, s.MusicBackend(), query, c.responder, c.recorder, music.ResponseKey)
}

// CiderRequestCommand always targets Cider, whatever the active service.
type CiderRequestCommand struct {
	resolver  *music.Resolver
	responder *Responder
	recorder  Recorder
}

func NewCiderRequestCommand(resolver *music.Resolver, responder *Responder, recorder Recorder) *CiderRequestCommand {
	return &CiderRequestCommand{resolver: resolver, responder: responder, recorder: recorder}
}

func (c *CiderRequestCommand) Name() string      { return "csr" }
func (c *CiderRequestCommand) Aliases() []string { return []string{"cider"} }

func (c *CiderRequestCommand) SupportsPlatform(domain.Platform) bool { return true }

func (c *CiderRequestCommand) Handle(ctx context.Context, cmdCtx *Context) error {
	query := cmdCtx.Query()
	if query == "" {
		return nil
	}
	return requestSong(ctx, cmdCtx, c.resolver, domain.BackendCider, query, c.responder, c.recorder,
		func(domain.OutcomeCode) string { return "sr_error" })
}

func requestSong(
	ctx context.Context,
	cmdCtx *Context,
	resolver *music.Resolver,
	target domain.Backend,
	query string,
	responder *Responder,
	recorder Recorder,
	errorKey func(domain.OutcomeCode) string,
) error {
	user := cmdCtx.Message.Username
	notifier := music.NotifierFunc(func(ctx context.Context, _ domain.OutcomeCode) {
		_ = responder.Reply(ctx, cmdCtx, "sr_retry", map[string]string{"user": user})
	})

	out := resolver.Resolve(ctx, target, query, notifier)
	if recorder != nil {
		recorder.Record(ctx, songRequestNotification(cmdCtx.Message, target, query, out))
	}

	if out.Success {
		track := domain.TrackRef{Name: "Unknown", Artist: "Unknown"}
		if out.Track != nil {
			track = *out.Track
		}
		return responder.Reply(ctx, cmdCtx, "sr_success", map[string]string{
			"track_name": track.Name,
			"artist":     track.Artist,
			"position":   "Queue",
			"query":      query,
			"url":        track.URL,
			"user":       user,
		})
	}
	return responder.Reply(ctx, cmdCtx, errorKey(out.Code), map[string]string{
		"error_code": string(out.Code),
		"query":      query,
		"user":       user,
	})
}

func songRequestNotification(msg domain.Message, target domain.Backend, query string, out music.Outcome) *domain.Notification {
	meta := map[string]string{
		"service": string(target),
		"query":   query,
		"code":    string(out.Code),
	}
	text := query
	if out.Track != nil {
		meta["track"] = out.Track.Name
		meta["artist"] = out.Track.Artist
		meta["url"] = out.Track.URL
		meta["image_url"] = out.Track.ImageURL
		text = strings.TrimSpace(out.Track.Name + " - " + out.Track.Artist)
	}
	return &domain.Notification{
		Type:     domain.NotificationSongRequest,
		Platform: msg.Platform,
		Username: msg.Username,
		Message:  text,
		Metadata: meta,
	}
}
