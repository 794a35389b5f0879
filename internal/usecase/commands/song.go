package commands

import (
	"context"

	"djBot/internal/domain"
	"djBot/internal/usecase/music"
)

// SongCommand reports the track playing on the active service.
type SongCommand struct {
	resolver  *music.Resolver
	settings  SettingsSource
	responder *Responder
}

func NewSongCommand(resolver *music.Resolver, settings SettingsSource, responder *Responder) *SongCommand {
	return &SongCommand{resolver: resolver, settings: settings, responder: responder}
}

func (c *SongCommand) Name() string      { return "song" }
func (c *SongCommand) Aliases() []string { return nil }

func (c *SongCommand) SupportsPlatform(domain.Platform) bool { return true }

func (c *SongCommand) Handle(ctx context.Context, cmdCtx *Context) error {
	user := cmdCtx.Message.Username
	backend, ok := c.resolver.Backend(c.settings.Get().MusicBackend())
	if !ok {
		return c.responder.Reply(ctx, cmdCtx, "spotify_not_connected", map[string]string{
			"error_code": string(domain.CodeSpotifyNotConnected),
			"user":       user,
		})
	}

	track, err := backend.CurrentTrack(ctx)
	if err != nil {
		code := domain.CodeOf(err, domain.CodeTrackInfoError)
		key := "song_error"
		switch code {
		case domain.CodeSpotifyNotConnected:
			key = "spotify_not_connected"
		case domain.CodeNoTrackPlaying:
			key = "song_no_track_playing"
		}
		return c.responder.Reply(ctx, cmdCtx, key, map[string]string{
			"error_code": string(code),
			"user":       user,
		})
	}

	return c.responder.Reply(ctx, cmdCtx, "song_success", map[string]string{
		"track_name": track.Name,
		"artist":     track.Artist,
		"album":      track.Album,
		"url":        track.URL,
		"user":       user,
	})
}

type SkipCommand struct {
	resolver  *music.Resolver
	settings  SettingsSource
	responder *Responder
}

func NewSkipCommand(resolver *music.Resolver, settings SettingsSource, responder *Responder) *SkipCommand {
	return &SkipCommand{resolver: resolver, settings: settings, responder: responder}
}

func (c *SkipCommand) Name() string      { return "skip" }
func (c *SkipCommand) Aliases() []string { return nil }

func (c *SkipCommand) SupportsPlatform(domain.Platform) bool { return true }

func (c *SkipCommand) Handle(ctx context.Context, cmdCtx *Context) error {
	user := cmdCtx.Message.Username
	code := domain.CodeSpotifyNotConnected
	if backend, ok := c.resolver.Backend(c.settings.Get().MusicBackend()); ok {
		err := backend.Skip(ctx)
		if err == nil {
			return c.responder.Reply(ctx, cmdCtx, "skip_success", map[string]string{
				"track_name": "Current Track",
				"user":       user,
			})
		}
		code = domain.CodeOf(err, domain.CodeSkipFailed)
	}

	key := "skip_error"
	switch code {
	case domain.CodeSpotifyNotConnected:
		key = "spotify_not_connected"
	case domain.CodeSkipFailed:
		key = "skip_failed"
	}
	return c.responder.Reply(ctx, cmdCtx, key, map[string]string{
		"error_code": string(code),
		"user":       user,
	})
}
