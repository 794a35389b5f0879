package commands

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"djBot/internal/domain"
)

// Processor renders `{name}` variables and then directives.
type Processor interface {
	Process(ctx context.Context, tmpl string, vars map[string]string) string
}

// Responder renders the configurable chat replies (responses.json).
type Responder struct {
	engine Processor
	logger *zap.Logger

	mu        sync.RWMutex
	responses map[string]domain.Response
}

func NewResponder(engine Processor, responses map[string]domain.Response, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Responder{engine: engine, logger: logger}
	r.Replace(responses)
	return r
}

// DefaultResponses are used for keys the operator has not configured.
func DefaultResponses() map[string]domain.Response {
	def := func(tmpl, desc string) domain.Response {
		return domain.Response{Template: tmpl, Description: desc, Enabled: true}
	}
	return map[string]domain.Response{
		"sr_success":            def("@{user} added {track_name} by {artist} to the {position}!", "Song request queued"),
		"sr_error":              def("@{user} could not add that song ({error_code}).", "Generic song request failure"),
		"sr_offline":            def("@{user} Stream is offline, song requests are disabled.", "Request while offline"),
		"sr_disabled":           def("Requests are disabled.", "Requests switched off"),
		"sr_retry":              def("⚠️ Spotify error. Retrying in 5 seconds...", "Interim notice before a retry"),
		"sr_search_failed":      def("@{user} no results found for '{query}'.", "Search returned nothing"),
		"sr_timeout":            def("@{user} the search timed out, try again.", "Search timeout"),
		"sr_search_error":       def("@{user} the search failed, try again.", "Search error"),
		"sr_track_info_failed":  def("@{user} could not read that track.", "Track lookup failed"),
		"sr_queue_timeout":      def("@{user} Spotify took too long to answer.", "Queue timeout"),
		"sr_no_device":          def("⚠️ No active Spotify device found. Please open Spotify.", "No playback device"),
		"sr_premium_required":   def("⚠️ Spotify Premium is required for this feature.", "Premium required"),
		"sr_api_error":          def("@{user} Spotify returned an error.", "Spotify API error"),
		"sr_queue_failed":       def("@{user} could not add the song to the queue.", "Queue add failed"),
		"sr_resolution_failed":  def("@{user} could not resolve that link on the other service.", "Cross-service link lookup failed"),
		"song_success":          def("Now playing: {track_name} by {artist} {url}", "Current track"),
		"song_error":            def("Could not read the current song ({error_code}).", "Current track failure"),
		"song_no_track_playing": def("Nothing is playing right now.", "Nothing playing"),
		"spotify_not_connected": def("Spotify is not connected.", "Spotify credentials missing"),
		"skip_success":          def("⏭️ Skipped!", "Track skipped"),
		"skip_failed":           def("Could not skip the track.", "Skip failed"),
		"skip_error":            def("Skip error ({error_code}).", "Skip error"),
		"cp_offline":            def("@{user} Stream is offline, song requests are disabled.", "Redemption while offline"),
		"cp_success":            def("/me {user} requested {track_name} by {artist} 🎶", "Redemption queued"),
		"cp_error_refunded":     def("🎵 @{user} {error_message} Points have been refunded.", "Redemption failed and refunded"),
		"cp_error_no_refund":    def("🎵 @{user} {error_message}.", "Redemption failed"),
	}
}

func (r *Responder) Replace(responses map[string]domain.Response) {
	next := make(map[string]domain.Response, len(responses))
	for k, v := range responses {
		next[k] = v
	}
	r.mu.Lock()
	r.responses = next
	r.mu.Unlock()
}

// Template returns the configured response for key, falling back to the
// built-in default.
func (r *Responder) Template(key string) (domain.Response, bool) {
	r.mu.RLock()
	resp, ok := r.responses[key]
	r.mu.RUnlock()
	if ok {
		return resp, true
	}
	resp, ok = DefaultResponses()[key]
	return resp, ok
}

// Text renders key with vars. ok is false when the response is disabled or
// has an empty template.
func (r *Responder) Text(ctx context.Context, key string, vars map[string]string) (string, bool) {
	resp, found := r.Template(key)
	if !found {
		r.logger.Error("responder: missing response template", zap.String("key", key))
		return fmt.Sprintf("[Bot Error: Missing response template '%s']", key), true
	}
	if !resp.Enabled {
		return "", false
	}
	if strings.TrimSpace(resp.Template) == "" {
		r.logger.Warn("responder: empty template", zap.String("key", key))
		return "", false
	}
	return r.engine.Process(ctx, resp.Template, vars), true
}

func (r *Responder) Send(ctx context.Context, out domain.OutgoingMessagePort, platform domain.Platform, channelID, key string, vars map[string]string) error {
	text, ok := r.Text(ctx, key, vars)
	if !ok {
		return nil
	}
	return out.SendMessage(ctx, platform, channelID, text)
}

// Reply sends key back to where cmdCtx came from.
func (r *Responder) Reply(ctx context.Context, cmdCtx *Context, key string, vars map[string]string) error {
	return r.Send(ctx, cmdCtx.Out, cmdCtx.Message.Platform, cmdCtx.Message.ChannelID, key, vars)
}

// ChannelAnnouncer sends response templates to one fixed channel, for events
// that do not come from a chat line (redemptions, timers).
type ChannelAnnouncer struct {
	responder *Responder
	out       domain.OutgoingMessagePort
	platform  domain.Platform
	channelID string
}

func NewChannelAnnouncer(responder *Responder, out domain.OutgoingMessagePort, platform domain.Platform, channelID string) *ChannelAnnouncer {
	return &ChannelAnnouncer{responder: responder, out: out, platform: platform, channelID: channelID}
}

func (a *ChannelAnnouncer) Announce(ctx context.Context, key string, vars map[string]string) error {
	return a.responder.Send(ctx, a.out, a.platform, a.channelID, key, vars)
}
