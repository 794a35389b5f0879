// Package redemptions handles channel-point redemptions delivered by EventSub.
package redemptions

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"djBot/internal/domain"
	"djBot/internal/infrastructure/telemetry"
	"djBot/internal/usecase/music"
)

type SettingsSource interface {
	Get() domain.Settings
}

type LiveChecker interface {
	IsLive(ctx context.Context) bool
}

// Announcer renders a response template and sends it to the broadcast channel.
type Announcer interface {
	Announce(ctx context.Context, key string, vars map[string]string) error
}

type Recorder interface {
	Record(ctx context.Context, n *domain.Notification)
}

type Handler struct {
	resolver  *music.Resolver
	settings  SettingsSource
	live      LiveChecker
	rewards   domain.RewardService
	announcer Announcer
	recorder  Recorder
	logger    *zap.Logger
}

type Deps struct {
	Resolver  *music.Resolver
	Settings  SettingsSource
	Live      LiveChecker
	Rewards   domain.RewardService
	Announcer Announcer
	Recorder  Recorder
	Logger    *zap.Logger
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		resolver:  d.Resolver,
		settings:  d.Settings,
		live:      d.Live,
		rewards:   d.Rewards,
		announcer: d.Announcer,
		recorder:  d.Recorder,
		logger:    logger,
	}
}

// IsSongRequest reports whether a reward title names the song request reward.
func IsSongRequest(title string) bool {
	t := strings.ToLower(title)
	return strings.Contains(t, "song") || strings.Contains(t, "request")
}

// Handle runs one redemption to completion. Failures are reported in chat and
// through the redemption status; nothing is returned to the event loop.
func (h *Handler) Handle(ctx context.Context, r domain.Redemption) {
	telemetry.DispatchesTotal.WithLabelValues("redemption").Inc()
	user := r.UserName
	if user == "" {
		user = "Unknown"
	}
	h.logger.Info("redemptions: received",
		zap.String("reward", r.RewardTitle),
		zap.String("user", user),
		zap.String("input", r.UserInput),
		zap.String("redemption_id", r.ID))

	if !IsSongRequest(r.RewardTitle) {
		h.record(ctx, r, user, nil)
		return
	}

	s := h.settings.Get()
	if s.DisableRequestsOffline && h.live != nil && !h.live.IsLive(ctx) {
		h.logger.Info("redemptions: ignored, stream offline", zap.String("user", user))
		h.announce(ctx, "cp_offline", map[string]string{"user": user})
		h.setStatus(ctx, r, domain.RedemptionCanceled)
		return
	}

	query := strings.TrimSpace(r.UserInput)
	if query == "" {
		return
	}

	if !s.SpotifyRequestsEnabled {
		h.logger.Info("redemptions: ignored, requests disabled", zap.String("user", user))
		h.announce(ctx, "sr_disabled", map[string]string{"user": user})
		h.setStatus(ctx, r, domain.RedemptionCanceled)
		return
	}

	target := s.MusicBackend()
	out := h.resolver.Resolve(ctx, target, query, nil)
	h.record(ctx, r, user, &out)

	if out.Success {
		if s.AutoFulfillOnSuccess {
			h.setStatus(ctx, r, domain.RedemptionFulfilled)
		}
		track := domain.TrackRef{Name: "Unknown", Artist: "Unknown"}
		if out.Track != nil {
			track = *out.Track
		}
		h.announce(ctx, "cp_success", map[string]string{
			"user":       user,
			"track_name": track.Name,
			"artist":     track.Artist,
			"service":    serviceLabel(target),
		})
		return
	}

	vars := map[string]string{
		"user":          user,
		"error_message": music.ErrorMessage(out.Code),
		"error_code":    string(out.Code),
	}
	if s.AutoRefundOnError {
		h.setStatus(ctx, r, domain.RedemptionCanceled)
		h.announce(ctx, "cp_error_refunded", vars)
		return
	}
	h.announce(ctx, "cp_error_no_refund", vars)
}

func (h *Handler) setStatus(ctx context.Context, r domain.Redemption, status domain.RedemptionStatus) {
	if h.rewards == nil || r.ID == "" || r.RewardID == "" {
		return
	}
	if err := h.rewards.UpdateRedemptionStatus(ctx, r.RewardID, r.ID, status); err != nil {
		h.logger.Warn("redemptions: status update failed",
			zap.String("redemption_id", r.ID),
			zap.String("status", string(status)),
			zap.Error(err))
		return
	}
	h.logger.Info("redemptions: status updated", zap.String("redemption_id", r.ID), zap.String("status", string(status)))
}

func (h *Handler) announce(ctx context.Context, key string, vars map[string]string) {
	if h.announcer == nil {
		return
	}
	if err := h.announcer.Announce(ctx, key, vars); err != nil {
		h.logger.Warn("redemptions: announce failed", zap.String("key", key), zap.Error(err))
	}
}

func (h *Handler) record(ctx context.Context, r domain.Redemption, user string, out *music.Outcome) {
	if h.recorder == nil {
		return
	}
	meta := map[string]string{
		"reward_id":     r.RewardID,
		"reward_title":  r.RewardTitle,
		"redemption_id": r.ID,
	}
	if out != nil {
		meta["code"] = string(out.Code)
		if out.Track != nil {
			meta["track"] = out.Track.Name
			meta["artist"] = out.Track.Artist
			meta["image_url"] = out.Track.ImageURL
		}
	}
	h.recorder.Record(ctx, &domain.Notification{
		Type:     domain.NotificationRedemption,
		Platform: domain.PlatformTwitch,
		Username: user,
		Message:  strings.TrimSpace(r.RewardTitle + ": " + r.UserInput),
		Metadata: meta,
	})
}

func serviceLabel(b domain.Backend) string {
	if b == domain.BackendCider {
		return "Cider"
	}
	return "Spotify"
}
