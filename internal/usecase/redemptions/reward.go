package redemptions

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"djBot/internal/domain"
)

const rewardPrompt = "Enter song name or Spotify link"

// RewardSync owns the song request reward: it creates it on start and keeps
// its paused flag in line with spotify_requests_enabled.
type RewardSync struct {
	rewards domain.RewardService
	logger  *zap.Logger

	mu       sync.Mutex
	rewardID string
}

func NewRewardSync(rewards domain.RewardService, logger *zap.Logger) *RewardSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RewardSync{rewards: rewards, logger: logger}
}

// Ensure creates the reward when it is enabled in settings, then applies the
// paused flag. A creation failure (usually "already exists") is logged only.
func (s *RewardSync) Ensure(ctx context.Context, settings domain.Settings) error {
	if s.rewards == nil || !settings.SongRequestReward.Enabled {
		return nil
	}
	spec := domain.RewardSpec{
		Title:  settings.SongRequestReward.Title,
		Cost:   settings.SongRequestReward.Cost,
		Prompt: rewardPrompt,
	}
	if spec.Title == "" {
		spec.Title = "Song Request"
	}
	if spec.Cost <= 0 {
		spec.Cost = 300
	}
	id, err := s.rewards.CreateReward(ctx, spec)
	if err != nil {
		s.logger.Warn("redemptions: could not create song request reward", zap.Error(err))
		return nil
	}
	s.mu.Lock()
	s.rewardID = id
	s.mu.Unlock()
	s.logger.Info("redemptions: song request reward created", zap.String("reward_id", id))
	return s.apply(ctx, settings.SpotifyRequestsEnabled)
}

// OnSettingsChange pauses or resumes the reward when requests are toggled.
func (s *RewardSync) OnSettingsChange(ctx context.Context, old, next domain.Settings) error {
	if old.SpotifyRequestsEnabled == next.SpotifyRequestsEnabled {
		return nil
	}
	return s.apply(ctx, next.SpotifyRequestsEnabled)
}

func (s *RewardSync) RewardID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewardID
}

func (s *RewardSync) apply(ctx context.Context, enabled bool) error {
	id := s.RewardID()
	if s.rewards == nil || id == "" {
		return nil
	}
	if err := s.rewards.SetRewardPaused(ctx, id, !enabled); err != nil {
		return fmt.Errorf("redemptions: set reward paused: %w", err)
	}
	state := "ENABLED"
	if !enabled {
		state = "PAUSED"
	}
	s.logger.Info("redemptions: song request reward updated", zap.String("state", state))
	return nil
}
