package domain

import (
	"context"
	"time"
)

type Redemption struct {
	ID          string
	RewardID    string
	RewardTitle string
	UserID      string
	UserLogin   string
	UserName    string
	UserInput   string
	RedeemedAt  time.Time
}

type RedemptionStatus string

const (
	RedemptionFulfilled RedemptionStatus = "FULFILLED"
	RedemptionCanceled  RedemptionStatus = "CANCELED"
)

type RewardSpec struct {
	Title  string
	Cost   int
	Prompt string
}

// RewardService manages channel-point rewards and their redemptions.
type RewardService interface {
	UpdateRedemptionStatus(ctx context.Context, rewardID, redemptionID string, status RedemptionStatus) error
	CreateReward(ctx context.Context, spec RewardSpec) (string, error)
	SetRewardPaused(ctx context.Context, rewardID string, paused bool) error
}
