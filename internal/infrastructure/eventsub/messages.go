package eventsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"djBot/internal/domain"
)

const (
	msgSessionWelcome   = "session_welcome"
	msgSessionKeepalive = "session_keepalive"
	msgSessionReconnect = "session_reconnect"
	msgNotification     = "notification"
	msgRevocation       = "revocation"
)

type envelope struct {
	Metadata metadata        `json:"metadata"`
	Payload  json.RawMessage `json:"payload"`
}

type metadata struct {
	MessageID           string    `json:"message_id"`
	MessageType         string    `json:"message_type"`
	MessageTimestamp    time.Time `json:"message_timestamp"`
	SubscriptionType    string    `json:"subscription_type,omitempty"`
	SubscriptionVersion string    `json:"subscription_version,omitempty"`
}

type sessionPayload struct {
	Session struct {
		ID                      string `json:"id"`
		Status                  string `json:"status"`
		KeepaliveTimeoutSeconds int    `json:"keepalive_timeout_seconds"`
		ReconnectURL            string `json:"reconnect_url"`
	} `json:"session"`
}

type notificationPayload struct {
	Subscription struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Status string `json:"status"`
	} `json:"subscription"`
	Event json.RawMessage `json:"event"`
}

// RedemptionEvent is the channel.channel_points_custom_reward_redemption.add
// event body.
type RedemptionEvent struct {
	ID                   string `json:"id"`
	BroadcasterUserID    string `json:"broadcaster_user_id"`
	BroadcasterUserLogin string `json:"broadcaster_user_login"`
	UserID               string `json:"user_id"`
	UserLogin            string `json:"user_login"`
	UserName             string `json:"user_name"`
	UserInput            string `json:"user_input"`
	Status               string `json:"status"`
	Reward               struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Cost   int    `json:"cost"`
		Prompt string `json:"prompt"`
	} `json:"reward"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

func (e RedemptionEvent) toDomain() domain.Redemption {
	return domain.Redemption{
		ID:          e.ID,
		RewardID:    e.Reward.ID,
		RewardTitle: e.Reward.Title,
		UserID:      e.UserID,
		UserLogin:   e.UserLogin,
		UserName:    e.UserName,
		UserInput:   e.UserInput,
		RedeemedAt:  e.RedeemedAt,
	}
}

// RedemptionHandler decodes reward redemption events for fn.
func RedemptionHandler(fn func(ctx context.Context, r domain.Redemption)) Handler {
	return func(ctx context.Context, event json.RawMessage) error {
		var ev RedemptionEvent
		if err := json.Unmarshal(event, &ev); err != nil {
			return fmt.Errorf("eventsub: decode redemption: %w", err)
		}
		fn(ctx, ev.toDomain())
		return nil
	}
}
