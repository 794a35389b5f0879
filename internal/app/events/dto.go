package events

import (
	"time"

	"djBot/internal/domain"
)

// ChatMessageDTO describe el payload que se envía al overlay a través del bus.
type ChatMessageDTO struct {
	Platform        string `json:"platform"`
	ChannelID       string `json:"channel_id"`
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	Text            string `json:"text"`
	IsPlatformOwner bool   `json:"is_platform_owner"`
	IsPlatformMod   bool   `json:"is_platform_mod"`
	IsPlatformVip   bool   `json:"is_platform_vip"`
	IsSubscriber    bool   `json:"is_subscriber"`
	Timestamp       string `json:"timestamp"`
}

func NewChatMessageDTO(msg domain.Message) ChatMessageDTO {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return ChatMessageDTO{
		Platform:        string(msg.Platform),
		ChannelID:       msg.ChannelID,
		UserID:          msg.UserID,
		Username:        msg.Username,
		Text:            msg.Text,
		IsPlatformOwner: msg.IsPlatformOwner,
		IsPlatformMod:   msg.IsPlatformMod,
		IsPlatformVip:   msg.IsPlatformVip,
		IsSubscriber:    msg.IsSubscriber,
		Timestamp:       ts.UTC().Format(time.RFC3339Nano),
	}
}

// NotificationDTO carries song requests, redemptions and giveaway winners.
type NotificationDTO struct {
	ID        int64             `json:"id"`
	Type      string            `json:"type"`
	Platform  string            `json:"platform"`
	Username  string            `json:"username"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"created_at"`
}

func NewNotificationDTO(n *domain.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID,
		Type:      string(n.Type),
		Platform:  string(n.Platform),
		Username:  n.Username,
		Message:   n.Message,
		Metadata:  n.Metadata,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type StreamStatusDTO struct {
	Platform    string `json:"platform"`
	IsLive      bool   `json:"is_live"`
	Title       string `json:"title,omitempty"`
	GameTitle   string `json:"game_title,omitempty"`
	ViewerCount int    `json:"viewer_count"`
	StartedAt   string `json:"started_at,omitempty"`
}

func NewStreamStatusDTO(s domain.StreamStatus) StreamStatusDTO {
	dto := StreamStatusDTO{
		Platform:    string(s.Platform),
		IsLive:      s.IsLive,
		Title:       s.Title,
		GameTitle:   s.GameTitle,
		ViewerCount: s.ViewerCount,
	}
	if !s.StartedAt.IsZero() {
		dto.StartedAt = s.StartedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

type AppErrorDTO struct {
	Source    string `json:"source"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func NewAppErrorDTO(source string, err error) AppErrorDTO {
	return AppErrorDTO{
		Source:    source,
		Message:   err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}
