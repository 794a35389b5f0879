package domain

import "time"

type NotificationType string

const (
	NotificationRedemption  NotificationType = "redemption"
	NotificationSongRequest NotificationType = "song_request"
	NotificationWinner      NotificationType = "giveaway_winner"
)

type Notification struct {
	ID        int64
	Type      NotificationType
	Platform  Platform
	Username  string
	Message   string
	Metadata  map[string]string
	CreatedAt time.Time
}
