package domain

import "time"

type Platform string

const (
	PlatformTwitch Platform = "twitch"
	PlatformKick   Platform = "kick"
)

type Message struct {
	Platform  Platform
	ChannelID string
	UserID    string
	Username  string
	Text      string
	Timestamp time.Time

	// Flags que vienen de la plataforma (los rellenamos en el adapter)
	IsPlatformOwner bool
	IsPlatformMod   bool
	IsPlatformVip   bool
	IsSubscriber    bool
}

// Roles devuelve los roles que el adapter detectó para el autor.
func (m Message) Roles() RoleSet {
	return RoleSet{
		Broadcaster: m.IsPlatformOwner,
		Moderator:   m.IsPlatformMod,
		Subscriber:  m.IsSubscriber,
		VIP:         m.IsPlatformVip,
	}
}
