package domain

import "strings"

type Role string

const (
	RoleEveryone    Role = "everyone"
	RoleSubscriber  Role = "subscriber"
	RoleVIP         Role = "vip"
	RoleModerator   Role = "moderator"
	RoleBroadcaster Role = "broadcaster"
)

// RoleSet are the capabilities an invoker holds in the channel.
type RoleSet struct {
	Broadcaster bool
	Moderator   bool
	Subscriber  bool
	VIP         bool
}

func (r RoleSet) Has(role Role) bool {
	switch role {
	case RoleEveryone:
		return true
	case RoleBroadcaster:
		return r.Broadcaster
	case RoleModerator:
		return r.Moderator
	case RoleSubscriber:
		return r.Subscriber
	case RoleVIP:
		return r.VIP
	default:
		return false
	}
}

func ParseRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}
