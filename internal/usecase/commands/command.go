package commands

import (
	"context"
	"strings"

	"djBot/internal/domain"
)

type Command interface {
	Name() string
	Aliases() []string
	SupportsPlatform(p domain.Platform) bool
	Handle(ctx context.Context, c *Context) error
}

// PermissionKeyer lets a native command share the permission and cooldown
// entry of another command. By default the key is "!" + Name().
type PermissionKeyer interface {
	PermissionKey() string
}

type Context struct {
	Message domain.Message
	Out     domain.OutgoingMessagePort

	// Invoked is the lowercased trigger the user typed, without prefix.
	Invoked string
	Raw     string
	Args    []string
}

// Query is everything after the trigger, as typed.
func (c *Context) Query() string {
	_, rest, _ := strings.Cut(strings.TrimSpace(c.Raw), " ")
	return strings.TrimSpace(rest)
}

func (c *Context) Reply(ctx context.Context, text string) error {
	return c.Out.SendMessage(ctx, c.Message.Platform, c.Message.ChannelID, text)
}

func permissionKey(cmd Command) string {
	if k, ok := cmd.(PermissionKeyer); ok {
		return k.PermissionKey()
	}
	return "!" + strings.ToLower(cmd.Name())
}

func twitchOnly(p domain.Platform) bool { return p == domain.PlatformTwitch }
