package commands

import (
	"context"
	"fmt"
	"strings"

	"djBot/internal/domain"
)

// Reloader re-reads every config document from disk.
type Reloader interface {
	Reload(ctx context.Context) error
}

type ReloadCommand struct {
	reloader Reloader
	settings SettingsSource
}

func NewReloadCommand(reloader Reloader, settings SettingsSource) *ReloadCommand {
	return &ReloadCommand{reloader: reloader, settings: settings}
}

func (c *ReloadCommand) Name() string      { return "reload" }
func (c *ReloadCommand) Aliases() []string { return nil }

// PermissionKey shares the admin entry of the command manager.
func (c *ReloadCommand) PermissionKey() string { return "!commands" }

func (c *ReloadCommand) SupportsPlatform(domain.Platform) bool { return true }

func (c *ReloadCommand) Handle(ctx context.Context, cmdCtx *Context) error {
	if err := c.reloader.Reload(ctx); err != nil {
		return cmdCtx.Reply(ctx, fmt.Sprintf("Failed: %v", err))
	}
	service := string(c.settings.Get().MusicBackend())
	if service != "" {
		service = strings.ToUpper(service[:1]) + service[1:]
	}
	return cmdCtx.Reply(ctx, "♻️ Settings and responses reloaded. Active Service: "+service)
}
