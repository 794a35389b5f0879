package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"djBot/internal/domain"
)

// TitleCommand reads or sets the stream title. Kick gets the same title when
// configured.
type TitleCommand struct {
	twitch domain.TwitchChannelService
	kick   domain.KickStreamService
	logger *zap.Logger
}

func NewTitleCommand(twitch domain.TwitchChannelService, kick domain.KickStreamService, logger *zap.Logger) *TitleCommand {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TitleCommand{twitch: twitch, kick: kick, logger: logger}
}

func (c *TitleCommand) Name() string      { return "title" }
func (c *TitleCommand) Aliases() []string { return nil }

func (c *TitleCommand) SupportsPlatform(p domain.Platform) bool {
	// el mismo comando sirve para varias plataformas
	return p == domain.PlatformTwitch || p == domain.PlatformKick
}

func (c *TitleCommand) Handle(ctx context.Context, cmdCtx *Context) error {
	title := cmdCtx.Query()
	if title == "" {
		info, err := c.twitch.ChannelInfo(ctx)
		if err != nil {
			return cmdCtx.Reply(ctx, fmt.Sprintf("Error: %v", err))
		}
		return cmdCtx.Reply(ctx, "Current Title: "+info.Title)
	}

	if err := c.twitch.SetTitle(ctx, title); err != nil {
		c.logger.Warn("title command: twitch update failed", zap.Error(err))
		return cmdCtx.Reply(ctx, fmt.Sprintf("Failed: %v", err))
	}
	if c.kick != nil {
		if err := c.kick.SetTitle(ctx, title); err != nil {
			c.logger.Warn("title command: kick update failed", zap.Error(err))
		}
	}
	return cmdCtx.Reply(ctx, "Title updated to: "+title)
}
