package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"djBot/internal/domain"
)

type ClipCommand struct {
	twitch domain.TwitchChannelService
	logger *zap.Logger
}

func NewClipCommand(twitch domain.TwitchChannelService, logger *zap.Logger) *ClipCommand {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClipCommand{twitch: twitch, logger: logger}
}

func (c *ClipCommand) Name() string      { return "clip" }
func (c *ClipCommand) Aliases() []string { return nil }

func (c *ClipCommand) SupportsPlatform(p domain.Platform) bool { return twitchOnly(p) }

func (c *ClipCommand) Handle(ctx context.Context, cmdCtx *Context) error {
	id, err := c.twitch.CreateClip(ctx)
	if err != nil {
		c.logger.Warn("clip command: create failed", zap.Error(err))
		return cmdCtx.Reply(ctx, fmt.Sprintf("Error creating clip: %v", err))
	}
	return cmdCtx.Reply(ctx, "🎬 Clip created! https://clips.twitch.tv/"+id)
}
