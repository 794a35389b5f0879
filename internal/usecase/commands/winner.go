package commands

import (
	"context"
	"math/rand/v2"

	"djBot/internal/domain"
)

type WinnerCommand struct {
	chatters *ActiveChatters
	recorder Recorder
	rnd      *rand.Rand
}

func NewWinnerCommand(chatters *ActiveChatters, recorder Recorder, rnd *rand.Rand) *WinnerCommand {
	return &WinnerCommand{chatters: chatters, recorder: recorder, rnd: rnd}
}

func (c *WinnerCommand) Name() string      { return "winner" }
func (c *WinnerCommand) Aliases() []string { return nil }

func (c *WinnerCommand) SupportsPlatform(domain.Platform) bool { return true }

func (c *WinnerCommand) Handle(ctx context.Context, cmdCtx *Context) error {
	winner, ok := c.chatters.Pick(c.rnd)
	if !ok {
		return cmdCtx.Reply(ctx, "No active chatters to pick from!")
	}
	if c.recorder != nil {
		c.recorder.Record(ctx, &domain.Notification{
			Type:     domain.NotificationWinner,
			Platform: cmdCtx.Message.Platform,
			Username: winner,
			Message:  "picked by " + cmdCtx.Message.Username,
		})
	}
	return cmdCtx.Reply(ctx, "The winner is @"+winner+"!")
}
