package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"djBot/internal/domain"
)

const commandListLimit = 20

// PermissionSyncer adds default permission entries for new commands.
type PermissionSyncer interface {
	Sync(native, custom []string) (bool, error)
}

// ManageCustomCommand lists, adds, edits and deletes custom commands from chat.
type ManageCustomCommand struct {
	manager *CustomCommandManager
	perms   PermissionSyncer
	natives func() []string
	logger  *zap.Logger
}

func NewManageCustomCommand(manager *CustomCommandManager, perms PermissionSyncer, natives func() []string, logger *zap.Logger) *ManageCustomCommand {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManageCustomCommand{manager: manager, perms: perms, natives: natives, logger: logger}
}

func (c *ManageCustomCommand) Name() string { return "commands" }

func (c *ManageCustomCommand) Aliases() []string {
	return []string{"command", "addcom", "editcom", "delcom"}
}

func (c *ManageCustomCommand) SupportsPlatform(domain.Platform) bool { return true }

func (c *ManageCustomCommand) Handle(ctx context.Context, cmdCtx *Context) error {
	action, trigger, response := parseManageArgs(cmdCtx.Invoked, cmdCtx.Args)

	switch action {
	case "", "list":
		return cmdCtx.Reply(ctx, c.list())
	case "add":
		return c.add(ctx, cmdCtx, trigger, response)
	case "del", "delete", "remove":
		return c.delete(ctx, cmdCtx, trigger)
	case "edit":
		return c.edit(ctx, cmdCtx, trigger, response)
	}
	return nil
}

// parseManageArgs maps !addcom/!editcom/!delcom and "!commands <action> ..."
// onto one shape.
func parseManageArgs(invoked string, args []string) (action, trigger, response string) {
	at := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	from := func(i int) string {
		if i < len(args) {
			return strings.Join(args[i:], " ")
		}
		return ""
	}

	switch invoked {
	case "addcom":
		return "add", at(0), from(1)
	case "editcom":
		return "edit", at(0), from(1)
	case "delcom":
		return "del", at(0), ""
	}
	if len(args) == 0 {
		return "list", "", ""
	}
	return strings.ToLower(args[0]), at(1), from(2)
}

func (c *ManageCustomCommand) list() string {
	triggers := c.manager.Triggers()
	if len(triggers) == 0 {
		return "No custom commands."
	}
	shown := triggers
	if len(shown) > commandListLimit {
		shown = shown[:commandListLimit]
	}
	text := strings.Join(shown, ", ")
	if len(triggers) > commandListLimit {
		text += fmt.Sprintf("... (%d total)", len(triggers))
	}
	return "Custom commands: " + text
}

func (c *ManageCustomCommand) add(ctx context.Context, cmdCtx *Context, trigger, response string) error {
	if trigger == "" || response == "" {
		return cmdCtx.Reply(ctx, "Usage: !addcom !name response")
	}
	if _, err := c.manager.Add(trigger, response); err != nil {
		if errors.Is(err, ErrReservedName) {
			return cmdCtx.Reply(ctx, "Cannot overwrite native command "+trigger)
		}
		c.logger.Error("commands: add failed", zap.String("trigger", trigger), zap.Error(err))
		return cmdCtx.Reply(ctx, "Failed: "+err.Error())
	}
	if c.perms != nil {
		var natives []string
		if c.natives != nil {
			natives = c.natives()
		}
		if _, err := c.perms.Sync(natives, c.manager.Triggers()); err != nil {
			c.logger.Warn("commands: permission sync failed", zap.Error(err))
		}
	}
	return cmdCtx.Reply(ctx, fmt.Sprintf("Command %s added.", trigger))
}

func (c *ManageCustomCommand) edit(ctx context.Context, cmdCtx *Context, trigger, response string) error {
	if trigger == "" || response == "" {
		return cmdCtx.Reply(ctx, "Usage: !editcom !name response")
	}
	ok, err := c.manager.Edit(trigger, response)
	if err != nil {
		return cmdCtx.Reply(ctx, "Failed: "+err.Error())
	}
	if !ok {
		return cmdCtx.Reply(ctx, fmt.Sprintf("Command %s not found.", trigger))
	}
	return cmdCtx.Reply(ctx, fmt.Sprintf("Command %s updated.", trigger))
}

func (c *ManageCustomCommand) delete(ctx context.Context, cmdCtx *Context, trigger string) error {
	if trigger == "" {
		return cmdCtx.Reply(ctx, "Usage: !delcom !name")
	}
	ok, err := c.manager.Delete(trigger)
	if err != nil {
		return cmdCtx.Reply(ctx, "Failed: "+err.Error())
	}
	if !ok {
		return cmdCtx.Reply(ctx, fmt.Sprintf("Command %s not found.", trigger))
	}
	return cmdCtx.Reply(ctx, fmt.Sprintf("Command %s deleted.", trigger))
}
