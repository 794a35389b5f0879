package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"djBot/internal/domain"
)

const aliasListLimit = 15

// AliasCommand manages command aliases from chat.
type AliasCommand struct {
	aliases *AliasManager
}

func NewAliasCommand(aliases *AliasManager) *AliasCommand {
	return &AliasCommand{aliases: aliases}
}

func (c *AliasCommand) Name() string { return "alias" }

func (c *AliasCommand) Aliases() []string {
	return []string{"addalias", "delalias", "editalias"}
}

func (c *AliasCommand) SupportsPlatform(domain.Platform) bool { return true }

func (c *AliasCommand) Handle(ctx context.Context, cmdCtx *Context) error {
	action, main, alias := parseAliasArgs(cmdCtx.Invoked, cmdCtx.Args)

	switch action {
	case "", "list":
		return cmdCtx.Reply(ctx, c.list())
	case "add":
		if main == "" || alias == "" {
			return cmdCtx.Reply(ctx, "Usage: !addalias !maincommand !alias")
		}
		main, alias = withBang(main), withBang(alias)
		if err := c.aliases.Add(main, alias); err != nil {
			if errors.Is(err, ErrAliasExists) {
				owner, _ := c.aliases.Owner(alias)
				return cmdCtx.Reply(ctx, fmt.Sprintf("Alias %s already exists for %s", alias, owner))
			}
			return cmdCtx.Reply(ctx, "Failed: "+err.Error())
		}
		return cmdCtx.Reply(ctx, fmt.Sprintf("Alias %s added for %s", alias, main))
	case "del", "delete", "remove":
		if alias == "" {
			return cmdCtx.Reply(ctx, "Usage: !delalias !alias")
		}
		alias = withBang(alias)
		ok, err := c.aliases.Delete(alias)
		if err != nil {
			return cmdCtx.Reply(ctx, "Failed: "+err.Error())
		}
		if !ok {
			return cmdCtx.Reply(ctx, fmt.Sprintf("Alias %s not found.", alias))
		}
		return cmdCtx.Reply(ctx, fmt.Sprintf("Alias %s deleted.", alias))
	case "edit":
		if main == "" || alias == "" {
			return cmdCtx.Reply(ctx, "Usage: !editalias !maincommand !alias")
		}
		main, alias = withBang(main), withBang(alias)
		if err := c.aliases.Move(main, alias); err != nil {
			return cmdCtx.Reply(ctx, "Failed: "+err.Error())
		}
		return cmdCtx.Reply(ctx, fmt.Sprintf("Alias %s now points to %s", alias, main))
	}
	return nil
}

// parseAliasArgs handles both "!addalias !main !alias" and
// "!alias add !main !alias". delalias takes only the alias.
func parseAliasArgs(invoked string, args []string) (action, main, alias string) {
	at := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	switch invoked {
	case "addalias":
		return "add", at(0), at(1)
	case "editalias":
		return "edit", at(0), at(1)
	case "delalias":
		return "del", "", at(0)
	}
	if len(args) == 0 {
		return "list", "", ""
	}
	action = strings.ToLower(args[0])
	if action == "del" || action == "delete" || action == "remove" {
		// "!alias del !x" and "!alias del !main !x" both name the alias last.
		if len(args) > 2 {
			return action, at(1), at(2)
		}
		return action, "", at(1)
	}
	return action, at(1), at(2)
}

func (c *AliasCommand) list() string {
	pairs := c.aliases.List()
	if len(pairs) == 0 {
		return "No command aliases."
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.Alias+"→"+p.Main)
	}
	shown := parts
	if len(shown) > aliasListLimit {
		shown = shown[:aliasListLimit]
	}
	text := strings.Join(shown, ", ")
	if len(parts) > aliasListLimit {
		text += fmt.Sprintf("... (%d total)", len(parts))
	}
	return "Command aliases: " + text
}

func withBang(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if strings.HasPrefix(name, "!") {
		return name
	}
	return "!" + name
}
