package commands

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"go.uber.org/zap"

	"djBot/internal/domain"
)

// GameAliases maps shorthand names ("ow2") to full category names.
type GameAliases struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewGameAliases(initial map[string]string) *GameAliases {
	g := &GameAliases{}
	g.Replace(initial)
	return g
}

func (g *GameAliases) Replace(m map[string]string) {
	next := make(map[string]string, len(m))
	for k, v := range m {
		next[strings.ToLower(strings.TrimSpace(k))] = v
	}
	g.mu.Lock()
	g.m = next
	g.mu.Unlock()
}

func (g *GameAliases) Lookup(name string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.m[strings.ToLower(name)]
	return v, ok
}

// GameCommand reads or sets the stream category.
type GameCommand struct {
	twitch  domain.TwitchChannelService
	kick    domain.KickStreamService
	aliases *GameAliases
	logger  *zap.Logger
}

func NewGameCommand(twitch domain.TwitchChannelService, kick domain.KickStreamService, aliases *GameAliases, logger *zap.Logger) *GameCommand {
	if aliases == nil {
		aliases = NewGameAliases(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameCommand{twitch: twitch, kick: kick, aliases: aliases, logger: logger}
}

func (c *GameCommand) Name() string      { return "game" }
func (c *GameCommand) Aliases() []string { return []string{"category"} }

func (c *GameCommand) SupportsPlatform(p domain.Platform) bool {
	return p == domain.PlatformTwitch || p == domain.PlatformKick
}

func (c *GameCommand) Handle(ctx context.Context, cmdCtx *Context) error {
	name := cmdCtx.Query()
	if name == "" {
		info, err := c.twitch.ChannelInfo(ctx)
		if err != nil {
			return cmdCtx.Reply(ctx, fmt.Sprintf("Error: %v", err))
		}
		return cmdCtx.Reply(ctx, "Current Game: "+info.GameName)
	}

	if full, ok := c.aliases.Lookup(name); ok {
		name = full
	}

	options, err := c.twitch.SearchCategories(ctx, name)
	if err != nil {
		return cmdCtx.Reply(ctx, fmt.Sprintf("Failed: %v", err))
	}
	if len(options) == 0 {
		return cmdCtx.Reply(ctx, fmt.Sprintf("Game '%s' not found.", name))
	}

	best := bestCategory(name, options)
	if err := c.twitch.SetCategory(ctx, best.ID); err != nil {
		c.logger.Warn("game command: twitch update failed", zap.Error(err))
		return cmdCtx.Reply(ctx, fmt.Sprintf("Failed: %v", err))
	}
	if c.kick != nil {
		if err := c.kick.SetCategory(ctx, best.Name); err != nil {
			c.logger.Warn("game command: kick update failed", zap.Error(err))
		}
	}
	return cmdCtx.Reply(ctx, "Game updated to: "+best.Name)
}

// bestCategory prefers a case-insensitive exact match, then the highest
// similarity ratio, then the first result.
func bestCategory(query string, options []domain.CategoryOption) domain.CategoryOption {
	q := strings.ToLower(query)
	best := options[0]
	bestRatio := 0.0
	for _, opt := range options {
		name := strings.ToLower(opt.Name)
		if name == q {
			return opt
		}
		if r := similarity(q, name); r > bestRatio {
			bestRatio = r
			best = opt
		}
	}
	return best
}

func similarity(a, b string) float64 {
	return strutil.Similarity(a, b, metrics.NewLevenshtein())
}
