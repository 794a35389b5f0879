package commands

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"djBot/internal/domain"
	"djBot/internal/infrastructure/telemetry"
	"djBot/internal/usecase/template"
)

// Spawner runs handed-off work so the intake path never waits on a send.
type Spawner interface {
	Go(ctx context.Context, kind string, fn func(ctx context.Context))
}

type inlineSpawner struct{}

func (inlineSpawner) Go(ctx context.Context, _ string, fn func(ctx context.Context)) { fn(ctx) }

// LineObserver sees every chat line before routing (active chatters, timers).
type LineObserver interface {
	ObserveLine(msg domain.Message)
}

type Incrementer interface {
	Increment(ctx context.Context, name string) (int64, error)
}

type Renderer interface {
	Format(tmpl string, vars map[string]string) string
	Render(ctx context.Context, tmpl string, rc template.RenderContext) string
}

// Authorizer and CooldownChecker are implemented by the gate package.
type Authorizer interface {
	Authorize(roles domain.RoleSet, command string) bool
}

type CooldownChecker interface {
	CheckAndUpdate(command string) bool
}

type RouterDeps struct {
	Custom    *CustomCommandManager
	Aliases   *AliasManager
	Perms     Authorizer
	Cooldowns CooldownChecker
	Counters  Incrementer
	Renderer  Renderer
	Spawner   Spawner
	Observers []LineObserver
	Logger    *zap.Logger
}

type Router struct {
	prefix   string
	cmdIndex map[string]Command
	natives  []Command

	custom    *CustomCommandManager
	aliases   *AliasManager
	perms     Authorizer
	cooldowns CooldownChecker
	counters  Incrementer
	renderer  Renderer
	spawner   Spawner
	observers []LineObserver
	logger    *zap.Logger
}

func NewRouter(prefix string, deps RouterDeps) *Router {
	r := &Router{
		prefix:    prefix,
		cmdIndex:  make(map[string]Command),
		custom:    deps.Custom,
		aliases:   deps.Aliases,
		perms:     deps.Perms,
		cooldowns: deps.Cooldowns,
		counters:  deps.Counters,
		renderer:  deps.Renderer,
		spawner:   deps.Spawner,
		observers: deps.Observers,
		logger:    deps.Logger,
	}
	if r.custom == nil {
		r.custom = NewCustomCommandManager(nil, nil)
	}
	if r.aliases == nil {
		r.aliases = NewAliasManager(nil, nil, nil)
	}
	if r.spawner == nil {
		r.spawner = inlineSpawner{}
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.custom.SetReservedChecker(r.IsReserved)
	return r
}

func (r *Router) Register(cmd Command) {
	r.natives = append(r.natives, cmd)
	r.cmdIndex[strings.ToLower(cmd.Name())] = cmd
	for _, alias := range cmd.Aliases() {
		r.cmdIndex[strings.ToLower(alias)] = cmd
	}
	if dropped := r.custom.Prune(); len(dropped) > 0 {
		r.logger.Warn("router: custom commands shadowed by native",
			zap.String("native", cmd.Name()), zap.Strings("triggers", dropped))
	}
}

// IsReserved reports whether name (with or without prefix) is a native
// command or one of its aliases.
func (r *Router) IsReserved(name string) bool {
	key := strings.TrimPrefix(normalizeCommandName(name), r.prefix)
	_, ok := r.cmdIndex[key]
	return ok
}

// NativeNames returns the prefixed canonical names of every native command.
func (r *Router) NativeNames() []string {
	out := make([]string, 0, len(r.natives))
	for _, cmd := range r.natives {
		out = append(out, r.prefix+strings.ToLower(cmd.Name()))
	}
	slices.Sort(out)
	return out
}

// Handle routes one chat line. Gate decisions run here, in arrival order;
// rendering, sending and native handlers go through the spawner. Errors are
// logged, never returned to the intake loop.
func (r *Router) Handle(ctx context.Context, msg domain.Message, out domain.OutgoingMessagePort) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}

	for _, obs := range r.observers {
		obs.ObserveLine(msg)
	}

	prefixed := strings.HasPrefix(text, r.prefix)
	if prefixed {
		if rewritten, ok := r.aliases.Rewrite(text); ok {
			r.logger.Debug("router: alias rewrite", zap.String("from", text), zap.String("to", rewritten))
			text = rewritten
		}
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil
	}
	trigger := strings.ToLower(parts[0])
	args := parts[1:]

	if cmd := r.custom.Find(trigger); cmd != nil && cmd.Enabled {
		r.dispatchCustom(ctx, msg, out, cmd, args, text)
		return nil
	}

	if !prefixed {
		return nil
	}

	name := strings.TrimPrefix(trigger, r.prefix)
	native, ok := r.cmdIndex[name]
	if !ok || !native.SupportsPlatform(msg.Platform) {
		return nil
	}

	key := permissionKey(native)
	if !r.admit(msg, key) {
		return nil
	}

	telemetry.DispatchesTotal.WithLabelValues("native").Inc()
	cmdCtx := &Context{
		Message: msg,
		Out:     out,
		Invoked: name,
		Raw:     strings.TrimPrefix(text, r.prefix),
		Args:    args,
	}
	r.spawner.Go(ctx, "native", func(ctx context.Context) {
		if err := native.Handle(ctx, cmdCtx); err != nil {
			r.logger.Warn("router: native command failed",
				zap.String("command", native.Name()),
				zap.String("dispatch_id", telemetry.DispatchID(ctx)),
				zap.Error(err))
		}
	})
	return nil
}

// admit runs the permission and cooldown gate. Denials are silent.
func (r *Router) admit(msg domain.Message, key string) bool {
	if r.perms != nil && !r.perms.Authorize(msg.Roles(), key) {
		telemetry.DroppedTotal.WithLabelValues("permission").Inc()
		r.logger.Debug("router: permission denied", zap.String("command", key), zap.String("user", msg.Username))
		return false
	}
	if r.cooldowns != nil && r.cooldowns.CheckAndUpdate(key) {
		telemetry.DroppedTotal.WithLabelValues("cooldown").Inc()
		r.logger.Debug("router: on cooldown", zap.String("command", key))
		return false
	}
	return true
}

func (r *Router) dispatchCustom(ctx context.Context, msg domain.Message, out domain.OutgoingMessagePort, cmd *domain.CustomCommand, args []string, text string) {
	trigger := cmd.Trigger
	if !r.admit(msg, trigger) {
		return
	}

	if r.counters != nil {
		if _, err := r.counters.Increment(ctx, trigger); err != nil {
			r.logger.Warn("router: counter increment failed", zap.String("command", trigger), zap.Error(err))
		}
	}

	telemetry.DispatchesTotal.WithLabelValues("custom").Inc()
	response := cmd.Response
	r.spawner.Go(ctx, "custom", func(ctx context.Context) {
		reply := r.renderCustom(ctx, response, msg, args, text, trigger)
		if strings.TrimSpace(reply) == "" {
			return
		}
		if err := out.SendMessage(ctx, msg.Platform, msg.ChannelID, reply); err != nil {
			r.logger.Warn("router: send failed",
				zap.String("command", trigger),
				zap.String("dispatch_id", telemetry.DispatchID(ctx)),
				zap.Error(err))
		}
	})
}

func (r *Router) renderCustom(ctx context.Context, response string, msg domain.Message, args []string, text, trigger string) string {
	if r.renderer == nil {
		return response
	}
	touser := msg.Username
	if len(args) > 0 {
		touser = args[0]
	}
	vars := map[string]string{
		"user":   msg.Username,
		"touser": touser,
		"query":  strings.Join(args, " "),
	}
	formatted := r.renderer.Format(response, vars)
	return r.renderer.Render(ctx, formatted, template.RenderContext{
		InvokerName: msg.Username,
		Args:        args,
		RawContent:  text,
		CommandName: trigger,
	})
}
