package runtime

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"djBot/internal/domain"
	"djBot/internal/usecase/commands"
	"djBot/internal/usecase/gate"
	"djBot/internal/usecase/settings"
)

var allKinds = []domain.ConfigKind{
	domain.ConfigSettings,
	domain.ConfigResponses,
	domain.ConfigCommands,
	domain.ConfigAliases,
	domain.ConfigPermissions,
	domain.ConfigCooldowns,
	domain.ConfigTimers,
	domain.ConfigGameAliases,
}

// loadSnapshots builds the in-memory config holders. A broken file logs and
// leaves the store's defaults in place.
func (r *Runtime) loadSnapshots(engine commands.Processor) {
	warn := func(kind domain.ConfigKind, err error) {
		if err != nil {
			r.logger.Warn("runtime: config load", zap.String("kind", string(kind)), zap.Error(err))
		}
	}

	s, err := r.store.LoadSettings()
	warn(domain.ConfigSettings, err)
	r.settings = settings.NewHolder(s, r.store)

	responses, err := r.store.LoadResponses()
	warn(domain.ConfigResponses, err)
	r.responder = commands.NewResponder(engine, responses, r.logger)

	perms, err := r.store.LoadPermissions()
	warn(domain.ConfigPermissions, err)
	if len(perms) == 0 {
		perms = gate.DefaultPermissions()
	}
	r.perms = gate.NewPermissions(perms, r.store, r.logger)

	cooldowns, err := r.store.LoadCooldowns()
	warn(domain.ConfigCooldowns, err)
	r.cooldowns = gate.NewCooldowns(cooldowns, nil)

	cmds, err := r.store.LoadCommands()
	warn(domain.ConfigCommands, err)
	r.custom = commands.NewCustomCommandManager(r.store, cmds)

	aliases, err := r.store.LoadAliases()
	warn(domain.ConfigAliases, err)
	r.aliases = commands.NewAliasManager(r.store, aliases, r.logger)

	games, err := r.store.LoadGameAliases()
	warn(domain.ConfigGameAliases, err)
	r.games = commands.NewGameAliases(games)
}

// Reload re-reads every config document. It backs the !reload command.
func (r *Runtime) Reload(context.Context) error {
	var errs []error
	for _, kind := range allKinds {
		if err := r.reload(kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// reload swaps one snapshot. On a read error the current snapshot stays.
func (r *Runtime) reload(kind domain.ConfigKind) error {
	var err error
	switch kind {
	case domain.ConfigSettings:
		var s domain.Settings
		if s, err = r.store.LoadSettings(); err == nil {
			r.settings.Replace(s)
		}
	case domain.ConfigResponses:
		var responses map[string]domain.Response
		if responses, err = r.store.LoadResponses(); err == nil {
			r.responder.Replace(responses)
		}
	case domain.ConfigCommands:
		var cmds map[string]*domain.CustomCommand
		if cmds, err = r.store.LoadCommands(); err == nil {
			if dropped := r.custom.Replace(cmds); len(dropped) > 0 {
				r.logger.Warn("runtime: custom commands skipped, names reserved by natives", zap.Strings("triggers", dropped))
			}
			r.syncPermissions()
		}
	case domain.ConfigAliases:
		var table domain.AliasTable
		if table, err = r.store.LoadAliases(); err == nil {
			r.aliases.Replace(table)
		}
	case domain.ConfigPermissions:
		var table domain.PermissionTable
		if table, err = r.store.LoadPermissions(); err == nil {
			r.perms.Replace(table)
			r.syncPermissions()
		}
	case domain.ConfigCooldowns:
		var table domain.CooldownTable
		if table, err = r.store.LoadCooldowns(); err == nil {
			r.cooldowns.Replace(table)
		}
	case domain.ConfigTimers:
		var list []domain.Timer
		if list, err = r.store.LoadTimers(); err == nil {
			r.timers.Replace(list)
		}
	case domain.ConfigGameAliases:
		var games map[string]string
		if games, err = r.store.LoadGameAliases(); err == nil {
			r.games.Replace(games)
		}
	default:
		return fmt.Errorf("runtime: unknown config kind %q", kind)
	}
	if err != nil {
		r.logger.Warn("runtime: reload kept previous snapshot", zap.String("kind", string(kind)), zap.Error(err))
		return fmt.Errorf("%s: %w", kind, err)
	}
	r.logger.Info("runtime: config reloaded", zap.String("kind", string(kind)))
	return nil
}

func (r *Runtime) watchConfig(ctx context.Context) {
	changes, unsubscribe := r.store.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case kind, ok := <-changes:
			if !ok {
				return
			}
			_ = r.reload(kind)
		}
	}
}

// syncPermissions adds missing entries for native and custom commands.
func (r *Runtime) syncPermissions() {
	if r.router == nil {
		return
	}
	changed, err := r.perms.Sync(r.router.NativeNames(), r.custom.Triggers())
	if err != nil {
		r.logger.Warn("runtime: permissions sync", zap.Error(err))
		return
	}
	if changed {
		r.logger.Info("runtime: permissions updated with new commands")
	}
}
