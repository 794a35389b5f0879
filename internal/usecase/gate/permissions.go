// Package gate decides whether an invoker may run a command right now.
package gate

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"djBot/internal/domain"
)

// PermissionSaver persists the table after Sync adds entries.
type PermissionSaver interface {
	SavePermissions(t domain.PermissionTable) error
}

// Permissions holds the role table. Commands missing from it are allowed.
type Permissions struct {
	mu     sync.RWMutex
	table  domain.PermissionTable
	saver  PermissionSaver
	logger *zap.Logger
}

// DefaultPermissions is used when no permissions document exists yet.
func DefaultPermissions() domain.PermissionTable {
	modOnly := []domain.Role{domain.RoleModerator, domain.RoleBroadcaster}
	t := domain.PermissionTable{
		"!song": {domain.RoleEveryone},
	}
	for _, name := range []string{"!sr", "!request", "!skip", "!addcom", "!editcom", "!delcom", "!commands", "!title", "!game", "!winner", "!alias"} {
		t[name] = append([]domain.Role(nil), modOnly...)
	}
	return t
}

func NewPermissions(table domain.PermissionTable, saver PermissionSaver, logger *zap.Logger) *Permissions {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Permissions{saver: saver, logger: logger}
	p.Replace(table)
	return p
}

// Replace swaps the snapshot, e.g. after the config file changed on disk.
func (p *Permissions) Replace(table domain.PermissionTable) {
	cp := cloneTable(table)
	p.mu.Lock()
	p.table = cp
	p.mu.Unlock()
}

func (p *Permissions) Snapshot() domain.PermissionTable {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return cloneTable(p.table)
}

// Authorize reports whether roles may run command.
func (p *Permissions) Authorize(roles domain.RoleSet, command string) bool {
	if roles.Broadcaster {
		return true
	}

	key := strings.ToLower(strings.TrimSpace(command))

	p.mu.RLock()
	allowed, ok := p.table[key]
	if !ok && !strings.HasPrefix(key, "!") {
		allowed, ok = p.table["!"+key]
	}
	p.mu.RUnlock()

	if !ok {
		return true
	}
	for _, role := range allowed {
		switch role {
		case domain.RoleEveryone:
			return true
		case domain.RoleModerator, domain.RoleSubscriber, domain.RoleVIP:
			if roles.Has(role) {
				return true
			}
		}
	}
	return false
}

// Sync adds missing entries for native and custom commands and saves when
// something was added. Native names are given with their prefix.
func (p *Permissions) Sync(native, custom []string) (bool, error) {
	p.mu.Lock()
	var added []string
	for _, name := range native {
		key := strings.ToLower(name)
		if _, ok := p.table[key]; ok {
			continue
		}
		if key == "!song" {
			p.table[key] = []domain.Role{domain.RoleEveryone}
		} else {
			p.table[key] = []domain.Role{domain.RoleModerator, domain.RoleBroadcaster}
		}
		added = append(added, key)
	}
	for _, name := range custom {
		key := strings.ToLower(name)
		if _, ok := p.table[key]; ok {
			continue
		}
		p.table[key] = []domain.Role{domain.RoleEveryone}
		added = append(added, key)
	}
	snapshot := cloneTable(p.table)
	p.mu.Unlock()

	if len(added) == 0 {
		return false, nil
	}
	p.logger.Info("gate: synced permissions", zap.Strings("added", added))
	if p.saver == nil {
		return true, nil
	}
	if err := p.saver.SavePermissions(snapshot); err != nil {
		return true, fmt.Errorf("gate: save permissions: %w", err)
	}
	return true, nil
}

func cloneTable(t domain.PermissionTable) domain.PermissionTable {
	out := make(domain.PermissionTable, len(t))
	for k, roles := range t {
		out[strings.ToLower(k)] = append([]domain.Role(nil), roles...)
	}
	return out
}
