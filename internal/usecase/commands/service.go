package commands

import (
	"time"

	"djBot/internal/domain"
)

const (
	CommandSourceBuiltin = "builtin"
	CommandSourceCustom  = "custom"
)

type CommandDTO struct {
	Name        string   `json:"name"`
	Response    string   `json:"response,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	Permissions []string `json:"permissions"`
	Cooldown    int      `json:"cooldown,omitempty"`
	Enabled     bool     `json:"enabled"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
	Source      string   `json:"source"`
	Description string   `json:"description,omitempty"`
	Usage       string   `json:"usage,omitempty"`
}

// PermissionSnapshotter exposes the current permission table.
type PermissionSnapshotter interface {
	Snapshot() domain.PermissionTable
}

// Service builds the read-only command listing served over HTTP.
type Service struct {
	manager *CustomCommandManager
	aliases *AliasManager
	perms   PermissionSnapshotter
}

func NewService(manager *CustomCommandManager, aliases *AliasManager, perms PermissionSnapshotter) *Service {
	return &Service{manager: manager, aliases: aliases, perms: perms}
}

func (s *Service) List() []CommandDTO {
	var table domain.PermissionTable
	if s.perms != nil {
		table = s.perms.Snapshot()
	}
	extra := map[string][]string{}
	if s.aliases != nil {
		for _, p := range s.aliases.List() {
			extra[p.Main] = append(extra[p.Main], p.Alias)
		}
	}

	out := builtinCommandDTOs(table, extra)
	if s.manager == nil {
		return out
	}
	for _, cmd := range s.manager.List() {
		dto := CommandDTO{
			Name:        cmd.Trigger,
			Response:    cmd.Response,
			Aliases:     extra[cmd.Trigger],
			Permissions: rolesFor(table, cmd.Trigger, []domain.Role{domain.RoleEveryone}),
			Enabled:     cmd.Enabled,
			Source:      CommandSourceCustom,
		}
		if !cmd.UpdatedAt.IsZero() {
			dto.UpdatedAt = cmd.UpdatedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, dto)
	}
	return out
}

func builtinCommandDTOs(table domain.PermissionTable, extra map[string][]string) []CommandDTO {
	catalog := BuiltinCommandCatalog()
	out := make([]CommandDTO, 0, len(catalog))
	for _, item := range catalog {
		key := "!" + item.Name
		aliases := append([]string(nil), item.Aliases...)
		aliases = append(aliases, extra[key]...)
		out = append(out, CommandDTO{
			Name:        key,
			Aliases:     aliases,
			Permissions: rolesFor(table, key, item.Permissions),
			Enabled:     true,
			Source:      CommandSourceBuiltin,
			Description: item.Description,
			Usage:       item.Usage,
		})
	}
	return out
}

func rolesFor(table domain.PermissionTable, key string, fallback []domain.Role) []string {
	roles, ok := table[key]
	if !ok {
		roles = fallback
	}
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
