package commands

import "djBot/internal/domain"

// CommandDescriptor describes a native command for the /api/commands listing.
type CommandDescriptor struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Permissions []domain.Role
}

var modRoles = []domain.Role{domain.RoleModerator, domain.RoleBroadcaster}

// BuiltinCommandCatalog lists the native commands with their default roles.
func BuiltinCommandCatalog() []CommandDescriptor {
	return []CommandDescriptor{
		{
			Name:        "sr",
			Aliases:     []string{"request", "songrequest"},
			Description: "Queue a song on the active music service.",
			Usage:       "!sr <song name or link>",
			Permissions: modRoles,
		},
		{
			Name:        "csr",
			Aliases:     []string{"cider"},
			Description: "Queue a song on Cider (Apple Music).",
			Usage:       "!csr <song name or link>",
			Permissions: modRoles,
		},
		{
			Name:        "song",
			Description: "Show the track currently playing.",
			Usage:       "!song",
			Permissions: []domain.Role{domain.RoleEveryone},
		},
		{
			Name:        "skip",
			Description: "Skip the current track.",
			Usage:       "!skip",
			Permissions: modRoles,
		},
		{
			Name:        "commands",
			Aliases:     []string{"command", "addcom", "editcom", "delcom"},
			Description: "List, add, edit or delete custom commands.",
			Usage:       "!addcom !name response | !editcom !name response | !delcom !name",
			Permissions: modRoles,
		},
		{
			Name:        "alias",
			Aliases:     []string{"addalias", "delalias", "editalias"},
			Description: "Manage command aliases.",
			Usage:       "!addalias !main !alias | !delalias !alias | !editalias !main !alias",
			Permissions: modRoles,
		},
		{
			Name:        "winner",
			Description: "Pick a random active chatter.",
			Usage:       "!winner",
			Permissions: modRoles,
		},
		{
			Name:        "title",
			Description: "Show or change the stream title.",
			Usage:       "!title [new title]",
			Permissions: modRoles,
		},
		{
			Name:        "game",
			Aliases:     []string{"category"},
			Description: "Show or change the stream category.",
			Usage:       "!game [name]",
			Permissions: modRoles,
		},
		{
			Name:        "clip",
			Description: "Create a clip of the live stream.",
			Usage:       "!clip",
			Permissions: modRoles,
		},
		{
			Name:        "reload",
			Description: "Reload settings and responses from disk.",
			Usage:       "!reload",
			Permissions: modRoles,
		},
	}
}
