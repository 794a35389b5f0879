package domain

import "context"

type OutgoingMessagePort interface {
	SendMessage(ctx context.Context, platform Platform, channelID, text string) error
}

type CounterRepository interface {
	IncrementCounter(ctx context.Context, name string) (int64, error)
	GetCounter(ctx context.Context, name string) (value int64, found bool, err error)
	SetCounter(ctx context.Context, name string, value int64) error
	ListCounters(ctx context.Context) (map[string]int64, error)
}

type NotificationRepository interface {
	SaveNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, limit int) ([]*Notification, error)
}

// ConfigKind identifies one of the stored configuration documents.
type ConfigKind string

const (
	ConfigCommands    ConfigKind = "commands"
	ConfigAliases     ConfigKind = "command_aliases"
	ConfigPermissions ConfigKind = "permissions"
	ConfigCooldowns   ConfigKind = "cooldowns"
	ConfigSettings    ConfigKind = "settings"
	ConfigResponses   ConfigKind = "responses"
	ConfigTimers      ConfigKind = "timers"
	ConfigGameAliases ConfigKind = "game_aliases"
)

// ConfigStore is the typed load/save surface over the stored configuration.
type ConfigStore interface {
	LoadCommands() (map[string]*CustomCommand, error)
	SaveCommands(cmds map[string]*CustomCommand) error
	LoadAliases() (AliasTable, error)
	SaveAliases(t AliasTable) error
	LoadPermissions() (PermissionTable, error)
	SavePermissions(t PermissionTable) error
	LoadCooldowns() (CooldownTable, error)
	LoadSettings() (Settings, error)
	SaveSettings(s Settings) error
	LoadResponses() (map[string]Response, error)
	LoadTimers() ([]Timer, error)
	LoadGameAliases() (map[string]string, error)
}
