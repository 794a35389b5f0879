package domain

import "time"

type CustomCommand struct {
	Trigger   string
	Response  string
	Enabled   bool
	UpdatedAt time.Time
}

// AliasTable maps a main command to the aliases that rewrite into it.
type AliasTable map[string][]string

// PermissionTable maps a command trigger to the roles allowed to run it.
type PermissionTable map[string][]Role

// CooldownTable maps a command trigger to its cooldown in seconds.
type CooldownTable map[string]int
