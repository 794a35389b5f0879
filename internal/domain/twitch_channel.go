package domain

import "context"

// Puerto para hacer acciones sobre el canal de Twitch vía Helix.
type TwitchChannelService interface {
	ChannelInfo(ctx context.Context) (ChannelInfo, error)
	SetTitle(ctx context.Context, title string) error
	SetCategory(ctx context.Context, categoryID string) error
	SearchCategories(ctx context.Context, query string) ([]CategoryOption, error)
	CreateClip(ctx context.Context) (string, error)
}

type ChannelInfo struct {
	BroadcasterID string
	Title         string
	GameName      string
}

type CategoryOption struct {
	ID   string
	Name string
}
