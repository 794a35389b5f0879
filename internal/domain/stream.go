package domain

import (
	"context"
	"time"
)

type StreamStatus struct {
	Platform    Platform
	IsLive      bool
	Title       string
	GameTitle   string
	ViewerCount int
	StartedAt   time.Time
}

// StreamStatusService resuelve el estado del canal en vivo.
type StreamStatusService interface {
	Status(ctx context.Context) (StreamStatus, error)
}

// KickStreamService mirrors title and category changes onto Kick.
type KickStreamService interface {
	SetTitle(ctx context.Context, title string) error
	SetCategory(ctx context.Context, categoryName string) error
	SearchCategories(ctx context.Context, query string) ([]CategoryOption, error)
}
