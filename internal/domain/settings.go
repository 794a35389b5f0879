package domain

type SongRequestReward struct {
	Enabled bool   `json:"enabled"`
	Title   string `json:"title"`
	Cost    int    `json:"cost"`
}

type Settings struct {
	DisableRequestsOffline bool              `json:"disable_requests_offline"`
	SpotifyRequestsEnabled bool              `json:"spotify_requests_enabled"`
	ActiveMusicService     Backend           `json:"active_music_service"`
	SpotifyPlaylistURL     string            `json:"spotify_playlist_url"`
	AutoFulfillOnSuccess   bool              `json:"auto_fulfill_on_success"`
	AutoRefundOnError      bool              `json:"auto_refund_on_error"`
	SongRequestReward      SongRequestReward `json:"song_request_reward"`
}

func DefaultSettings() Settings {
	return Settings{
		SpotifyRequestsEnabled: true,
		ActiveMusicService:     BackendSpotify,
		AutoFulfillOnSuccess:   true,
		AutoRefundOnError:      true,
		SongRequestReward: SongRequestReward{
			Title: "Song Request",
			Cost:  300,
		},
	}
}

// MusicBackend returns the configured backend, spotify unless cider is selected.
func (s Settings) MusicBackend() Backend {
	if s.ActiveMusicService == BackendCider {
		return BackendCider
	}
	return BackendSpotify
}
