package music

import "djBot/internal/domain"

var responseKeys = map[domain.OutcomeCode]string{
	domain.CodeSpotifyNotConnected: "spotify_not_connected",
	domain.CodeSearchNoResults:     "sr_search_failed",
	domain.CodeSearchTimeout:       "sr_timeout",
	domain.CodeSearchError:         "sr_search_error",
	domain.CodeTrackInfoFailed:     "sr_track_info_failed",
	domain.CodeQueueTimeout:        "sr_queue_timeout",
	domain.CodeNoDevice:            "sr_no_device",
	domain.CodePremiumRequired:     "sr_premium_required",
	domain.CodeSpotifyAPIError:     "sr_api_error",
	domain.CodeQueueAddFailed:      "sr_queue_failed",
	domain.CodeResolutionFailed:    "sr_resolution_failed",
}

// ResponseKey maps a failed outcome to its chat response template.
func ResponseKey(code domain.OutcomeCode) string {
	if key, ok := responseKeys[code]; ok {
		return key
	}
	return "sr_error"
}

// ErrorMessage is the short text used inside redemption replies.
func ErrorMessage(code domain.OutcomeCode) string {
	switch code {
	case domain.CodeNoDevice:
		return "No active Spotify device found"
	case domain.CodePremiumRequired:
		return "Spotify Premium is required"
	case domain.CodeSearchNoResults:
		return "No results found"
	case domain.CodeResolutionFailed:
		return "Could not resolve that link"
	case domain.CodeCiderNotRunning:
		return "Cider is not running"
	case domain.CodeSpotifyNotConnected:
		return "Spotify is not connected"
	default:
		return "Could not add song: " + string(code)
	}
}
