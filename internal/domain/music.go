package domain

import (
	"context"
	"errors"
	"fmt"
)

type Backend string

const (
	BackendSpotify Backend = "spotify"
	BackendCider   Backend = "cider"
)

// TrackRef is an immutable track description produced by a backend.
type TrackRef struct {
	ID       string
	Name     string
	Artist   string
	Album    string
	URL      string
	ImageURL string
}

// OutcomeCode classifies the result of a backend operation.
type OutcomeCode string

const (
	CodeQueueSuccess        OutcomeCode = "QUEUE_SUCCESS"
	CodeSpotifyNotConnected OutcomeCode = "SPOTIFY_NOT_CONNECTED"
	CodeSearchNoResults     OutcomeCode = "SEARCH_NO_RESULTS"
	CodeSearchTimeout       OutcomeCode = "SEARCH_TIMEOUT"
	CodeSearchError         OutcomeCode = "SEARCH_ERROR"
	CodeSearchRequiresAPI   OutcomeCode = "SEARCH_REQUIRES_API"
	CodeTrackInfoFailed     OutcomeCode = "TRACK_INFO_FAILED"
	CodeQueueTimeout        OutcomeCode = "QUEUE_TIMEOUT"
	CodeNoDevice            OutcomeCode = "NO_DEVICE"
	CodePremiumRequired     OutcomeCode = "PREMIUM_REQUIRED"
	CodeSpotifyAPIError     OutcomeCode = "SPOTIFY_API_ERROR"
	CodeQueueAddFailed      OutcomeCode = "QUEUE_ADD_FAILED"
	CodeCiderNotRunning     OutcomeCode = "CIDER_NOT_RUNNING"
	CodeNoTrackPlaying      OutcomeCode = "NO_TRACK_PLAYING"
	CodeTrackInfoError      OutcomeCode = "TRACK_INFO_ERROR"
	CodeSkipFailed          OutcomeCode = "SKIP_FAILED"
	CodeUnknownBackend      OutcomeCode = "UNKNOWN_SOURCE"
	CodeResolutionFailed    OutcomeCode = "resolution-failed"
)

// MusicError carries the outcome code of a failed backend call.
type MusicError struct {
	Code OutcomeCode
	Err  error
}

func (e *MusicError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *MusicError) Unwrap() error { return e.Err }

func NewMusicError(code OutcomeCode, err error) error {
	return &MusicError{Code: code, Err: err}
}

// CodeOf extracts the outcome code from err, falling back to fallback when err
// does not carry one.
func CodeOf(err error, fallback OutcomeCode) OutcomeCode {
	if err == nil {
		return ""
	}
	var me *MusicError
	if errors.As(err, &me) && me.Code != "" {
		return me.Code
	}
	return fallback
}

// MusicBackend is one playback integration (Spotify, Cider).
type MusicBackend interface {
	Name() Backend
	// ExtractID returns the backend track id when input is a link, URI or bare id
	// native to this backend.
	ExtractID(input string) (string, bool)
	Search(ctx context.Context, query string) (TrackRef, error)
	TrackInfo(ctx context.Context, id string) (TrackRef, error)
	Enqueue(ctx context.Context, id string) error
	CurrentTrack(ctx context.Context) (TrackRef, error)
	Skip(ctx context.Context) error
}

// PlaylistAdder is implemented by backends that can also archive requests into a playlist.
type PlaylistAdder interface {
	AddToPlaylist(ctx context.Context, trackID, playlistURL string) error
}
