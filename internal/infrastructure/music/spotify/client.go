// Package spotify talks to the Spotify Web API for the song-request queue.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"djBot/internal/domain"
)

const (
	DefaultAPIBase    = "https://api.spotify.com/v1"
	DefaultTokenURL   = "https://accounts.spotify.com/api/token"
	DefaultScrapeBase = "https://open.spotify.com"
	searchLimit       = 5
	scrapeUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

var (
	urlIDRe  = regexp.MustCompile(`open\.spotify\.com/(?:intl-[a-z]+/)?track/([A-Za-z0-9]+)`)
	uriIDRe  = regexp.MustCompile(`spotify:track:([A-Za-z0-9]+)`)
	bareIDRe = regexp.MustCompile(`^[A-Za-z0-9]{15,}$`)

	ogTitleRe = regexp.MustCompile(`<meta property="og:title" content="(.*?)"`)
	ogDescRe  = regexp.MustCompile(`<meta property="og:description" content="(.*?)"`)
	ogImageRe = regexp.MustCompile(`<meta property="og:image" content="(.*?)"`)

	nonAlnumRe = regexp.MustCompile(`[^a-z0-9]`)
)

type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string

	Timeout       time.Duration
	SearchTimeout time.Duration

	APIBase    string
	TokenURL   string
	ScrapeBase string
	Logger     *zap.Logger
}

// Client implements domain.MusicBackend. Without API credentials only
// TrackInfo works, by reading the public track page.
type Client struct {
	api           *spotifyapi.Client
	scrape        *http.Client
	scrapeBase    string
	timeout       time.Duration
	searchTimeout time.Duration
	logger        *zap.Logger
}

var (
	_ domain.MusicBackend  = (*Client)(nil)
	_ domain.PlaylistAdder = (*Client)(nil)
)

func New(ctx context.Context, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 5 * time.Second
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.ScrapeBase == "" {
		cfg.ScrapeBase = DefaultScrapeBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		scrape:        &http.Client{Timeout: 5 * time.Second},
		scrapeBase:    strings.TrimRight(cfg.ScrapeBase, "/"),
		timeout:       cfg.Timeout,
		searchTimeout: cfg.SearchTimeout,
		logger:        logger,
	}

	if cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.RefreshToken != "" {
		conf := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}
		base := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
		ts := conf.TokenSource(base, &oauth2.Token{RefreshToken: cfg.RefreshToken})
		c.api = spotifyapi.New(oauth2.NewClient(base, ts),
			spotifyapi.WithBaseURL(strings.TrimRight(cfg.APIBase, "/")+"/"))
	} else {
		logger.Info("spotify: no API credentials, link scraping only")
	}
	return c
}

func (c *Client) Name() domain.Backend { return domain.BackendSpotify }

func (c *Client) ExtractID(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if m := urlIDRe.FindStringSubmatch(input); m != nil {
		return m[1], true
	}
	if m := uriIDRe.FindStringSubmatch(input); m != nil {
		return m[1], true
	}
	if bareIDRe.MatchString(input) {
		return input, true
	}
	return "", false
}

func toRef(t *spotifyapi.FullTrack) domain.TrackRef {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	ref := domain.TrackRef{
		ID:     string(t.ID),
		Name:   t.Name,
		Artist: strings.Join(names, ", "),
		Album:  t.Album.Name,
		URL:    t.ExternalURLs["spotify"],
	}
	if len(t.Album.Images) > 0 {
		ref.ImageURL = t.Album.Images[0].URL
	}
	return ref
}

// Search returns the best of the top results, scored on popularity and how
// well the track and artist names match the query.
func (c *Client) Search(ctx context.Context, query string) (domain.TrackRef, error) {
	if c.api == nil {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeSearchRequiresAPI, nil)
	}
	ctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()

	res, err := c.api.Search(ctx, query, spotifyapi.SearchTypeTrack, spotifyapi.Limit(searchLimit))
	if err != nil {
		if isTimeout(err) {
			return domain.TrackRef{}, domain.NewMusicError(domain.CodeSearchTimeout, err)
		}
		c.logAPIError("search", err)
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeSearchError, err)
	}
	if res.Tracks == nil || len(res.Tracks.Tracks) == 0 {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeSearchNoResults, nil)
	}
	return toRef(bestMatch(query, res.Tracks.Tracks)), nil
}

func normalize(s string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(s), "")
}

func overlaps(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func bestMatch(query string, items []spotifyapi.FullTrack) *spotifyapi.FullTrack {
	q := normalize(query)
	best, bestScore := &items[0], -1.0
	for i := range items {
		t := &items[i]
		score := float64(t.Popularity) * 0.5
		name := normalize(t.Name)
		switch {
		case q == name:
			score += 100
		case overlaps(q, name):
			score += 50
		}
		for _, a := range t.Artists {
			artist := normalize(a.Name)
			if artist != "" && strings.Contains(q, artist) {
				score += 50
			}
			c1, c2 := normalize(a.Name+t.Name), normalize(t.Name+a.Name)
			switch {
			case q == c1 || q == c2:
				score += 200
			case overlaps(q, c1) || overlaps(q, c2):
				score += 150
			}
		}
		if score > bestScore {
			best, bestScore = t, score
		}
	}
	return best
}

func (c *Client) TrackInfo(ctx context.Context, id string) (domain.TrackRef, error) {
	if c.api == nil {
		return c.scrapeTrackInfo(ctx, id)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	t, err := c.api.GetTrack(ctx, spotifyapi.ID(id))
	if err != nil {
		c.logAPIError("track", err)
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeTrackInfoFailed, err)
	}
	return toRef(t), nil
}

// scrapeTrackInfo reads the Open Graph tags of the public track page.
func (c *Client) scrapeTrackInfo(ctx context.Context, id string) (domain.TrackRef, error) {
	page := c.scrapeBase + "/track/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeTrackInfoFailed, err)
	}
	req.Header.Set("User-Agent", scrapeUserAgent)
	resp, err := c.scrape.Do(req)
	if err != nil {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeTrackInfoFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeTrackInfoFailed, fmt.Errorf("scrape status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeTrackInfoFailed, err)
	}
	content := string(data)

	title := ogTitleRe.FindStringSubmatch(content)
	if title == nil {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeTrackInfoFailed, errors.New("no og:title"))
	}
	ref := domain.TrackRef{
		ID:     id,
		Name:   html.UnescapeString(title[1]),
		Artist: "Unknown Artist",
		URL:    page,
	}
	// "Artist · Song · 2023"
	if desc := ogDescRe.FindStringSubmatch(content); desc != nil {
		parts := strings.Split(html.UnescapeString(desc[1]), "·")
		if a := strings.TrimSpace(parts[0]); a != "" {
			ref.Artist = a
		}
	}
	if img := ogImageRe.FindStringSubmatch(content); img != nil {
		ref.ImageURL = img[1]
	}
	return ref, nil
}

func (c *Client) Enqueue(ctx context.Context, id string) error {
	if c.api == nil {
		return domain.NewMusicError(domain.CodeSpotifyNotConnected, nil)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.api.QueueSong(ctx, spotifyapi.ID(id))
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		return domain.NewMusicError(domain.CodeQueueTimeout, err)
	}
	c.logAPIError("queue", err)
	switch apiStatus(err) {
	case http.StatusNotFound:
		return domain.NewMusicError(domain.CodeNoDevice, nil)
	case http.StatusForbidden:
		return domain.NewMusicError(domain.CodePremiumRequired, nil)
	default:
		return domain.NewMusicError(domain.CodeSpotifyAPIError, err)
	}
}

func (c *Client) CurrentTrack(ctx context.Context) (domain.TrackRef, error) {
	if c.api == nil {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeSpotifyNotConnected, nil)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// 204 decodes to an empty result
	playing, err := c.api.PlayerCurrentlyPlaying(ctx)
	if err != nil {
		c.logAPIError("currently playing", err)
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeTrackInfoError, err)
	}
	if playing == nil || playing.Item == nil {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeNoTrackPlaying, nil)
	}
	return toRef(playing.Item), nil
}

func (c *Client) Skip(ctx context.Context) error {
	if c.api == nil {
		return domain.NewMusicError(domain.CodeSpotifyNotConnected, nil)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.api.Next(ctx); err != nil {
		c.logAPIError("next", err)
		return domain.NewMusicError(domain.CodeSkipFailed, err)
	}
	return nil
}

// AddToPlaylist archives the track in the playlist behind playlistURL.
func (c *Client) AddToPlaylist(ctx context.Context, trackID, playlistURL string) error {
	if c.api == nil {
		return errors.New("spotify: API required for playlists")
	}
	playlistID := PlaylistID(playlistURL)
	if playlistID == "" {
		return fmt.Errorf("spotify: no playlist id in %q", playlistURL)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.api.AddTracksToPlaylist(ctx, spotifyapi.ID(playlistID), spotifyapi.ID(trackID)); err != nil {
		return fmt.Errorf("spotify: add to playlist: %w", err)
	}
	return nil
}

// PlaylistID takes the last path segment of a playlist link, without query.
func PlaylistID(playlistURL string) string {
	clean := strings.TrimSpace(strings.SplitN(playlistURL, "?", 2)[0])
	clean = strings.TrimRight(clean, "/")
	if i := strings.LastIndex(clean, "/"); i >= 0 {
		clean = clean[i+1:]
	}
	if i := strings.LastIndex(clean, ":"); i >= 0 {
		clean = clean[i+1:]
	}
	return clean
}

// apiStatus is the HTTP status of a Web API error, 0 for transport errors.
func apiStatus(err error) int {
	var apiErr spotifyapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func (c *Client) logAPIError(op string, err error) {
	c.logger.Warn("spotify: api error",
		zap.String("op", op),
		zap.Int("status", apiStatus(err)),
		zap.Error(err))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
