// Package cider controls Apple Music playback through the Cider desktop
// client's local REST API.
package cider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"djBot/internal/domain"
)

const (
	DefaultHost       = "http://localhost:10767"
	DefaultITunesBase = "https://itunes.apple.com"
	DefaultScrapeBase = "https://music.apple.com"
	storefront        = "us"
	artworkSize       = "300"
)

var (
	albumTrackRe = regexp.MustCompile(`[?&]i=(\d+)`)
	songPathRe   = regexp.MustCompile(`/song/[^/]+/(\d+)`)
	bareIDRe     = regexp.MustCompile(`^\d+$`)

	titleRe      = regexp.MustCompile(`(?s)<title>(.*?)</title>`)
	appleSuffix  = regexp.MustCompile(`(?i)\s*[-–—|]\s*Apple[\s\x{00a0}]*Music\s*$`)
	songByRe     = regexp.MustCompile(`(?i)\s*[-–—|]\s*Song\s+by\s+`)
	releaseTagRe = regexp.MustCompile(`(?i)\s*[-–—|]\s*(Single|EP)\s*$`)
)

// play-next moved between Cider releases; the first path that is not a 404 wins.
var playNextPaths = []string{
	"/api/v1/playback/play-next",
	"/play-next",
	"/api/v1/play-next",
	"/api/v1/playback/queue",
}

var nowPlayingPaths = []string{
	"/api/v1/playback/now-playing",
	"/api/v1/playback/active",
}

type Config struct {
	Host  string
	Token string

	ControlTimeout time.Duration
	SearchTimeout  time.Duration

	ITunesBase string
	ScrapeBase string
	Logger     *zap.Logger
}

// Client implements domain.MusicBackend over Cider.
type Client struct {
	host           string
	token          string
	itunesBase     string
	scrapeBase     string
	controlTimeout time.Duration
	searchTimeout  time.Duration
	http           *http.Client
	logger         *zap.Logger
}

var _ domain.MusicBackend = (*Client)(nil)

func New(cfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.ITunesBase == "" {
		cfg.ITunesBase = DefaultITunesBase
	}
	if cfg.ScrapeBase == "" {
		cfg.ScrapeBase = DefaultScrapeBase
	}
	if cfg.ControlTimeout <= 0 {
		cfg.ControlTimeout = 2 * time.Second
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		host:           strings.TrimRight(cfg.Host, "/"),
		token:          strings.TrimSpace(cfg.Token),
		itunesBase:     strings.TrimRight(cfg.ITunesBase, "/"),
		scrapeBase:     strings.TrimRight(cfg.ScrapeBase, "/"),
		controlTimeout: cfg.ControlTimeout,
		searchTimeout:  cfg.SearchTimeout,
		http:           &http.Client{},
		logger:         logger,
	}
}

func (c *Client) Name() domain.Backend { return domain.BackendCider }

func (c *Client) ExtractID(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if m := albumTrackRe.FindStringSubmatch(input); m != nil {
		return m[1], true
	}
	if m := songPathRe.FindStringSubmatch(input); m != nil {
		return m[1], true
	}
	if bareIDRe.MatchString(input) {
		return input, true
	}
	return "", false
}

// Ping checks that Cider answers and accepts the token.
func (c *Client) Ping(ctx context.Context) error {
	status, err := c.do(ctx, c.controlTimeout, http.MethodGet, c.host+"/api/v1/playback/active", nil, nil)
	if err != nil {
		return domain.NewMusicError(domain.CodeCiderNotRunning, err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("cider: authentication failed (status %d), check CIDER_API_TOKEN", status)
	}
	if status != http.StatusOK {
		return fmt.Errorf("cider: unexpected status %d", status)
	}
	return nil
}

type amapiSong struct {
	ID         string `json:"id"`
	Attributes struct {
		Name       string `json:"name"`
		ArtistName string `json:"artistName"`
		AlbumName  string `json:"albumName"`
		URL        string `json:"url"`
		Artwork    struct {
			URL string `json:"url"`
		} `json:"artwork"`
	} `json:"attributes"`
}

func (s amapiSong) toRef() domain.TrackRef {
	a := s.Attributes
	return domain.TrackRef{
		ID:       s.ID,
		Name:     a.Name,
		Artist:   a.ArtistName,
		Album:    a.AlbumName,
		URL:      a.URL,
		ImageURL: artwork(a.Artwork.URL),
	}
}

func artwork(template string) string {
	return strings.NewReplacer("{w}", artworkSize, "{h}", artworkSize).Replace(template)
}

// Search asks Cider's Apple Music proxy first and falls back to the public
// iTunes search.
func (c *Client) Search(ctx context.Context, query string) (domain.TrackRef, error) {
	params := url.Values{"types": {"songs"}, "term": {query}, "limit": {"1"}}
	var body struct {
		Results struct {
			Songs struct {
				Data []amapiSong `json:"data"`
			} `json:"songs"`
		} `json:"results"`
	}
	endpoint := c.host + "/api/v1/amapi/catalog/" + storefront + "/search?" + params.Encode()
	status, err := c.do(ctx, c.searchTimeout, http.MethodGet, endpoint, nil, &body)
	if err == nil && status == http.StatusOK && len(body.Results.Songs.Data) > 0 {
		return body.Results.Songs.Data[0].toRef(), nil
	}
	c.logger.Info("cider: catalog search failed, trying iTunes",
		zap.String("query", query),
		zap.Int("status", status),
		zap.Error(err))
	return c.searchITunes(ctx, query)
}

func (c *Client) searchITunes(ctx context.Context, query string) (domain.TrackRef, error) {
	params := url.Values{"term": {query}, "media": {"music"}, "entity": {"song"}, "limit": {"1"}}
	var body struct {
		ResultCount int `json:"resultCount"`
		Results     []struct {
			TrackID        int64  `json:"trackId"`
			TrackName      string `json:"trackName"`
			ArtistName     string `json:"artistName"`
			CollectionName string `json:"collectionName"`
			TrackViewURL   string `json:"trackViewUrl"`
			ArtworkURL100  string `json:"artworkUrl100"`
		} `json:"results"`
	}
	status, err := c.do(ctx, c.searchTimeout, http.MethodGet, c.itunesBase+"/search?"+params.Encode(), nil, &body)
	if err != nil {
		if isTimeout(err) {
			return domain.TrackRef{}, domain.NewMusicError(domain.CodeSearchTimeout, err)
		}
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeSearchError, err)
	}
	if status != http.StatusOK {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeSearchError, fmt.Errorf("itunes status %d", status))
	}
	if body.ResultCount == 0 || len(body.Results) == 0 {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeSearchNoResults, nil)
	}
	r := body.Results[0]
	return domain.TrackRef{
		ID:       strconv.FormatInt(r.TrackID, 10),
		Name:     r.TrackName,
		Artist:   r.ArtistName,
		Album:    r.CollectionName,
		URL:      r.TrackViewURL,
		ImageURL: r.ArtworkURL100,
	}, nil
}

// TrackInfo reads the catalog entry through Cider and falls back to the
// public song page title when Cider cannot answer.
func (c *Client) TrackInfo(ctx context.Context, id string) (domain.TrackRef, error) {
	var body struct {
		Data []amapiSong `json:"data"`
	}
	endpoint := c.host + "/api/v1/amapi/catalog/" + storefront + "/songs/" + url.PathEscape(id)
	status, err := c.do(ctx, c.searchTimeout, http.MethodGet, endpoint, nil, &body)
	if err == nil && status == http.StatusOK && len(body.Data) > 0 {
		ref := body.Data[0].toRef()
		if ref.ID == "" {
			ref.ID = id
		}
		return ref, nil
	}
	c.logger.Info("cider: catalog lookup failed, scraping",
		zap.String("id", id),
		zap.Int("status", status),
		zap.Error(err))
	return c.scrapeTrackInfo(ctx, id)
}

func (c *Client) scrapeTrackInfo(ctx context.Context, id string) (domain.TrackRef, error) {
	page := c.scrapeBase + "/" + storefront + "/song/" + url.PathEscape(id)
	ctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeTrackInfoFailed, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko)")
	resp, err := c.http.Do(req)
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
	m := titleRe.FindSubmatch(data)
	if m == nil {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeTrackInfoFailed, errors.New("no <title>"))
	}
	name, artist := parsePageTitle(string(m[1]))
	return domain.TrackRef{ID: id, Name: name, Artist: artist, Album: "Apple Music", URL: page}, nil
}

// parsePageTitle turns "Song - Song by Artist - Apple Music" into its parts.
func parsePageTitle(raw string) (name, artist string) {
	t := strings.Trim(strings.TrimSpace(html.UnescapeString(raw)), "\u200e\u200f")
	t = appleSuffix.ReplaceAllString(t, "")
	t = songByRe.ReplaceAllString(t, " by ")
	t = releaseTagRe.ReplaceAllString(t, "")
	if i := strings.LastIndex(t, " by "); i >= 0 {
		return strings.TrimSpace(t[:i]), strings.TrimSpace(t[i+len(" by "):])
	}
	return strings.TrimSpace(t), "Unknown"
}

// Enqueue plays the song next.
func (c *Client) Enqueue(ctx context.Context, id string) error {
	payload := map[string]string{"id": id, "type": "songs"}
	var lastErr error
	for _, path := range playNextPaths {
		status, err := c.do(ctx, c.controlTimeout, http.MethodPost, c.host+path, payload, nil)
		if err != nil {
			if isConnRefused(err) {
				return domain.NewMusicError(domain.CodeCiderNotRunning, err)
			}
			lastErr = err
			continue
		}
		if status == http.StatusOK || status == http.StatusNoContent {
			c.logger.Debug("cider: queued", zap.String("id", id), zap.String("path", path))
			return nil
		}
		if status != http.StatusNotFound {
			c.logger.Warn("cider: play-next rejected", zap.String("path", path), zap.Int("status", status))
		}
	}
	return domain.NewMusicError(domain.CodeQueueAddFailed, lastErr)
}

func (c *Client) CurrentTrack(ctx context.Context) (domain.TrackRef, error) {
	var body struct {
		Info *struct {
			Name       string `json:"name"`
			ArtistName string `json:"artistName"`
			AlbumName  string `json:"albumName"`
			URL        string `json:"url"`
			Artwork    struct {
				URL string `json:"url"`
			} `json:"artwork"`
		} `json:"info"`
	}
	found := false
	for _, path := range nowPlayingPaths {
		status, err := c.do(ctx, c.controlTimeout, http.MethodGet, c.host+path, nil, &body)
		if err != nil && isConnRefused(err) {
			return domain.TrackRef{}, domain.NewMusicError(domain.CodeCiderNotRunning, err)
		}
		if err == nil && status == http.StatusOK {
			found = true
			break
		}
	}
	if !found {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeTrackInfoError, nil)
	}
	if body.Info == nil || body.Info.Name == "" {
		return domain.TrackRef{}, domain.NewMusicError(domain.CodeNoTrackPlaying, nil)
	}
	info := body.Info
	return domain.TrackRef{
		Name:     info.Name,
		Artist:   info.ArtistName,
		Album:    info.AlbumName,
		URL:      info.URL,
		ImageURL: artwork(info.Artwork.URL),
	}, nil
}

func (c *Client) Skip(ctx context.Context) error {
	status, err := c.do(ctx, c.controlTimeout, http.MethodPost, c.host+"/api/v1/playback/next", nil, nil)
	if err != nil {
		if isConnRefused(err) {
			return domain.NewMusicError(domain.CodeCiderNotRunning, err)
		}
		return domain.NewMusicError(domain.CodeSkipFailed, err)
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return domain.NewMusicError(domain.CodeSkipFailed, fmt.Errorf("status %d", status))
	}
	return nil
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, endpoint string, in, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" && strings.HasPrefix(endpoint, c.host+"/") {
		// cada versión de Cider lee un header distinto
		req.Header.Set("apptoken", c.token)
		req.Header.Set("apitoken", c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("cider: decode: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
