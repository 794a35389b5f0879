package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	TwitchUsername      string
	TwitchToken         string
	TwitchChannels      []string
	TwitchClientId      string
	TwitchApiToken      string
	TwitchBroadcasterId string
	TwitchStreamerLogin string

	KickToken             string
	KickBroadcasterUserID int
	KickChatroomID        int

	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRefreshToken string

	CiderHost     string
	CiderAPIToken string

	DataDir      string
	DatabasePath string
	HTTPAddr     string
	LogLevel     string

	Tuning Tuning
}

// Tuning holds the non-secret knobs that may come from the BOT_CONFIG yaml file.
type Tuning struct {
	Prefix         string        `yaml:"prefix"`
	Workers        int           `yaml:"workers"`
	DrainGrace     time.Duration `yaml:"drain_grace"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	CiderControl   time.Duration `yaml:"cider_control_timeout"`
	Search         time.Duration `yaml:"search_timeout"`
	Spotify        time.Duration `yaml:"spotify_timeout"`
	URLFetch       time.Duration `yaml:"urlfetch_timeout"`
	Helix          time.Duration `yaml:"helix_timeout"`
	StatusTTL      time.Duration `yaml:"status_ttl"`
	ConfigDebounce time.Duration `yaml:"config_debounce"`
	EventSubURL    string        `yaml:"eventsub_url"`
}

func DefaultTuning() Tuning {
	return Tuning{
		Prefix:         "!",
		Workers:        4,
		DrainGrace:     5 * time.Second,
		RetryDelay:     5 * time.Second,
		CiderControl:   2 * time.Second,
		Search:         5 * time.Second,
		Spotify:        10 * time.Second,
		URLFetch:       5 * time.Second,
		Helix:          5 * time.Second,
		StatusTTL:      30 * time.Second,
		ConfigDebounce: time.Second,
	}
}

// Load reads .env (if any), the environment and then the optional yaml
// overlay named by BOT_CONFIG. Missing chat credentials are not an error,
// the matching adapter just stays off.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TwitchUsername:      env("TWITCH_BOT_USERNAME", ""),
		TwitchToken:         env("TWITCH_BOT_ACCESS_TOKEN", ""),
		TwitchChannels:      splitList(os.Getenv("TWITCH_BOT_CHANNELS")),
		TwitchClientId:      env("TWITCH_CLIENT_ID", ""),
		TwitchApiToken:      env("TWITCH_API_ACCESS_TOKEN", ""),
		TwitchBroadcasterId: env("TWITCH_BROADCASTER_ID", ""),
		TwitchStreamerLogin: env("TWITCH_STREAMER_LOGIN", ""),

		KickToken: env("KICK_BOT_TOKEN", ""),

		SpotifyClientID:     env("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret: env("SPOTIFY_CLIENT_SECRET", ""),
		SpotifyRefreshToken: env("SPOTIFY_REFRESH_TOKEN", ""),

		CiderHost:     env("CIDER_HOST", "http://localhost:10767"),
		CiderAPIToken: env("CIDER_API_TOKEN", ""),

		DataDir:  env("DATA_DIR", "data"),
		HTTPAddr: env("HTTP_ADDR", ":8080"),
		LogLevel: strings.ToLower(env("LOG_LEVEL", "info")),

		Tuning: DefaultTuning(),
	}
	cfg.DatabasePath = env("DATABASE_PATH", strings.TrimRight(cfg.DataDir, "/")+"/djbot.db")

	var err error
	if cfg.KickBroadcasterUserID, err = envInt("KICK_BROADCASTER_USER_ID"); err != nil {
		return nil, err
	}
	if cfg.KickChatroomID, err = envInt("KICK_CHATROOM_ID"); err != nil {
		return nil, err
	}

	if path := strings.TrimSpace(os.Getenv("BOT_CONFIG")); path != "" {
		if err := cfg.applyOverlay(path); err != nil {
			return nil, err
		}
	}
	if cfg.TwitchStreamerLogin == "" && len(cfg.TwitchChannels) > 0 {
		cfg.TwitchStreamerLogin = strings.TrimPrefix(cfg.TwitchChannels[0], "#")
	}
	return cfg, nil
}

func (c *Config) applyOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	t := c.Tuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	if strings.TrimSpace(t.Prefix) == "" {
		return errors.New("config: prefix must not be empty")
	}
	if t.Workers <= 0 {
		t.Workers = DefaultTuning().Workers
	}
	c.Tuning = t
	return nil
}

// TwitchChatEnabled reports whether the IRC adapter has what it needs.
func (c *Config) TwitchChatEnabled() bool {
	return c.TwitchUsername != "" && c.TwitchToken != "" && len(c.TwitchChannels) > 0
}

func (c *Config) TwitchAPIEnabled() bool {
	return c.TwitchClientId != "" && c.TwitchApiToken != ""
}

func (c *Config) KickEnabled() bool {
	return c.KickToken != "" && c.KickChatroomID != 0
}

func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != "" && c.SpotifyRefreshToken != ""
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s inválido (%q): %w", key, v, err)
	}
	return n, nil
}

// splitList turns "a, #B" into ["#a", "#b"].
func splitList(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		ch := strings.ToLower(strings.TrimSpace(part))
		if ch == "" {
			continue
		}
		if !strings.HasPrefix(ch, "#") {
			ch = "#" + ch
		}
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	return out
}
