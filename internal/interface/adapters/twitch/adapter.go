// Package twitchadapter adapter for twitch
package twitchadapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adeithe/go-twitch/irc"
	"go.uber.org/zap"

	"djBot/internal/domain"
)

type Config struct {
	Username   string
	OAuthToken string
	Channels   []string

	UserNoticeHandler UserNoticeHandler
	Logger            *zap.Logger
}

type MessageHandler func(ctx context.Context, msg domain.Message) error
type UserNoticeHandler func(notice irc.UserNotice)

type Adapter struct {
	cfg     Config
	logger  *zap.Logger
	handler MessageHandler

	mu   sync.RWMutex
	conn *irc.Conn
}

func NewAdapter(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{cfg: cfg, logger: logger}
}

func (a *Adapter) SetHandler(h MessageHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

// Channels returns the joined channels, "#"-prefixed.
func (a *Adapter) Channels() []string {
	return append([]string(nil), a.cfg.Channels...)
}

func (a *Adapter) Start(ctx context.Context) error {
	if len(a.cfg.Channels) == 0 {
		return errors.New("twitch: no hay canales configurados")
	}
	if a.cfg.Username == "" || a.cfg.OAuthToken == "" {
		return errors.New("twitch: username u oauth token vacíos")
	}

	// una sola conexión, sin sharding
	conn := &irc.Conn{}
	if err := conn.SetLogin(a.cfg.Username, formatOAuthToken(a.cfg.OAuthToken)); err != nil {
		return fmt.Errorf("twitch: SetLogin: %w", err)
	}

	conn.OnMessage(func(cm irc.ChatMessage) {
		a.mu.RLock()
		handler := a.handler
		a.mu.RUnlock()
		if handler == nil {
			return
		}
		if err := handler(ctx, toDomain(cm)); err != nil {
			a.logger.Warn("twitch: handler error", zap.Error(err))
		}
	})
	if h := a.cfg.UserNoticeHandler; h != nil {
		conn.OnUserNotice(h)
	}

	if err := conn.Connect(); err != nil {
		return fmt.Errorf("twitch: Connect: %w", err)
	}
	if err := conn.Join(a.cfg.Channels...); err != nil {
		conn.Close()
		return fmt.Errorf("twitch: Join: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	a.logger.Info("twitch: connected", zap.String("user", a.cfg.Username), zap.Strings("channels", a.cfg.Channels))

	<-ctx.Done()

	a.mu.Lock()
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	a.mu.Unlock()

	return ctx.Err()
}

func (a *Adapter) SendMessage(ctx context.Context, platform domain.Platform, channelID, text string) error {
	if platform != domain.PlatformTwitch {
		return fmt.Errorf("twitch adapter no soporta plataforma %s", platform)
	}
	if text == "" {
		return nil
	}

	a.mu.RLock()
	conn := a.conn
	a.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return errors.New("twitch: conexión no inicializada o cerrada")
	}

	a.logger.Debug("twitch: say", zap.String("channel", channelID), zap.String("text", text))
	return conn.Say(strings.TrimPrefix(channelID, "#"), text)
}

func toDomain(cm irc.ChatMessage) domain.Message {
	sender := cm.Sender
	return domain.Message{
		Platform:  domain.PlatformTwitch,
		ChannelID: cm.Channel,
		UserID:    strconv.FormatInt(sender.ID, 10),
		Username:  sender.DisplayName,
		Text:      cm.Text,
		Timestamp: time.Now(),

		IsPlatformOwner: sender.IsBroadcaster,
		IsPlatformMod:   sender.IsModerator,
		IsPlatformVip:   sender.IsVIP,
		IsSubscriber:    sender.IsSubscriber,
	}
}

func formatOAuthToken(token string) string {
	if token == "" || strings.HasPrefix(token, "oauth:") {
		return token
	}
	return "oauth:" + token
}
