package kickadapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	kicksdk "github.com/glichtv/kick-sdk"
	kickchatwrapper "github.com/johanvandegriff/kick-chat-wrapper"
	"go.uber.org/zap"

	"djBot/internal/domain"
)

type Config struct {
	// Token del BOT de Kick
	AccessToken string

	// ID del usuario broadcaster (la cuenta de Kick del canal)
	BroadcasterUserID int

	// ID del chatroom (no es el mismo que el userID)
	// sale de https://kick.com/api/v2/channels/{slug}, campo "chatroom":{"id":...}
	ChatroomID int

	// EventHandler recibe cada mensaje crudo del chatroom (subs, tips, etc.)
	EventHandler EventHandler

	Logger *zap.Logger
}

type MessageHandler func(ctx context.Context, msg domain.Message) error
type EventHandler func(msg kickchatwrapper.ChatMessage)

type Adapter struct {
	cfg     Config
	logger  *zap.Logger
	handler MessageHandler

	mu  sync.RWMutex
	sdk *kicksdk.Client
	ws  *kickchatwrapper.Client
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

// Start joins the chatroom and feeds every chat line to the handler until ctx
// is done.
func (a *Adapter) Start(ctx context.Context) error {
	if a.cfg.AccessToken == "" {
		return errors.New("kick: AccessToken vacío")
	}
	if a.cfg.ChatroomID == 0 {
		return errors.New("kick: ChatroomID no configurado")
	}

	sdkClient := kicksdk.NewClient(
		kicksdk.WithAccessTokens(kicksdk.AccessTokens{
			UserAccessToken: a.cfg.AccessToken,
		}),
	)

	wsClient, err := kickchatwrapper.NewClient()
	if err != nil {
		return fmt.Errorf("kick: error creando ws client: %w", err)
	}
	if err := wsClient.JoinChannelByID(a.cfg.ChatroomID); err != nil {
		return fmt.Errorf("kick: JoinChannelByID: %w", err)
	}
	msgChan := wsClient.ListenForMessages()

	a.mu.Lock()
	a.sdk = sdkClient
	a.ws = wsClient
	a.mu.Unlock()

	a.logger.Info("kick: connected",
		zap.Int("chatroom_id", a.cfg.ChatroomID),
		zap.Int("broadcaster_user_id", a.cfg.BroadcasterUserID))

	defer func() {
		a.mu.Lock()
		if a.ws != nil {
			a.ws.Close()
		}
		a.mu.Unlock()
	}()

	for {
		select {
		case m, ok := <-msgChan:
			if !ok {
				a.logger.Warn("kick: message channel closed")
				return errors.New("kick: message channel closed")
			}
			if h := a.cfg.EventHandler; h != nil {
				h(m)
			}
			a.mu.RLock()
			handler := a.handler
			a.mu.RUnlock()
			if handler == nil {
				continue
			}
			if err := handler(ctx, toDomain(m, a.cfg.BroadcasterUserID)); err != nil {
				a.logger.Warn("kick: handler error", zap.Error(err))
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *Adapter) SendMessage(ctx context.Context, platform domain.Platform, channelID, text string) error {
	if platform != domain.PlatformKick {
		return fmt.Errorf("kick adapter no soporta plataforma %s", platform)
	}
	if text == "" {
		return nil
	}

	a.mu.RLock()
	client := a.sdk
	a.mu.RUnlock()
	if client == nil {
		return errors.New("kick: cliente SDK no inicializado")
	}
	if a.cfg.BroadcasterUserID == 0 {
		return errors.New("kick: BroadcasterUserID no configurado")
	}

	resp, err := client.Chat().PostMessage(ctx, kicksdk.PostChatMessageInput{
		BroadcasterUserID: a.cfg.BroadcasterUserID,
		Content:           text,
		PosterType:        kicksdk.MessagePosterUser,
	})
	if err != nil {
		return fmt.Errorf("kick: error enviando mensaje de chat: %w", err)
	}
	if !resp.Payload.IsSent {
		meta := resp.ResponseMetadata
		a.logger.Warn("kick: PostMessage rejected",
			zap.Int("status", meta.StatusCode),
			zap.String("kick_message", meta.KickMessage),
			zap.String("kick_error", meta.KickError))
		return fmt.Errorf("kick: mensaje no fue aceptado por la API (status %d)", meta.StatusCode)
	}
	a.logger.Debug("kick: message sent", zap.String("message_id", resp.Payload.MessageID))
	return nil
}

func toDomain(m kickchatwrapper.ChatMessage, broadcasterUserID int) domain.Message {
	sender := m.Sender
	msg := domain.Message{
		Platform:        domain.PlatformKick,
		ChannelID:       strconv.Itoa(m.ChatroomID),
		UserID:          strconv.Itoa(sender.ID),
		Username:        sender.Username,
		Text:            m.Content,
		Timestamp:       time.Now(),
		IsPlatformOwner: broadcasterUserID != 0 && sender.ID == broadcasterUserID,
	}
	for _, b := range sender.Identity.Badges {
		switch strings.ToLower(b.Type) {
		case "broadcaster":
			msg.IsPlatformOwner = true
		case "moderator":
			msg.IsPlatformMod = true
		case "vip":
			msg.IsPlatformVip = true
		case "subscriber", "founder":
			msg.IsSubscriber = true
		}
	}
	return msg
}
