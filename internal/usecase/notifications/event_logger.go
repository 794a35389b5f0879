// Package notifications keeps the overlay-visible events: song requests,
// redemptions and giveaway winners, plus raw platform events for later ingest.
package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/adeithe/go-twitch/irc"
	kickchatwrapper "github.com/johanvandegriff/kick-chat-wrapper"
	"go.uber.org/zap"

	"djBot/internal/domain"
)

// Publisher pushes saved notifications to live listeners (the event bus).
type Publisher interface {
	PublishNotification(n *domain.Notification)
}

// EventLogger centraliza los eventos de plataformas: los guarda, los publica
// y deja rastro en el log.
type EventLogger struct {
	repo      domain.NotificationRepository
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewEventLogger(repo domain.NotificationRepository, publisher Publisher, logger *zap.Logger) *EventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLogger{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Record saves n and publishes it. Storage failures are logged; the event is
// still published.
func (l *EventLogger) Record(ctx context.Context, n *domain.Notification) {
	if n == nil {
		return
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = l.now().UTC()
	}
	if l.repo != nil {
		if err := l.repo.SaveNotification(context.WithoutCancel(ctx), n); err != nil {
			l.logger.Warn("notifications: save failed", zap.String("type", string(n.Type)), zap.Error(err))
		}
	}
	l.logger.Info("notifications: event",
		zap.String("type", string(n.Type)),
		zap.String("platform", string(n.Platform)),
		zap.String("user", n.Username),
		zap.String("message", n.Message))
	if l.publisher != nil {
		l.publisher.PublishNotification(n)
	}
}

func (l *EventLogger) Recent(ctx context.Context, limit int) ([]*domain.Notification, error) {
	if l.repo == nil {
		return nil, nil
	}
	return l.repo.ListNotifications(ctx, limit)
}

// HandleKickMessage registra los mensajes del websocket de Kick que no son chat normal.
func (l *EventLogger) HandleKickMessage(msg kickchatwrapper.ChatMessage) {
	kind := strings.TrimSpace(msg.Type)
	if strings.EqualFold(kind, "chat") || strings.EqualFold(kind, "message") {
		return
	}
	l.logger.Info("kick-events",
		zap.String("event_type", msg.Type),
		zap.Any("chatroom_id", msg.ChatroomID),
		zap.Any("payload", msg))
}

// HandleTwitchUserNotice registra los USERNOTICE (subs, gifts, raids).
func (l *EventLogger) HandleTwitchUserNotice(notice irc.UserNotice) {
	l.logger.Info("twitch-events",
		zap.Any("event_type", notice.Type),
		zap.Any("channel", notice.IRCMessage.Params),
		zap.Any("message", notice.Message),
		zap.Any("sender", notice.Sender),
		zap.Any("raw_tags", notice.IRCMessage.Tags))
}
