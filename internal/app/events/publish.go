package events

import "djBot/internal/domain"

// Typed publishers so use cases depend on small interfaces, not on topics.

func (b *Bus) PublishChat(msg domain.Message) {
	b.Publish(TopicChatMessage, NewChatMessageDTO(msg))
}

func (b *Bus) PublishNotification(n *domain.Notification) {
	if n == nil {
		return
	}
	b.Publish(TopicNotification, NewNotificationDTO(n))
}

func (b *Bus) PublishStatus(s domain.StreamStatus) {
	b.Publish(TopicStreamStatus, NewStreamStatusDTO(s))
}

func (b *Bus) PublishError(source string, err error) {
	if err == nil {
		return
	}
	b.Publish(TopicAppError, NewAppErrorDTO(source, err))
}
