package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"djBot/internal/domain"
)

type memRepo struct {
	saved []*domain.Notification
	err   error
}

func (m *memRepo) SaveNotification(_ context.Context, n *domain.Notification) error {
	if m.err != nil {
		return m.err
	}
	n.ID = int64(len(m.saved) + 1)
	m.saved = append(m.saved, n)
	return nil
}

func (m *memRepo) ListNotifications(_ context.Context, limit int) ([]*domain.Notification, error) {
	if limit > len(m.saved) {
		limit = len(m.saved)
	}
	return m.saved[:limit], nil
}

type capturePublisher struct {
	got []*domain.Notification
}

func (c *capturePublisher) PublishNotification(n *domain.Notification) {
	c.got = append(c.got, n)
}

func TestRecordSavesAndPublishes(t *testing.T) {
	repo := &memRepo{}
	pub := &capturePublisher{}
	l := NewEventLogger(repo, pub, zaptest.NewLogger(t))
	fixed := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	l.Record(context.Background(), &domain.Notification{Type: domain.NotificationWinner, Username: "bob"})

	require.Len(t, repo.saved, 1)
	require.Len(t, pub.got, 1)
	assert.Equal(t, int64(1), pub.got[0].ID)
	assert.Equal(t, fixed, pub.got[0].CreatedAt)

	recent, err := l.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestRecordPublishesEvenWhenSaveFails(t *testing.T) {
	pub := &capturePublisher{}
	l := NewEventLogger(&memRepo{err: errors.New("locked")}, pub, zaptest.NewLogger(t))

	l.Record(context.Background(), &domain.Notification{Type: domain.NotificationRedemption})
	l.Record(context.Background(), nil)

	assert.Len(t, pub.got, 1)
}
