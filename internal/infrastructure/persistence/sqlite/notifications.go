package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"djBot/internal/domain"
)

func (s *Store) SaveNotification(ctx context.Context, n *domain.Notification) error {
	if n == nil {
		return fmt.Errorf("sqlite: notification nil")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	const stmt = `
INSERT INTO notifications (type, platform, username, message, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?);
`
	res, err := s.db.ExecContext(ctx, stmt,
		string(n.Type),
		string(n.Platform),
		n.Username,
		n.Message,
		encodeMetadata(n.Metadata),
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save notification: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		n.ID = id
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
SELECT id, type, platform, username, message, metadata, created_at
FROM notifications
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list notifications: %w", err)
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		var typ string
		var platform, username, message, meta sql.NullString
		var createdAt time.Time
		if err := rows.Scan(&n.ID, &typ, &platform, &username, &message, &meta, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan notification: %w", err)
		}
		n.Type = domain.NotificationType(typ)
		n.Platform = domain.Platform(platform.String)
		n.Username = username.String
		n.Message = message.String
		n.Metadata = decodeMetadata(meta.String)
		n.CreatedAt = createdAt
		out = append(out, &n)
	}
	return out, rows.Err()
}
