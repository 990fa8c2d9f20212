package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/ogulcanaydogan/finalert/pkg/model"
)

// DefaultListLimit caps notification listings when the caller passes no limit.
const DefaultListLimit = 50

const notificationColumns = `id, user_id, type, category, title, message, action_url, action_label,
	priority, related_type, related_id, metadata_json, is_read, read_at, expires_at, created_at, dedup_key`

// visibleTo restricts rows to those owned by the user or broadcast to everyone.
const visibleTo = `(user_id = ? OR user_id IS NULL)`

const priorityOrder = `CASE priority WHEN 'high' THEN 3 WHEN 'normal' THEN 2 ELSE 1 END DESC`

func (s *SQL) InsertNotification(ctx context.Context, n *model.Notification) (bool, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Priority == "" {
		n.Priority = model.PriorityNormal
	}
	if len(n.Metadata) == 0 {
		n.Metadata = datatypes.JSON("{}")
	}

	rows, err := s.db.QueryxContext(ctx, s.rebind(
		`INSERT INTO notifications (user_id, type, category, title, message, action_url, action_label,
			priority, related_type, related_id, metadata_json, is_read, expires_at, created_at, dedup_key)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (dedup_key) DO NOTHING
		 RETURNING id`),
		n.UserID, n.Type, n.Category, n.Title, n.Message, n.ActionURL, n.ActionLabel,
		n.Priority, n.RelatedType, n.RelatedID, n.Metadata.String(), false,
		utcPtr(n.ExpiresAt), n.CreatedAt.UTC(), n.DedupKey,
	)
	if err != nil {
		return false, storageErr("insert notification", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return false, storageErr("insert notification", err)
		}
		return false, nil
	}
	if err := rows.Scan(&n.ID); err != nil {
		return false, storageErr("scan notification id", err)
	}
	n.IsRead = false
	n.ReadAt = nil
	return true, rows.Err()
}

func (s *SQL) GetNotification(ctx context.Context, id int64) (*model.Notification, error) {
	var n model.Notification
	err := s.db.GetContext(ctx, &n, s.rebind(
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`), id)
	if isNoRows(err) {
		return nil, fmt.Errorf("notification %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get notification", err)
	}
	return &n, nil
}

func (s *SQL) ListNotifications(ctx context.Context, filter model.NotificationFilter) ([]model.Notification, error) {
	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE ` + visibleTo + `
		  AND (expires_at IS NULL OR expires_at > ?)`
	args := []any{filter.UserID, now.UTC()}
	if filter.UnreadOnly {
		query += ` AND is_read = ?`
		args = append(args, false)
	}
	query += ` ORDER BY ` + priorityOrder + `, created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var list []model.Notification
	if err := s.db.SelectContext(ctx, &list, s.rebind(query), args...); err != nil {
		return nil, storageErr("list notifications", err)
	}
	return list, nil
}

func (s *SQL) MarkRead(ctx context.Context, id, userID int64, at time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE notifications SET is_read = ?, read_at = ?
		 WHERE id = ? AND `+visibleTo+` AND is_read = ?`),
		true, at.UTC(), id, userID, false,
	)
	if err != nil {
		return 0, storageErr("mark notification read", err)
	}
	return rowsAffected(result)
}

func (s *SQL) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE notifications SET is_read = ?, read_at = ?
		 WHERE `+visibleTo+` AND is_read = ?`),
		true, at.UTC(), userID, false,
	)
	if err != nil {
		return 0, storageErr("mark all notifications read", err)
	}
	return rowsAffected(result)
}

func (s *SQL) CountUnread(ctx context.Context, userID int64, now time.Time) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, s.rebind(
		`SELECT COUNT(*) FROM notifications
		 WHERE `+visibleTo+`
		   AND is_read = ?
		   AND (expires_at IS NULL OR expires_at > ?)`),
		userID, false, now.UTC(),
	)
	if err != nil {
		return 0, storageErr("count unread notifications", err)
	}
	return count, nil
}

func (s *SQL) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at < ?`),
		now.UTC(),
	)
	if err != nil {
		return 0, storageErr("delete expired notifications", err)
	}
	return rowsAffected(result)
}

type execResult interface {
	RowsAffected() (int64, error)
}

func rowsAffected(result execResult) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, storageErr("check rows affected", err)
	}
	return n, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
