package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/ogulcanaydogan/finalert/pkg/model"
)

// ListForUser returns active notifications owned by userID or broadcast,
// highest priority first, then newest first.
func (m *Manager) ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	list, err := m.storage.ListNotifications(ctx, model.NotificationFilter{
		UserID:     userID,
		UnreadOnly: unreadOnly,
		Limit:      limit,
		Now:        m.clock.Now(),
	})
	if err != nil {
		m.logger.Error("list notifications failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}

// MarkRead marks one notification as read for userID. Rows the user cannot
// see, or that are already read, are left alone without error.
func (m *Manager) MarkRead(ctx context.Context, id, userID int64) error {
	n, err := m.storage.MarkRead(ctx, id, userID, m.clock.Now())
	if err != nil {
		m.logger.Error("mark notification read failed",
			zap.Int64("notification_id", id),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return err
	}
	m.metrics.NotificationsRead(n)
	return nil
}

// MarkAllRead marks every unread notification visible to userID as read and
// returns how many changed.
func (m *Manager) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	n, err := m.storage.MarkAllRead(ctx, userID, m.clock.Now())
	if err != nil {
		m.logger.Error("mark all notifications read failed", zap.Int64("user_id", userID), zap.Error(err))
		return 0, err
	}
	m.metrics.NotificationsRead(n)
	return n, nil
}

// UnreadCount returns the badge count for userID. Storage failures are
// logged and reported as zero.
func (m *Manager) UnreadCount(ctx context.Context, userID int64) int64 {
	n, err := m.storage.CountUnread(ctx, userID, m.clock.Now())
	return orZero(m.logger, "count unread notifications", n, err, zap.Int64("user_id", userID))
}

// CleanupExpired deletes notifications past their expiry and returns how many
// went. Storage failures are logged and reported as zero.
func (m *Manager) CleanupExpired(ctx context.Context) int64 {
	n, err := m.storage.DeleteExpired(ctx, m.clock.Now())
	n = orZero(m.logger, "cleanup expired notifications", n, err)
	if n > 0 {
		m.logger.Info("expired notifications removed", zap.Int64("count", n))
	}
	return n
}

// orZero degrades a failed read path to the zero value of T.
func orZero[T any](logger *zap.Logger, op string, v T, err error, fields ...zap.Field) T {
	if err == nil {
		return v
	}
	logger.Warn(op+" failed", append(fields, zap.Error(err))...)
	var zero T
	return zero
}
