package database

import (
	"context"
	"fmt"
)

// CreateNotification inserts a user-visible notification row.
func (r *Repository) CreateNotification(ctx context.Context, n *Notification) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, is_read, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		n.ID,
		n.UserID,
		n.Type,
		n.Title,
		n.Message,
		n.IsRead,
		n.Data,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications newest first.
func (r *Repository) ListNotifications(ctx context.Context, userID string, limit int) ([]*Notification, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, user_id, type, title, message, is_read, data, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Type,
			&n.Title,
			&n.Message,
			&n.IsRead,
			&n.Data,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
