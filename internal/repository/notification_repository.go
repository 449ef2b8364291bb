package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/carpool-api/internal/models"
)

// NotificationRepository persists outbound notification events.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification event.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO notifications (id, type, family_id, payload, dispatched_at, created_at) VALUES (:id, :type, :family_id, :payload, :dispatched_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// MarkDispatched stamps a notification as delivered.
func (r *NotificationRepository) MarkDispatched(ctx context.Context, id string) error {
	const query = `UPDATE notifications SET dispatched_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark notification dispatched: %w", err)
	}
	return nil
}

// ListByFamily returns a family's notifications, newest first.
func (r *NotificationRepository) ListByFamily(ctx context.Context, familyID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, type, family_id, payload, dispatched_at, created_at FROM notifications WHERE family_id = $1 ORDER BY created_at DESC LIMIT $2`
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, familyID, limit); err != nil {
		return nil, fmt.Errorf("list notifications by family: %w", err)
	}
	return notifications, nil
}
