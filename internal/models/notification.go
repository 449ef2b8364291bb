package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// NotificationType enumerates the logical events the engine emits. Delivery
// (email/SMS) is an external concern; this service only records and hands
// events to a dispatcher.
type NotificationType string

const (
	NotificationAssignmentPublished NotificationType = "assignment.published"
	NotificationMakeupDecided       NotificationType = "makeup.decided"
	NotificationScheduleOpened      NotificationType = "schedule.opened"
)

// Notification is a persisted logical event addressed to a family.
type Notification struct {
	ID           string           `db:"id" json:"id"`
	Type         NotificationType `db:"type" json:"type"`
	FamilyID     string           `db:"family_id" json:"family_id"`
	Payload      types.JSONText   `db:"payload" json:"payload"`
	DispatchedAt *time.Time       `db:"dispatched_at" json:"dispatched_at,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}
