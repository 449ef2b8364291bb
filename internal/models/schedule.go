package models

import "time"

// WeeklyScheduleStatus represents lifecycle phases for a scheduling week.
// Transitions are strictly forward; a COMPLETED schedule is immutable.
type WeeklyScheduleStatus string

const (
	ScheduleStatusPreferencesOpen   WeeklyScheduleStatus = "PREFERENCES_OPEN"
	ScheduleStatusPreferencesClosed WeeklyScheduleStatus = "PREFERENCES_CLOSED"
	ScheduleStatusAssigned          WeeklyScheduleStatus = "ASSIGNED"
	ScheduleStatusCompleted         WeeklyScheduleStatus = "COMPLETED"
)

// CanTransitionTo reports whether the status may move forward to next.
func (s WeeklyScheduleStatus) CanTransitionTo(next WeeklyScheduleStatus) bool {
	switch s {
	case ScheduleStatusPreferencesOpen:
		return next == ScheduleStatusPreferencesClosed
	case ScheduleStatusPreferencesClosed:
		return next == ScheduleStatusAssigned
	case ScheduleStatusAssigned:
		return next == ScheduleStatusCompleted
	default:
		return false
	}
}

// WeeklySchedule is one scheduling week for one carpool group. Version backs
// the optimistic concurrency check serializing resolver runs per group.
type WeeklySchedule struct {
	ID                  string               `db:"id" json:"id"`
	GroupID             string               `db:"group_id" json:"group_id"`
	WeekStartDate       time.Time            `db:"week_start_date" json:"week_start_date"`
	WeekEndDate         time.Time            `db:"week_end_date" json:"week_end_date"`
	Status              WeeklyScheduleStatus `db:"status" json:"status"`
	PreferencesDeadline time.Time            `db:"preferences_deadline" json:"preferences_deadline"`
	SwapsDeadline       time.Time            `db:"swaps_deadline" json:"swaps_deadline"`
	Version             int                  `db:"version" json:"version"`
	CreatedBy           string               `db:"created_by" json:"created_by"`
	CreatedAt           time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time            `db:"updated_at" json:"updated_at"`
}
