package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// PreferredRole states what a family offers for one weekday.
type PreferredRole string

const (
	RoleDriver      PreferredRole = "driver"
	RolePassenger   PreferredRole = "passenger"
	RoleEither      PreferredRole = "either"
	RoleUnavailable PreferredRole = "unavailable"
)

// PreferenceCategory buckets a day preference for the 3+2+2 quota rule.
type PreferenceCategory string

const (
	CategoryPreferable     PreferenceCategory = "preferable"
	CategoryLessPreferable PreferenceCategory = "less_preferable"
	CategoryUnavailable    PreferenceCategory = "unavailable"
)

// Weekly quota caps: at most 3 preferable, 2 less-preferable, 2 unavailable
// day markings per family per week.
const (
	MaxPreferableDays     = 3
	MaxLessPreferableDays = 2
	MaxUnavailableDays    = 2
)

// Category maps a preferred role onto its quota bucket. Driver and passenger
// are active offers; either is a weak offer.
func (r PreferredRole) Category() PreferenceCategory {
	switch r {
	case RoleDriver, RolePassenger:
		return CategoryPreferable
	case RoleUnavailable:
		return CategoryUnavailable
	default:
		return CategoryLessPreferable
	}
}

// Valid reports whether the role is one of the known values.
func (r PreferredRole) Valid() bool {
	switch r {
	case RoleDriver, RolePassenger, RoleEither, RoleUnavailable:
		return true
	default:
		return false
	}
}

// DayPreference is one family's stated preference for one weekday (1=Monday
// through 5=Friday) within one weekly schedule.
type DayPreference struct {
	Weekday        int           `json:"weekday" validate:"required,min=1,max=5"`
	PreferredRole  PreferredRole `json:"preferred_role" validate:"required"`
	CanDrive       bool          `json:"can_drive"`
	MaxPassengers  *int          `json:"max_passengers,omitempty" validate:"omitempty,min=1"`
	EarliestPickup string        `json:"earliest_pickup,omitempty"`
	LatestDropoff  string        `json:"latest_dropoff,omitempty"`
	Notes          string        `json:"notes,omitempty"`
}

// WeeklyPreferences is a family's full-week submission for one schedule.
// Days is persisted as JSONB; resubmission before the deadline replaces the
// prior record, resubmission after it is flagged late and kept.
type WeeklyPreferences struct {
	ID               string         `db:"id" json:"id"`
	ScheduleID       string         `db:"schedule_id" json:"schedule_id"`
	FamilyID         string         `db:"family_id" json:"family_id"`
	Days             types.JSONText `db:"days" json:"days"`
	IsLateSubmission bool           `db:"is_late_submission" json:"is_late_submission"`
	SubmittedAt      time.Time      `db:"submitted_at" json:"submitted_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}
