package models

import "time"

// MakeupType classifies how a traveling family offers to repay missed trips.
type MakeupType string

const (
	MakeupTypeExtraWeek   MakeupType = "extra_week"
	MakeupTypeSplitWeeks  MakeupType = "split_weeks"
	MakeupTypeWeekendTrip MakeupType = "weekend_trip"
)

// Valid reports whether the makeup type is known.
func (t MakeupType) Valid() bool {
	switch t {
	case MakeupTypeExtraWeek, MakeupTypeSplitWeeks, MakeupTypeWeekendTrip:
		return true
	default:
		return false
	}
}

// MakeupStatus tracks the proposal lifecycle:
// PROPOSED -> APPROVED -> COMPLETED, or PROPOSED -> REJECTED (terminal).
type MakeupStatus string

const (
	MakeupStatusProposed  MakeupStatus = "PROPOSED"
	MakeupStatusApproved  MakeupStatus = "APPROVED"
	MakeupStatusRejected  MakeupStatus = "REJECTED"
	MakeupStatusCompleted MakeupStatus = "COMPLETED"
)

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (s MakeupStatus) CanTransitionTo(next MakeupStatus) bool {
	switch s {
	case MakeupStatusProposed:
		return next == MakeupStatusApproved || next == MakeupStatusRejected
	case MakeupStatusApproved:
		return next == MakeupStatusCompleted
	default:
		return false
	}
}

// MakeupProposal is a traveling family's offer to drive extra trips to
// offset missed ones.
type MakeupProposal struct {
	ID            string       `db:"id" json:"id"`
	GroupID       string       `db:"group_id" json:"group_id"`
	FamilyID      string       `db:"family_id" json:"family_id"`
	ProposedDate  time.Time    `db:"proposed_date" json:"proposed_date"`
	ProposedTime  string       `db:"proposed_time" json:"proposed_time"`
	MakeupType    MakeupType   `db:"makeup_type" json:"makeup_type"`
	TripsToMakeup int          `db:"trips_to_makeup" json:"trips_to_makeup"`
	Status        MakeupStatus `db:"status" json:"status"`
	ReviewedBy    *string      `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewNotes   string       `db:"review_notes" json:"review_notes"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}
