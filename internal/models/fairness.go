package models

import "time"

// FairnessRecord is the per-family, per-group running tally backing the
// resolver's tie-break comparator and the makeup balance checks. It is
// mutated only inside resolver-run and makeup-completion transactions.
type FairnessRecord struct {
	ID              string     `db:"id" json:"id"`
	GroupID         string     `db:"group_id" json:"group_id"`
	FamilyID        string     `db:"family_id" json:"family_id"`
	TripsDriven     int        `db:"trips_driven" json:"trips_driven"`
	TripsMissed     int        `db:"trips_missed" json:"trips_missed"`
	MakeupOwed      int        `db:"makeup_owed" json:"makeup_owed"`
	MakeupCompleted int        `db:"makeup_completed" json:"makeup_completed"`
	LastDrivenDate  *time.Time `db:"last_driven_date" json:"last_driven_date,omitempty"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// FairnessSummary is the admin-facing tally for one group.
type FairnessSummary struct {
	GroupID     string           `json:"group_id"`
	Records     []FairnessRecord `json:"records"`
	MaxDriven   int              `json:"max_driven"`
	MinDriven   int              `json:"min_driven"`
	GeneratedAt time.Time        `json:"generated_at"`
}
