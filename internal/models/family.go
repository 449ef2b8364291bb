package models

import "time"

// Family is a household unit and the scheduling atom: assignments, fairness
// counters, and preferences are all keyed by family, not by individual person.
type Family struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	PrimaryParentID  string    `db:"primary_parent_id" json:"primary_parent_id"`
	Address          string    `db:"address" json:"address"`
	EmergencyContact string    `db:"emergency_contact" json:"emergency_contact"`
	Active           bool      `db:"active" json:"active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Child belongs to a family and rides in its carpools.
type Child struct {
	ID        string    `db:"id" json:"id"`
	FamilyID  string    `db:"family_id" json:"family_id"`
	FullName  string    `db:"full_name" json:"full_name"`
	School    string    `db:"school" json:"school"`
	Grade     string    `db:"grade" json:"grade"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FamilyDetail bundles a family with its children and parent accounts.
type FamilyDetail struct {
	Family
	Children []Child    `json:"children"`
	Parents  []UserInfo `json:"parents"`
}
