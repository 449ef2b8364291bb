package models

import "time"

// CarpoolGroup is a set of families sharing school runs to one destination.
type CarpoolGroup struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	School       string    `db:"school" json:"school"`
	MeetingPoint string    `db:"meeting_point" json:"meeting_point"`
	Description  string    `db:"description" json:"description"`
	CreatedBy    string    `db:"created_by" json:"created_by"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// GroupMembership links a family to a carpool group.
type GroupMembership struct {
	ID        string    `db:"id" json:"id"`
	GroupID   string    `db:"group_id" json:"group_id"`
	FamilyID  string    `db:"family_id" json:"family_id"`
	JoinedAt  time.Time `db:"joined_at" json:"joined_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// GroupDetail bundles a group with its member families.
type GroupDetail struct {
	CarpoolGroup
	Members []Family `json:"members"`
}
