package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Assignment is one resolved driver/passenger allocation for one day of one
// weekly schedule. Produced only by the resolver; a re-run supersedes the
// prior run's rows wholesale, keyed by run_id.
type Assignment struct {
	ID                 string         `db:"id" json:"id"`
	ScheduleID         string         `db:"schedule_id" json:"schedule_id"`
	RunID              string         `db:"run_id" json:"run_id"`
	Date               time.Time      `db:"date" json:"date"`
	Weekday            int            `db:"weekday" json:"weekday"`
	DriverFamilyID     string         `db:"driver_family_id" json:"driver_family_id"`
	PassengerFamilyIDs types.JSONText `db:"passenger_family_ids" json:"passenger_family_ids"`
	MaxPassengers      int            `db:"max_passengers" json:"max_passengers"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
}
