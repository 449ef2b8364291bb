package dto

import (
	"time"

	"github.com/noah-isme/carpool-api/internal/models"
)

// CreateScheduleRequest opens a new scheduling week for a group.
type CreateScheduleRequest struct {
	GroupID             string    `json:"groupId" validate:"required"`
	WeekStartDate       time.Time `json:"weekStartDate" validate:"required"`
	WeekEndDate         time.Time `json:"weekEndDate" validate:"required"`
	PreferencesDeadline time.Time `json:"preferencesDeadline" validate:"required"`
	SwapsDeadline       time.Time `json:"swapsDeadline" validate:"required"`
}

// TransitionScheduleRequest moves a schedule's status strictly forward.
type TransitionScheduleRequest struct {
	Status models.WeeklyScheduleStatus `json:"status" validate:"required"`
}

// ScheduleQuery filters schedule listings.
type ScheduleQuery struct {
	GroupID string `form:"groupId" json:"groupId"`
	Status  string `form:"status" json:"status"`
}
