package dto

import (
	"time"

	"github.com/noah-isme/carpool-api/internal/models"
)

// ProposeMakeupRequest is a traveling family's offer to repay missed trips.
type ProposeMakeupRequest struct {
	GroupID       string            `json:"groupId" validate:"required"`
	ProposedDate  time.Time         `json:"proposedDate" validate:"required"`
	ProposedTime  string            `json:"proposedTime"`
	MakeupType    models.MakeupType `json:"makeupType" validate:"required"`
	TripsToMakeup int               `json:"tripsToMakeup" validate:"required,min=1"`
}

// ReviewMakeupRequest carries the admin decision on a proposal.
type ReviewMakeupRequest struct {
	Decision models.MakeupStatus `json:"decision" validate:"required"`
	Notes    string              `json:"notes"`
}
