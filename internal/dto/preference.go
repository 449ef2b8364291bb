package dto

import (
	"time"

	"github.com/noah-isme/carpool-api/internal/models"
)

// SubmitPreferencesRequest carries a family's full-week submission: exactly
// one entry per weekday, Monday through Friday.
type SubmitPreferencesRequest struct {
	Days []models.DayPreference `json:"days" validate:"required,len=5,dive"`
}

// PreferencesResponse returns the stored submission with decoded day entries.
type PreferencesResponse struct {
	ID               string                 `json:"id"`
	ScheduleID       string                 `json:"schedule_id"`
	FamilyID         string                 `json:"family_id"`
	Days             []models.DayPreference `json:"days"`
	IsLateSubmission bool                   `json:"is_late_submission"`
	SubmittedAt      time.Time              `json:"submitted_at"`
}

// PreferenceQuotaUsage reports how many of each category a submission uses.
type PreferenceQuotaUsage struct {
	Preferable     int `json:"preferable"`
	LessPreferable int `json:"less_preferable"`
	Unavailable    int `json:"unavailable"`
}
