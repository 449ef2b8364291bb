package dto

import "github.com/noah-isme/carpool-api/internal/models"

// ExportRequest creates an asynchronous CSV/PDF export job.
type ExportRequest struct {
	Type       models.ExportType   `json:"type" validate:"required"`
	GroupID    string              `json:"groupId" validate:"required"`
	ScheduleID *string             `json:"scheduleId"`
	Format     models.ExportFormat `json:"format" validate:"required"`
}

// ExportJobResponse acknowledges job creation.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse reports job progress and the signed result URL.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
