package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/carpool-api/internal/dto"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
	"github.com/noah-isme/carpool-api/pkg/response"
)

// ResolverService abstracts assignment generation for the handler.
type ResolverService interface {
	Generate(ctx context.Context, req dto.GenerateAssignmentsRequest) (*dto.GenerateAssignmentsResponse, error)
	ListAssignments(ctx context.Context, scheduleID string) ([]dto.DayAssignmentView, error)
}

// ResolverHandler exposes the weekly assignment resolver.
type ResolverHandler struct {
	resolver ResolverService
}

// NewResolverHandler constructs handler.
func NewResolverHandler(resolver ResolverService) *ResolverHandler {
	return &ResolverHandler{resolver: resolver}
}

// Generate godoc
// @Summary Run the assignment resolver for a schedule
// @Description Resolves the week's driving assignments. Requires the schedule to be in PREFERENCES_CLOSED, or force=true to supersede a prior run.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.GenerateAssignmentsRequest false "Run options"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /schedules/{id}/assignments/generate [post]
func (h *ResolverHandler) Generate(c *gin.Context) {
	var req dto.GenerateAssignmentsRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid run options"))
			return
		}
	}
	req.ScheduleID = c.Param("id")

	res, err := h.resolver.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// ListAssignments godoc
// @Summary Resolved assignments for a schedule
// @Tags Assignments
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id}/assignments [get]
func (h *ResolverHandler) ListAssignments(c *gin.Context) {
	assignments, err := h.resolver.ListAssignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}
