package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/carpool-api/internal/dto"
	"github.com/noah-isme/carpool-api/internal/models"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
	"github.com/noah-isme/carpool-api/pkg/response"
)

// PreferenceService abstracts weekly preference submission for the handler.
type PreferenceService interface {
	Submit(ctx context.Context, scheduleID, familyID string, req dto.SubmitPreferencesRequest) (*dto.PreferencesResponse, error)
	Get(ctx context.Context, scheduleID, familyID string) (*dto.PreferencesResponse, error)
	ListBySchedule(ctx context.Context, scheduleID string) ([]dto.PreferencesResponse, error)
}

// PreferenceHandler exposes weekly preference endpoints.
type PreferenceHandler struct {
	preferences PreferenceService
}

// NewPreferenceHandler constructs handler.
func NewPreferenceHandler(preferences PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{preferences: preferences}
}

// Submit godoc
// @Summary Submit weekly preferences
// @Description Store a family's full-week submission. Resubmission before resolution replaces the prior one.
// @Tags Preferences
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body dto.SubmitPreferencesRequest true "Preferences payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/{id}/preferences [post]
func (h *PreferenceHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if claims.FamilyID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account is not attached to a family"))
		return
	}

	var req dto.SubmitPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preferences payload"))
		return
	}

	res, err := h.preferences.Submit(c.Request.Context(), c.Param("id"), claims.FamilyID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Get godoc
// @Summary Stored preferences for one family
// @Description Admins may inspect any family via the familyId query. Parents see their own submission.
// @Tags Preferences
// @Produce json
// @Param id path string true "Schedule ID"
// @Param familyId query string false "Family ID (admin only)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id}/preferences [get]
func (h *PreferenceHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	familyID := claims.FamilyID
	if requested := c.Query("familyId"); requested != "" && requested != familyID {
		if claims.Role != models.RoleAdmin {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "cannot read another family's preferences"))
			return
		}
		familyID = requested
	}
	if familyID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "familyId required"))
		return
	}

	res, err := h.preferences.Get(c.Request.Context(), c.Param("id"), familyID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// ListBySchedule godoc
// @Summary All submissions for a schedule
// @Tags Preferences
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/preferences/all [get]
func (h *PreferenceHandler) ListBySchedule(c *gin.Context) {
	res, err := h.preferences.ListBySchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
