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

// MakeupService abstracts makeup proposal management for the handler.
type MakeupService interface {
	Propose(ctx context.Context, familyID string, req dto.ProposeMakeupRequest) (*models.MakeupProposal, error)
	Review(ctx context.Context, proposalID, reviewerID string, req dto.ReviewMakeupRequest) (*models.MakeupProposal, error)
	Complete(ctx context.Context, proposalID string) (*models.MakeupProposal, error)
	ListByGroup(ctx context.Context, groupID string, status models.MakeupStatus) ([]models.MakeupProposal, error)
	ListByFamily(ctx context.Context, familyID string) ([]models.MakeupProposal, error)
}

// MakeupHandler exposes makeup proposal endpoints.
type MakeupHandler struct {
	makeups MakeupService
}

// NewMakeupHandler constructs handler.
func NewMakeupHandler(makeups MakeupService) *MakeupHandler {
	return &MakeupHandler{makeups: makeups}
}

// Propose godoc
// @Summary Propose a makeup arrangement
// @Description A family offers to repay missed trips. The proposal starts in PROPOSED and awaits admin review.
// @Tags Makeups
// @Accept json
// @Produce json
// @Param payload body dto.ProposeMakeupRequest true "Proposal payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /makeups [post]
func (h *MakeupHandler) Propose(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if claims.FamilyID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account is not attached to a family"))
		return
	}

	var req dto.ProposeMakeupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid proposal payload"))
		return
	}

	proposal, err := h.makeups.Propose(c.Request.Context(), claims.FamilyID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, proposal)
}

// Review godoc
// @Summary Approve or reject a proposal
// @Tags Makeups
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.ReviewMakeupRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /makeups/{id}/review [put]
func (h *MakeupHandler) Review(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ReviewMakeupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	proposal, err := h.makeups.Review(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, proposal, nil)
}

// Complete godoc
// @Summary Mark an approved makeup as carried out
// @Description Settles the family's outstanding balance in the fairness ledger.
// @Tags Makeups
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /makeups/{id}/complete [put]
func (h *MakeupHandler) Complete(c *gin.Context) {
	proposal, err := h.makeups.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal, nil)
}

// List godoc
// @Summary List makeup proposals
// @Description With groupId, lists a group's proposals optionally filtered by status. Without it, lists the caller's family proposals.
// @Tags Makeups
// @Produce json
// @Param groupId query string false "Group ID"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /makeups [get]
func (h *MakeupHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if groupID := c.Query("groupId"); groupID != "" {
		proposals, err := h.makeups.ListByGroup(c.Request.Context(), groupID, models.MakeupStatus(c.Query("status")))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, proposals, nil)
		return
	}

	if claims.FamilyID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "groupId required for accounts without a family"))
		return
	}

	proposals, err := h.makeups.ListByFamily(c.Request.Context(), claims.FamilyID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposals, nil)
}
