package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/carpool-api/internal/service"
	"github.com/noah-isme/carpool-api/pkg/response"
)

// FairnessHandler exposes fairness ledger read endpoints.
type FairnessHandler struct {
	fairness *service.FairnessService
}

// NewFairnessHandler constructs handler.
func NewFairnessHandler(fairness *service.FairnessService) *FairnessHandler {
	return &FairnessHandler{fairness: fairness}
}

// Snapshot godoc
// @Summary Per-family ledger rows for a group
// @Tags Fairness
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/fairness [get]
func (h *FairnessHandler) Snapshot(c *gin.Context) {
	records, err := h.fairness.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Summary godoc
// @Summary Aggregated fairness figures for a group
// @Tags Fairness
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/fairness/summary [get]
func (h *FairnessHandler) Summary(c *gin.Context) {
	summary, err := h.fairness.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ByFamily godoc
// @Summary One family's ledger row
// @Tags Fairness
// @Produce json
// @Param id path string true "Group ID"
// @Param familyId path string true "Family ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id}/fairness/{familyId} [get]
func (h *FairnessHandler) ByFamily(c *gin.Context) {
	record, err := h.fairness.GetByFamily(c.Request.Context(), c.Param("id"), c.Param("familyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
