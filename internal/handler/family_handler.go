package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/carpool-api/internal/dto"
	"github.com/noah-isme/carpool-api/internal/service"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
	"github.com/noah-isme/carpool-api/pkg/response"
)

// FamilyHandler exposes family and child management endpoints.
type FamilyHandler struct {
	families *service.FamilyService
}

// NewFamilyHandler constructs handler.
func NewFamilyHandler(families *service.FamilyService) *FamilyHandler {
	return &FamilyHandler{families: families}
}

// Create godoc
// @Summary Register a family
// @Tags Families
// @Accept json
// @Produce json
// @Param payload body dto.CreateFamilyRequest true "Family payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /families [post]
func (h *FamilyHandler) Create(c *gin.Context) {
	var req dto.CreateFamilyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid family payload"))
		return
	}

	family, err := h.families.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, family)
}

// Get godoc
// @Summary Family detail with parents and children
// @Tags Families
// @Produce json
// @Param familyId path string true "Family ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /families/{familyId} [get]
func (h *FamilyHandler) Get(c *gin.Context) {
	detail, err := h.families.Get(c.Request.Context(), c.Param("familyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Update godoc
// @Summary Update family contact details
// @Tags Families
// @Accept json
// @Produce json
// @Param familyId path string true "Family ID"
// @Param payload body dto.UpdateFamilyRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /families/{familyId} [put]
func (h *FamilyHandler) Update(c *gin.Context) {
	var req dto.UpdateFamilyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}

	family, err := h.families.Update(c.Request.Context(), c.Param("familyId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, family, nil)
}

// AddChild godoc
// @Summary Attach a child to a family
// @Tags Families
// @Accept json
// @Produce json
// @Param familyId path string true "Family ID"
// @Param payload body dto.AddChildRequest true "Child payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /families/{familyId}/children [post]
func (h *FamilyHandler) AddChild(c *gin.Context) {
	var req dto.AddChildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid child payload"))
		return
	}

	child, err := h.families.AddChild(c.Request.Context(), c.Param("familyId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, child)
}

// RemoveChild godoc
// @Summary Detach a child from a family
// @Tags Families
// @Produce json
// @Param familyId path string true "Family ID"
// @Param childId path string true "Child ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /families/{familyId}/children/{childId} [delete]
func (h *FamilyHandler) RemoveChild(c *gin.Context) {
	if err := h.families.RemoveChild(c.Request.Context(), c.Param("familyId"), c.Param("childId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
