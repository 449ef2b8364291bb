package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/carpool-api/internal/dto"
	"github.com/noah-isme/carpool-api/internal/models"
	"github.com/noah-isme/carpool-api/internal/service"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
	"github.com/noah-isme/carpool-api/pkg/response"
)

// GroupHandler exposes carpool group endpoints.
type GroupHandler struct {
	groups *service.GroupService
}

// NewGroupHandler constructs handler.
func NewGroupHandler(groups *service.GroupService) *GroupHandler {
	return &GroupHandler{groups: groups}
}

// Create godoc
// @Summary Register a carpool group
// @Tags Groups
// @Accept json
// @Produce json
// @Param payload body dto.CreateGroupRequest true "Group payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /groups [post]
func (h *GroupHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid group payload"))
		return
	}

	group, err := h.groups.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, group)
}

// List godoc
// @Summary List carpool groups
// @Description Without a filter, lists all groups. With mine=true, lists the caller's family memberships.
// @Tags Groups
// @Produce json
// @Param mine query bool false "Only groups the caller's family belongs to"
// @Success 200 {object} response.Envelope
// @Router /groups [get]
func (h *GroupHandler) List(c *gin.Context) {
	if c.Query("mine") == "true" {
		claims := claimsFromContext(c)
		if claims == nil || claims.FamilyID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account is not attached to a family"))
			return
		}
		groups, err := h.groups.ListForFamily(c.Request.Context(), claims.FamilyID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, groups, nil)
		return
	}

	groups, err := h.groups.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// Get godoc
// @Summary Group detail with member roster
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id} [get]
func (h *GroupHandler) Get(c *gin.Context) {
	detail, err := h.groups.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Join godoc
// @Summary Add a family to a group
// @Tags Groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body dto.JoinGroupRequest true "Join payload"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{id}/join [post]
func (h *GroupHandler) Join(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.JoinGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid join payload"))
		return
	}

	// Parents may only enrol their own family.
	if claims.Role != models.RoleAdmin && req.FamilyID != claims.FamilyID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "cannot enrol another family"))
		return
	}

	if err := h.groups.Join(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Leave godoc
// @Summary Remove a family from a group
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Param familyId path string true "Family ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id}/members/{familyId} [delete]
func (h *GroupHandler) Leave(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	familyID := c.Param("familyId")
	if claims.Role != models.RoleAdmin && familyID != claims.FamilyID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "cannot remove another family"))
		return
	}

	if err := h.groups.Leave(c.Request.Context(), c.Param("id"), familyID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
