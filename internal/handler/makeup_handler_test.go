package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/carpool-api/internal/dto"
	"github.com/noah-isme/carpool-api/internal/models"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
)

type makeupServiceMock struct {
	proposeFamilyID string
	reviewerID      string
	listGroupID     string
	listStatus      models.MakeupStatus
	listFamilyID    string
	proposal        *models.MakeupProposal
	list            []models.MakeupProposal
	err             error
}

func (m *makeupServiceMock) Propose(ctx context.Context, familyID string, req dto.ProposeMakeupRequest) (*models.MakeupProposal, error) {
	m.proposeFamilyID = familyID
	return m.proposal, m.err
}

func (m *makeupServiceMock) Review(ctx context.Context, proposalID, reviewerID string, req dto.ReviewMakeupRequest) (*models.MakeupProposal, error) {
	m.reviewerID = reviewerID
	return m.proposal, m.err
}

func (m *makeupServiceMock) Complete(ctx context.Context, proposalID string) (*models.MakeupProposal, error) {
	return m.proposal, m.err
}

func (m *makeupServiceMock) ListByGroup(ctx context.Context, groupID string, status models.MakeupStatus) ([]models.MakeupProposal, error) {
	m.listGroupID = groupID
	m.listStatus = status
	return m.list, m.err
}

func (m *makeupServiceMock) ListByFamily(ctx context.Context, familyID string) ([]models.MakeupProposal, error) {
	m.listFamilyID = familyID
	return m.list, m.err
}

func TestMakeupHandlerProposeUsesCallerFamily(t *testing.T) {
	mockSvc := &makeupServiceMock{proposal: &models.MakeupProposal{ID: "mk-1", Status: models.MakeupStatusProposed}}
	handler := NewMakeupHandler(mockSvc)

	body := []byte(`{"groupId":"group-1","proposedDate":"2026-09-07T00:00:00Z","makeupType":"extra_week","tripsToMakeup":2}`)
	c, w := testContext(t, http.MethodPost, "/makeups", body, parentClaims("fam-1"))

	handler.Propose(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "fam-1", mockSvc.proposeFamilyID)
}

func TestMakeupHandlerProposeRequiresFamily(t *testing.T) {
	handler := NewMakeupHandler(&makeupServiceMock{})

	c, w := testContext(t, http.MethodPost, "/makeups", []byte(`{}`), parentClaims(""))

	handler.Propose(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestMakeupHandlerReviewPassesReviewer(t *testing.T) {
	mockSvc := &makeupServiceMock{proposal: &models.MakeupProposal{ID: "mk-1", Status: models.MakeupStatusApproved}}
	handler := NewMakeupHandler(mockSvc)

	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	c, w := testContext(t, http.MethodPut, "/makeups/mk-1/review", []byte(`{"decision":"APPROVED"}`), claims)
	c.Params = gin.Params{{Key: "id", Value: "mk-1"}}

	handler.Review(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "admin-1", mockSvc.reviewerID)
}

func TestMakeupHandlerCompletePropagatesConflict(t *testing.T) {
	mockSvc := &makeupServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "only APPROVED proposals can be completed")}
	handler := NewMakeupHandler(mockSvc)

	c, w := testContext(t, http.MethodPut, "/makeups/mk-1/complete", nil, parentClaims("fam-1"))
	c.Params = gin.Params{{Key: "id", Value: "mk-1"}}

	handler.Complete(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestMakeupHandlerListByGroupWithStatus(t *testing.T) {
	mockSvc := &makeupServiceMock{list: []models.MakeupProposal{{ID: "mk-1"}}}
	handler := NewMakeupHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/makeups?groupId=group-1&status=PROPOSED", nil, parentClaims("fam-1"))

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "group-1", mockSvc.listGroupID)
	require.Equal(t, models.MakeupStatusProposed, mockSvc.listStatus)
}

func TestMakeupHandlerListFallsBackToFamily(t *testing.T) {
	mockSvc := &makeupServiceMock{list: []models.MakeupProposal{{ID: "mk-2"}}}
	handler := NewMakeupHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/makeups", nil, parentClaims("fam-7"))

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "fam-7", mockSvc.listFamilyID)
}
