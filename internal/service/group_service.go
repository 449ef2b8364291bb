package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/carpool-api/internal/dto"
	"github.com/noah-isme/carpool-api/internal/models"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
)

type groupRepository interface {
	FindByID(ctx context.Context, id string) (*models.CarpoolGroup, error)
	List(ctx context.Context) ([]models.CarpoolGroup, error)
	Create(ctx context.Context, group *models.CarpoolGroup) error
	AddMember(ctx context.Context, membership *models.GroupMembership) error
	RemoveMember(ctx context.Context, groupID, familyID string) error
	IsMember(ctx context.Context, groupID, familyID string) (bool, error)
	ListMembers(ctx context.Context, groupID string) ([]models.Family, error)
	ListGroupsByFamily(ctx context.Context, familyID string) ([]models.CarpoolGroup, error)
}

type groupFamilyReader interface {
	FindByID(ctx context.Context, id string) (*models.Family, error)
}

type groupFairnessInitializer interface {
	EnsureRecord(ctx context.Context, groupID, familyID string) error
}

type groupCache interface {
	InvalidateGroup(ctx context.Context, groupID string)
}

// GroupService manages carpool groups and their family rosters.
type GroupService struct {
	groups    groupRepository
	families  groupFamilyReader
	fairness  groupFairnessInitializer
	cache     groupCache
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService wires group dependencies.
func NewGroupService(
	groups groupRepository,
	families groupFamilyReader,
	fairness groupFairnessInitializer,
	cache groupCache,
	validate *validator.Validate,
	logger *zap.Logger,
) *GroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{
		groups:    groups,
		families:  families,
		fairness:  fairness,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// Create registers a carpool group.
func (s *GroupService) Create(ctx context.Context, req dto.CreateGroupRequest, createdBy string) (*models.CarpoolGroup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	group := &models.CarpoolGroup{
		Name:         req.Name,
		School:       req.School,
		MeetingPoint: req.MeetingPoint,
		Description:  req.Description,
		CreatedBy:    createdBy,
		Active:       true,
	}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}
	return group, nil
}

// List returns all active groups.
func (s *GroupService) List(ctx context.Context) ([]models.CarpoolGroup, error) {
	groups, err := s.groups.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, nil
}

// Get returns a group with its member roster.
func (s *GroupService) Get(ctx context.Context, id string) (*models.GroupDetail, error) {
	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "carpool group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	members, err := s.groups.ListMembers(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	return &models.GroupDetail{CarpoolGroup: *group, Members: members}, nil
}

// Join adds a family to a group and seeds its fairness counters. Joining
// twice is a no-op.
func (s *GroupService) Join(ctx context.Context, groupID string, req dto.JoinGroupRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid join payload")
	}
	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "carpool group not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if _, err := s.families.FindByID(ctx, req.FamilyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "family not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family")
	}

	if err := s.groups.AddMember(ctx, &models.GroupMembership{GroupID: groupID, FamilyID: req.FamilyID}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join group")
	}
	if s.fairness != nil {
		if err := s.fairness.EnsureRecord(ctx, groupID, req.FamilyID); err != nil {
			s.logger.Warn("failed to seed fairness record", zap.Error(err), zap.String("groupId", groupID), zap.String("familyId", req.FamilyID))
		}
	}
	if s.cache != nil {
		s.cache.InvalidateGroup(ctx, groupID)
	}

	s.logger.Info("family joined group", zap.String("groupId", groupID), zap.String("familyId", req.FamilyID))
	return nil
}

// Leave removes a family from a group. Fairness history is kept.
func (s *GroupService) Leave(ctx context.Context, groupID, familyID string) error {
	if err := s.groups.RemoveMember(ctx, groupID, familyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "family is not a member of this group")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to leave group")
	}
	if s.cache != nil {
		s.cache.InvalidateGroup(ctx, groupID)
	}
	return nil
}

// IsMember reports whether a family belongs to a group.
func (s *GroupService) IsMember(ctx context.Context, groupID, familyID string) (bool, error) {
	member, err := s.groups.IsMember(ctx, groupID, familyID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}
	return member, nil
}

// ListForFamily returns the groups a family belongs to.
func (s *GroupService) ListForFamily(ctx context.Context, familyID string) ([]models.CarpoolGroup, error) {
	groups, err := s.groups.ListGroupsByFamily(ctx, familyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list family groups")
	}
	return groups, nil
}
