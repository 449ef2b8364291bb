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

type familyRepository interface {
	FindByID(ctx context.Context, id string) (*models.Family, error)
	Create(ctx context.Context, family *models.Family) error
	Update(ctx context.Context, family *models.Family) error
	AddChild(ctx context.Context, child *models.Child) error
	RemoveChild(ctx context.Context, familyID, childID string) error
	ListChildren(ctx context.Context, familyID string) ([]models.Child, error)
}

type familyUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListByFamily(ctx context.Context, familyID string) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// FamilyService manages household units and their children.
type FamilyService struct {
	families  familyRepository
	users     familyUserReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFamilyService wires family dependencies.
func NewFamilyService(families familyRepository, users familyUserReader, validate *validator.Validate, logger *zap.Logger) *FamilyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FamilyService{families: families, users: users, validator: validate, logger: logger}
}

// Create registers a family and attaches its primary parent account.
func (s *FamilyService) Create(ctx context.Context, req dto.CreateFamilyRequest) (*models.Family, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid family payload")
	}

	parent, err := s.users.FindByID(ctx, req.PrimaryParentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "primary parent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent")
	}

	family := &models.Family{
		Name:             req.Name,
		PrimaryParentID:  req.PrimaryParentID,
		Address:          req.Address,
		EmergencyContact: req.EmergencyContact,
		Active:           true,
	}
	if err := s.families.Create(ctx, family); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create family")
	}

	parent.FamilyID = &family.ID
	if err := s.users.Update(ctx, parent); err != nil {
		s.logger.Warn("failed to attach primary parent to family", zap.Error(err), zap.String("familyId", family.ID))
	}

	return family, nil
}

// Get returns a family with children and parents.
func (s *FamilyService) Get(ctx context.Context, id string) (*models.FamilyDetail, error) {
	family, err := s.families.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "family not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family")
	}

	children, err := s.families.ListChildren(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list children")
	}

	users, err := s.users.ListByFamily(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list parents")
	}
	parents := make([]models.UserInfo, 0, len(users))
	for _, user := range users {
		parents = append(parents, models.UserInfo{
			ID:       user.ID,
			Email:    user.Email,
			FullName: user.FullName,
			Role:     user.Role,
			FamilyID: user.FamilyID,
		})
	}

	return &models.FamilyDetail{Family: *family, Children: children, Parents: parents}, nil
}

// Update changes contact details. The primary parent may only be moved to
// another parent already belonging to the family.
func (s *FamilyService) Update(ctx context.Context, id string, req dto.UpdateFamilyRequest) (*models.Family, error) {
	family, err := s.families.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "family not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family")
	}

	if req.Name != nil {
		family.Name = *req.Name
	}
	if req.Address != nil {
		family.Address = *req.Address
	}
	if req.EmergencyContact != nil {
		family.EmergencyContact = *req.EmergencyContact
	}
	if req.PrimaryParentID != nil {
		if *req.PrimaryParentID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "primaryParentId cannot be cleared")
		}
		candidate, err := s.users.FindByID(ctx, *req.PrimaryParentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate primary parent not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate parent")
		}
		if candidate.FamilyID == nil || *candidate.FamilyID != id {
			return nil, appErrors.Clone(appErrors.ErrValidation, "primary parent must belong to this family")
		}
		family.PrimaryParentID = *req.PrimaryParentID
	}

	if err := s.families.Update(ctx, family); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update family")
	}
	return family, nil
}

// AddChild attaches a child to a family.
func (s *FamilyService) AddChild(ctx context.Context, familyID string, req dto.AddChildRequest) (*models.Child, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid child payload")
	}
	if _, err := s.families.FindByID(ctx, familyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "family not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family")
	}

	child := &models.Child{
		FamilyID: familyID,
		FullName: req.FullName,
		School:   req.School,
		Grade:    req.Grade,
	}
	if err := s.families.AddChild(ctx, child); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add child")
	}
	return child, nil
}

// RemoveChild detaches a child from a family.
func (s *FamilyService) RemoveChild(ctx context.Context, familyID, childID string) error {
	if err := s.families.RemoveChild(ctx, familyID, childID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "child not found in family")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove child")
	}
	return nil
}
