package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/carpool-api/internal/dto"
	"github.com/noah-isme/carpool-api/internal/models"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
)

type makeupRepository interface {
	FindByID(ctx context.Context, id string) (*models.MakeupProposal, error)
	ListByGroup(ctx context.Context, groupID string, status models.MakeupStatus) ([]models.MakeupProposal, error)
	ListByFamily(ctx context.Context, familyID string) ([]models.MakeupProposal, error)
	Create(ctx context.Context, proposal *models.MakeupProposal) error
	UpdateStatus(ctx context.Context, id string, from, to models.MakeupStatus, reviewedBy *string, reviewNotes string) error
	UpdateStatusTx(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.MakeupStatus, reviewedBy *string, reviewNotes string) error
}

type makeupFairnessReader interface {
	GetByFamily(ctx context.Context, groupID, familyID string) (*models.FairnessRecord, error)
	ApplyMakeupCompletionTx(ctx context.Context, tx *sqlx.Tx, groupID, familyID string, trips int, completedDate time.Time) error
}

type makeupMembershipChecker interface {
	IsMember(ctx context.Context, groupID, familyID string) (bool, error)
}

type makeupNotifier interface {
	Emit(ctx context.Context, event models.NotificationType, familyID string, payload map[string]any)
}

// MakeupService runs the makeup proposal lifecycle: a traveling family
// proposes extra trips, an admin approves or rejects, and completion settles
// the fairness ledger.
type MakeupService struct {
	proposals makeupRepository
	fairness  makeupFairnessReader
	members   makeupMembershipChecker
	notifier  makeupNotifier
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	nowFunc   func() time.Time
}

// NewMakeupService wires makeup dependencies.
func NewMakeupService(
	proposals makeupRepository,
	fairness makeupFairnessReader,
	members makeupMembershipChecker,
	notifier makeupNotifier,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
) *MakeupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MakeupService{
		proposals: proposals,
		fairness:  fairness,
		members:   members,
		notifier:  notifier,
		tx:        tx,
		validator: validate,
		logger:    logger,
		nowFunc:   func() time.Time { return time.Now().UTC() },
	}
}

// Propose records a family's offer. The trip count must stay within the
// family's outstanding makeup balance and the date must not be in the past.
func (s *MakeupService) Propose(ctx context.Context, familyID string, req dto.ProposeMakeupRequest) (*models.MakeupProposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid makeup payload")
	}
	if !req.MakeupType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown makeup type %q", req.MakeupType))
	}
	if req.ProposedDate.Before(s.nowFunc().Truncate(24 * time.Hour)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "proposed date must not be in the past")
	}

	member, err := s.members.IsMember(ctx, req.GroupID, familyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check group membership")
	}
	if !member {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "family is not a member of this carpool group")
	}

	record, err := s.fairness.GetByFamily(ctx, req.GroupID, familyID)
	if err != nil {
		return nil, err
	}
	if req.TripsToMakeup > record.MakeupOwed {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("tripsToMakeup (%d) exceeds outstanding balance (%d)", req.TripsToMakeup, record.MakeupOwed))
	}

	proposal := &models.MakeupProposal{
		GroupID:       req.GroupID,
		FamilyID:      familyID,
		ProposedDate:  req.ProposedDate,
		ProposedTime:  req.ProposedTime,
		MakeupType:    req.MakeupType,
		TripsToMakeup: req.TripsToMakeup,
		Status:        models.MakeupStatusProposed,
	}
	if err := s.proposals.Create(ctx, proposal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create makeup proposal")
	}

	s.logger.Info("makeup proposed",
		zap.String("proposalId", proposal.ID),
		zap.String("familyId", familyID),
		zap.Int("trips", proposal.TripsToMakeup),
	)
	return proposal, nil
}

// Review applies an admin decision: PROPOSED to APPROVED or REJECTED. Any
// other transition is a conflict, and a rejected proposal is terminal.
func (s *MakeupService) Review(ctx context.Context, proposalID, reviewerID string, req dto.ReviewMakeupRequest) (*models.MakeupProposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	if req.Decision != models.MakeupStatusApproved && req.Decision != models.MakeupStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVED or REJECTED")
	}

	proposal, err := s.getProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !proposal.Status.CanTransitionTo(req.Decision) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot move proposal from %s to %s", proposal.Status, req.Decision))
	}

	if err := s.proposals.UpdateStatus(ctx, proposalID, proposal.Status, req.Decision, &reviewerID, req.Notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "proposal was reviewed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update proposal")
	}

	if s.notifier != nil {
		s.notifier.Emit(ctx, models.NotificationMakeupDecided, proposal.FamilyID, map[string]any{
			"proposalId": proposal.ID,
			"decision":   string(req.Decision),
		})
	}
	return s.getProposal(ctx, proposalID)
}

// Complete settles an approved proposal. Status flip and ledger settlement
// commit in one transaction; the balance is re-validated at completion time
// because runs between approval and completion can shrink it.
func (s *MakeupService) Complete(ctx context.Context, proposalID string) (*models.MakeupProposal, error) {
	proposal, err := s.getProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !proposal.Status.CanTransitionTo(models.MakeupStatusCompleted) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot complete proposal in status %s", proposal.Status))
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.proposals.UpdateStatusTx(ctx, tx, proposalID, models.MakeupStatusApproved, models.MakeupStatusCompleted, proposal.ReviewedBy, proposal.ReviewNotes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrConflict, "proposal was modified concurrently")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete proposal")
		return nil, err
	}
	if err = s.fairness.ApplyMakeupCompletionTx(ctx, tx, proposal.GroupID, proposal.FamilyID, proposal.TripsToMakeup, proposal.ProposedDate); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit makeup completion")
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Emit(ctx, models.NotificationMakeupDecided, proposal.FamilyID, map[string]any{
			"proposalId": proposal.ID,
			"decision":   string(models.MakeupStatusCompleted),
		})
	}
	s.logger.Info("makeup completed",
		zap.String("proposalId", proposal.ID),
		zap.String("familyId", proposal.FamilyID),
		zap.Int("trips", proposal.TripsToMakeup),
	)
	return s.getProposal(ctx, proposalID)
}

// ListByGroup returns a group's proposals, optionally filtered by status.
func (s *MakeupService) ListByGroup(ctx context.Context, groupID string, status models.MakeupStatus) ([]models.MakeupProposal, error) {
	proposals, err := s.proposals.ListByGroup(ctx, groupID, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list proposals")
	}
	return proposals, nil
}

// ListByFamily returns a family's own proposals.
func (s *MakeupService) ListByFamily(ctx context.Context, familyID string) ([]models.MakeupProposal, error) {
	proposals, err := s.proposals.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list proposals")
	}
	return proposals, nil
}

func (s *MakeupService) getProposal(ctx context.Context, id string) (*models.MakeupProposal, error) {
	proposal, err := s.proposals.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "makeup proposal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load makeup proposal")
	}
	return proposal, nil
}
