package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/carpool-api/internal/models"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
)

type fairnessRepository interface {
	Snapshot(ctx context.Context, groupID string) ([]models.FairnessRecord, error)
	GetByFamily(ctx context.Context, groupID, familyID string) (*models.FairnessRecord, error)
	RecordDrivenTx(ctx context.Context, exec sqlx.ExtContext, groupID, familyID string, drivenDate time.Time) error
	RecordMissedTx(ctx context.Context, exec sqlx.ExtContext, groupID, familyID string) error
	ReverseDrivenTx(ctx context.Context, exec sqlx.ExtContext, groupID, familyID string) error
	ReverseMissedTx(ctx context.Context, exec sqlx.ExtContext, groupID, familyID string) error
	ApplyMakeupTx(ctx context.Context, exec sqlx.ExtContext, groupID, familyID string, trips int, completedDate time.Time) error
	EnsureRecord(ctx context.Context, groupID, familyID string) error
}

// FairnessService maintains per-family driving tallies. The mutating methods
// run inside the caller's transaction so a resolver run or makeup completion
// commits counters and domain rows atomically.
type FairnessService struct {
	records fairnessRepository
	logger  *zap.Logger
}

// NewFairnessService wires fairness dependencies.
func NewFairnessService(records fairnessRepository, logger *zap.Logger) *FairnessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FairnessService{records: records, logger: logger}
}

// Snapshot returns the group's fairness records ordered by family id.
func (s *FairnessService) Snapshot(ctx context.Context, groupID string) ([]models.FairnessRecord, error) {
	records, err := s.records.Snapshot(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fairness records")
	}
	return records, nil
}

// Summary aggregates a group's tallies for the admin dashboard.
func (s *FairnessService) Summary(ctx context.Context, groupID string) (*models.FairnessSummary, error) {
	records, err := s.Snapshot(ctx, groupID)
	if err != nil {
		return nil, err
	}
	summary := &models.FairnessSummary{
		GroupID:     groupID,
		Records:     records,
		GeneratedAt: time.Now().UTC(),
	}
	for i, record := range records {
		if i == 0 || record.TripsDriven > summary.MaxDriven {
			summary.MaxDriven = record.TripsDriven
		}
		if i == 0 || record.TripsDriven < summary.MinDriven {
			summary.MinDriven = record.TripsDriven
		}
	}
	return summary, nil
}

// GetByFamily returns one family's tally within a group.
func (s *FairnessService) GetByFamily(ctx context.Context, groupID, familyID string) (*models.FairnessRecord, error) {
	record, err := s.records.GetByFamily(ctx, groupID, familyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fairness record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fairness record")
	}
	return record, nil
}

// ApplyRunTx applies a resolver run's outcome inside the given transaction:
// each assigned driver gains one driven trip per day they drive, and each
// family the run marked as having skipped an owed turn gains a makeup debt.
func (s *FairnessService) ApplyRunTx(ctx context.Context, tx *sqlx.Tx, groupID string, driven map[string][]time.Time, missed []string) error {
	for familyID, dates := range driven {
		for _, date := range dates {
			if err := s.records.RecordDrivenTx(ctx, tx, groupID, familyID, date); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record driven trip")
			}
		}
	}
	for _, familyID := range missed {
		if err := s.records.RecordMissedTx(ctx, tx, groupID, familyID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record missed trip")
		}
	}
	return nil
}

// ReverseRunTx undoes a superseded run's deltas inside the given transaction
// before a force re-run applies its own.
func (s *FairnessService) ReverseRunTx(ctx context.Context, tx *sqlx.Tx, groupID string, driven []string, missed []string) error {
	for _, familyID := range driven {
		if err := s.records.ReverseDrivenTx(ctx, tx, groupID, familyID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reverse driven trip")
		}
	}
	for _, familyID := range missed {
		if err := s.records.ReverseMissedTx(ctx, tx, groupID, familyID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reverse missed trip")
		}
	}
	return nil
}

// ApplyMakeupCompletionTx settles a completed makeup inside the given
// transaction. The balance guard in the repository rejects settlements that
// exceed the family's outstanding debt.
func (s *FairnessService) ApplyMakeupCompletionTx(ctx context.Context, tx *sqlx.Tx, groupID, familyID string, trips int, completedDate time.Time) error {
	if trips <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "trips to settle must be positive")
	}
	if err := s.records.ApplyMakeupTx(ctx, tx, groupID, familyID, trips, completedDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "makeup settlement exceeds outstanding balance")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle makeup")
	}
	return nil
}

// EnsureRecord creates a zeroed tally when a family joins a group.
func (s *FairnessService) EnsureRecord(ctx context.Context, groupID, familyID string) error {
	if err := s.records.EnsureRecord(ctx, groupID, familyID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to initialize fairness record")
	}
	return nil
}
