package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/carpool-api/internal/models"
)

// FairnessRepository persists per-family fairness counters.
type FairnessRepository struct {
	db *sqlx.DB
}

// NewFairnessRepository constructs the repository.
func NewFairnessRepository(db *sqlx.DB) *FairnessRepository {
	return &FairnessRepository{db: db}
}

// Snapshot returns the group's fairness records ordered by family id. The
// ordering matters: it is the final tie-break when selecting drivers.
func (r *FairnessRepository) Snapshot(ctx context.Context, groupID string) ([]models.FairnessRecord, error) {
	const query = `SELECT id, group_id, family_id, trips_driven, trips_missed, makeup_owed, makeup_completed, last_driven_date, updated_at FROM fairness_records WHERE group_id = $1 ORDER BY family_id`
	var records []models.FairnessRecord
	if err := r.db.SelectContext(ctx, &records, query, groupID); err != nil {
		return nil, fmt.Errorf("snapshot fairness records: %w", err)
	}
	return records, nil
}

// GetByFamily returns one family's fairness record inside a group.
func (r *FairnessRepository) GetByFamily(ctx context.Context, groupID, familyID string) (*models.FairnessRecord, error) {
	const query = `SELECT id, group_id, family_id, trips_driven, trips_missed, makeup_owed, makeup_completed, last_driven_date, updated_at FROM fairness_records WHERE group_id = $1 AND family_id = $2 LIMIT 1`
	var record models.FairnessRecord
	if err := r.db.GetContext(ctx, &record, query, groupID, familyID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get fairness record: %w", err)
	}
	return &record, nil
}

// RecordDrivenTx increments trips_driven and advances last_driven_date for a
// family inside the caller's transaction, creating the record when the family
// has no counters yet.
func (r *FairnessRepository) RecordDrivenTx(ctx context.Context, exec sqlx.ExtContext, groupID, familyID string, drivenDate time.Time) error {
	const query = `INSERT INTO fairness_records (id, group_id, family_id, trips_driven, trips_missed, makeup_owed, makeup_completed, last_driven_date, updated_at)
		VALUES ($1, $2, $3, 1, 0, 0, 0, $4, $5)
		ON CONFLICT (group_id, family_id) DO UPDATE
		SET trips_driven = fairness_records.trips_driven + 1,
		    last_driven_date = GREATEST(COALESCE(fairness_records.last_driven_date, EXCLUDED.last_driven_date), EXCLUDED.last_driven_date),
		    updated_at = EXCLUDED.updated_at`
	if _, err := exec.ExecContext(ctx, query, uuid.NewString(), groupID, familyID, drivenDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("record driven trip: %w", err)
	}
	return nil
}

// RecordMissedTx increments trips_missed and makeup_owed for a family inside
// the caller's transaction.
func (r *FairnessRepository) RecordMissedTx(ctx context.Context, exec sqlx.ExtContext, groupID, familyID string) error {
	const query = `INSERT INTO fairness_records (id, group_id, family_id, trips_driven, trips_missed, makeup_owed, makeup_completed, updated_at)
		VALUES ($1, $2, $3, 0, 1, 1, 0, $4)
		ON CONFLICT (group_id, family_id) DO UPDATE
		SET trips_missed = fairness_records.trips_missed + 1,
		    makeup_owed = fairness_records.makeup_owed + 1,
		    updated_at = EXCLUDED.updated_at`
	if _, err := exec.ExecContext(ctx, query, uuid.NewString(), groupID, familyID, time.Now().UTC()); err != nil {
		return fmt.Errorf("record missed trip: %w", err)
	}
	return nil
}

// ReverseDrivenTx undoes one driven-trip increment when a force re-run
// supersedes a prior run. last_driven_date is left as is; the next run
// rewrites it.
func (r *FairnessRepository) ReverseDrivenTx(ctx context.Context, exec sqlx.ExtContext, groupID, familyID string) error {
	const query = `UPDATE fairness_records
		SET trips_driven = GREATEST(trips_driven - 1, 0), updated_at = $1
		WHERE group_id = $2 AND family_id = $3`
	if _, err := exec.ExecContext(ctx, query, time.Now().UTC(), groupID, familyID); err != nil {
		return fmt.Errorf("reverse driven trip: %w", err)
	}
	return nil
}

// ReverseMissedTx undoes one missed-trip increment when a force re-run
// supersedes a prior run.
func (r *FairnessRepository) ReverseMissedTx(ctx context.Context, exec sqlx.ExtContext, groupID, familyID string) error {
	const query = `UPDATE fairness_records
		SET trips_missed = GREATEST(trips_missed - 1, 0),
		    makeup_owed = GREATEST(makeup_owed - 1, 0),
		    updated_at = $1
		WHERE group_id = $2 AND family_id = $3`
	if _, err := exec.ExecContext(ctx, query, time.Now().UTC(), groupID, familyID); err != nil {
		return fmt.Errorf("reverse missed trip: %w", err)
	}
	return nil
}

// ApplyMakeupTx settles a completed makeup inside the caller's transaction:
// owed trips drop, completed and driven trips rise.
func (r *FairnessRepository) ApplyMakeupTx(ctx context.Context, exec sqlx.ExtContext, groupID, familyID string, trips int, completedDate time.Time) error {
	const query = `UPDATE fairness_records
		SET makeup_owed = makeup_owed - $1,
		    makeup_completed = makeup_completed + $1,
		    trips_driven = trips_driven + $1,
		    last_driven_date = GREATEST(COALESCE(last_driven_date, $2), $2),
		    updated_at = $3
		WHERE group_id = $4 AND family_id = $5 AND makeup_owed >= $1`
	result, err := exec.ExecContext(ctx, query, trips, completedDate, time.Now().UTC(), groupID, familyID)
	if err != nil {
		return fmt.Errorf("apply makeup completion: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply makeup completion rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// EnsureRecord creates a zeroed fairness record when a family joins a group.
func (r *FairnessRepository) EnsureRecord(ctx context.Context, groupID, familyID string) error {
	const query = `INSERT INTO fairness_records (id, group_id, family_id, trips_driven, trips_missed, makeup_owed, makeup_completed, updated_at)
		VALUES ($1, $2, $3, 0, 0, 0, 0, $4)
		ON CONFLICT (group_id, family_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), groupID, familyID, time.Now().UTC()); err != nil {
		return fmt.Errorf("ensure fairness record: %w", err)
	}
	return nil
}
