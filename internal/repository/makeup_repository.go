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

// MakeupRepository persists makeup trip proposals.
type MakeupRepository struct {
	db *sqlx.DB
}

// NewMakeupRepository constructs the repository.
func NewMakeupRepository(db *sqlx.DB) *MakeupRepository {
	return &MakeupRepository{db: db}
}

// FindByID returns a proposal by identifier.
func (r *MakeupRepository) FindByID(ctx context.Context, id string) (*models.MakeupProposal, error) {
	const query = `SELECT id, group_id, family_id, proposed_date, proposed_time, makeup_type, trips_to_makeup, status, reviewed_by, review_notes, created_at, updated_at FROM makeup_proposals WHERE id = $1 LIMIT 1`
	var proposal models.MakeupProposal
	if err := r.db.GetContext(ctx, &proposal, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find makeup proposal by id: %w", err)
	}
	return &proposal, nil
}

// ListByGroup returns a group's proposals, optionally filtered by status,
// newest first.
func (r *MakeupRepository) ListByGroup(ctx context.Context, groupID string, status models.MakeupStatus) ([]models.MakeupProposal, error) {
	var proposals []models.MakeupProposal
	if status != "" {
		const query = `SELECT id, group_id, family_id, proposed_date, proposed_time, makeup_type, trips_to_makeup, status, reviewed_by, review_notes, created_at, updated_at FROM makeup_proposals WHERE group_id = $1 AND status = $2 ORDER BY created_at DESC`
		if err := r.db.SelectContext(ctx, &proposals, query, groupID, status); err != nil {
			return nil, fmt.Errorf("list makeup proposals by group: %w", err)
		}
		return proposals, nil
	}
	const query = `SELECT id, group_id, family_id, proposed_date, proposed_time, makeup_type, trips_to_makeup, status, reviewed_by, review_notes, created_at, updated_at FROM makeup_proposals WHERE group_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &proposals, query, groupID); err != nil {
		return nil, fmt.Errorf("list makeup proposals by group: %w", err)
	}
	return proposals, nil
}

// ListByFamily returns a family's proposals, newest first.
func (r *MakeupRepository) ListByFamily(ctx context.Context, familyID string) ([]models.MakeupProposal, error) {
	const query = `SELECT id, group_id, family_id, proposed_date, proposed_time, makeup_type, trips_to_makeup, status, reviewed_by, review_notes, created_at, updated_at FROM makeup_proposals WHERE family_id = $1 ORDER BY created_at DESC`
	var proposals []models.MakeupProposal
	if err := r.db.SelectContext(ctx, &proposals, query, familyID); err != nil {
		return nil, fmt.Errorf("list makeup proposals by family: %w", err)
	}
	return proposals, nil
}

// Create inserts a new proposal.
func (r *MakeupRepository) Create(ctx context.Context, proposal *models.MakeupProposal) error {
	if proposal.ID == "" {
		proposal.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = now
	}
	proposal.UpdatedAt = now
	if proposal.Status == "" {
		proposal.Status = models.MakeupStatusProposed
	}

	const query = `INSERT INTO makeup_proposals (id, group_id, family_id, proposed_date, proposed_time, makeup_type, trips_to_makeup, status, reviewed_by, review_notes, created_at, updated_at) VALUES (:id, :group_id, :family_id, :proposed_date, :proposed_time, :makeup_type, :trips_to_makeup, :status, :reviewed_by, :review_notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, proposal); err != nil {
		return fmt.Errorf("create makeup proposal: %w", err)
	}
	return nil
}

// UpdateStatus moves a proposal from one status to another outside any
// enclosing transaction.
func (r *MakeupRepository) UpdateStatus(ctx context.Context, id string, from, to models.MakeupStatus, reviewedBy *string, reviewNotes string) error {
	return r.UpdateStatusTx(ctx, r.db, id, from, to, reviewedBy, reviewNotes)
}

// UpdateStatusTx moves a proposal from one status to another, guarding
// against concurrent reviews. A zero rows-affected result surfaces as
// sql.ErrNoRows.
func (r *MakeupRepository) UpdateStatusTx(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.MakeupStatus, reviewedBy *string, reviewNotes string) error {
	const query = `UPDATE makeup_proposals SET status = $1, reviewed_by = $2, review_notes = $3, updated_at = $4 WHERE id = $5 AND status = $6`
	result, err := exec.ExecContext(ctx, query, to, reviewedBy, reviewNotes, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("update makeup proposal status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update makeup proposal status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
