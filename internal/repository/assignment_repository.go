package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/carpool-api/internal/models"
)

// AssignmentRepository persists resolved trip assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// DeleteByScheduleTx removes a schedule's assignments inside the caller's
// transaction. Re-runs replace the previous run atomically.
func (r *AssignmentRepository) DeleteByScheduleTx(ctx context.Context, tx *sqlx.Tx, scheduleID string) error {
	const query = `DELETE FROM assignments WHERE schedule_id = $1`
	if _, err := tx.ExecContext(ctx, query, scheduleID); err != nil {
		return fmt.Errorf("delete assignments by schedule: %w", err)
	}
	return nil
}

// BulkCreateTx inserts a run's assignments inside the caller's transaction.
func (r *AssignmentRepository) BulkCreateTx(ctx context.Context, tx *sqlx.Tx, assignments []models.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	const query = `INSERT INTO assignments (id, schedule_id, run_id, date, weekday, driver_family_id, passenger_family_ids, max_passengers, created_at)
		VALUES (:id, :schedule_id, :run_id, :date, :weekday, :driver_family_id, :passenger_family_ids, :max_passengers, :created_at)`
	now := time.Now().UTC()
	for i := range assignments {
		if assignments[i].ID == "" {
			assignments[i].ID = uuid.NewString()
		}
		if assignments[i].CreatedAt.IsZero() {
			assignments[i].CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, assignments[i]); err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}
	}
	return nil
}

// ListBySchedule returns a schedule's assignments in weekday order.
func (r *AssignmentRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.Assignment, error) {
	const query = `SELECT id, schedule_id, run_id, date, weekday, driver_family_id, passenger_family_ids, max_passengers, created_at FROM assignments WHERE schedule_id = $1 ORDER BY weekday`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list assignments by schedule: %w", err)
	}
	return assignments, nil
}

// ListByFamily returns assignments where the family drives within a date
// range, newest first.
func (r *AssignmentRepository) ListByFamily(ctx context.Context, familyID string, from, to time.Time) ([]models.Assignment, error) {
	const query = `SELECT id, schedule_id, run_id, date, weekday, driver_family_id, passenger_family_ids, max_passengers, created_at FROM assignments WHERE driver_family_id = $1 AND date >= $2 AND date <= $3 ORDER BY date DESC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, familyID, from, to); err != nil {
		return nil, fmt.Errorf("list assignments by family: %w", err)
	}
	return assignments, nil
}
