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

// ScheduleRepository persists weekly schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// DB exposes the underlying handle so services can open transactions that
// span multiple repositories.
func (r *ScheduleRepository) DB() *sqlx.DB {
	return r.db
}

// FindByID returns a schedule by identifier.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.WeeklySchedule, error) {
	const query = `SELECT id, group_id, week_start_date, week_end_date, status, preferences_deadline, swaps_deadline, version, created_by, created_at, updated_at FROM weekly_schedules WHERE id = $1 LIMIT 1`
	var schedule models.WeeklySchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find schedule by id: %w", err)
	}
	return &schedule, nil
}

// FindByGroupWeek returns the schedule of a group for a given week start.
func (r *ScheduleRepository) FindByGroupWeek(ctx context.Context, groupID string, weekStart time.Time) (*models.WeeklySchedule, error) {
	const query = `SELECT id, group_id, week_start_date, week_end_date, status, preferences_deadline, swaps_deadline, version, created_by, created_at, updated_at FROM weekly_schedules WHERE group_id = $1 AND week_start_date = $2 LIMIT 1`
	var schedule models.WeeklySchedule
	if err := r.db.GetContext(ctx, &schedule, query, groupID, weekStart); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find schedule by group week: %w", err)
	}
	return &schedule, nil
}

// ListByGroup returns schedules for a group, newest week first.
func (r *ScheduleRepository) ListByGroup(ctx context.Context, groupID string, limit int) ([]models.WeeklySchedule, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, group_id, week_start_date, week_end_date, status, preferences_deadline, swaps_deadline, version, created_by, created_at, updated_at FROM weekly_schedules WHERE group_id = $1 ORDER BY week_start_date DESC LIMIT $2`
	var schedules []models.WeeklySchedule
	if err := r.db.SelectContext(ctx, &schedules, query, groupID, limit); err != nil {
		return nil, fmt.Errorf("list schedules by group: %w", err)
	}
	return schedules, nil
}

// Create inserts a new schedule.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.WeeklySchedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now
	if schedule.Version == 0 {
		schedule.Version = 1
	}

	const query = `INSERT INTO weekly_schedules (id, group_id, week_start_date, week_end_date, status, preferences_deadline, swaps_deadline, version, created_by, created_at, updated_at) VALUES (:id, :group_id, :week_start_date, :week_end_date, :status, :preferences_deadline, :swaps_deadline, :version, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// UpdateStatus moves a schedule to a new status, bumping the version.
func (r *ScheduleRepository) UpdateStatus(ctx context.Context, id string, from, to models.WeeklyScheduleStatus) error {
	return r.UpdateStatusVersioned(ctx, r.db, id, from, to, 0)
}

// UpdateStatusVersioned moves a schedule from one status to another. When
// version is non-zero the update also requires the stored version to match,
// which lets the resolver serialize concurrent runs optimistically. A zero
// rows-affected result surfaces as sql.ErrNoRows so callers can map it to a
// conflict.
func (r *ScheduleRepository) UpdateStatusVersioned(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.WeeklyScheduleStatus, version int) error {
	var (
		result sql.Result
		err    error
	)
	if version > 0 {
		const query = `UPDATE weekly_schedules SET status = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND status = $4 AND version = $5`
		result, err = exec.ExecContext(ctx, query, to, time.Now().UTC(), id, from, version)
	} else {
		const query = `UPDATE weekly_schedules SET status = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND status = $4`
		result, err = exec.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	}
	if err != nil {
		return fmt.Errorf("update schedule status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update schedule status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
