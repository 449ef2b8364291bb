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

// PreferenceRepository persists weekly trip preferences.
type PreferenceRepository struct {
	db *sqlx.DB
}

// NewPreferenceRepository constructs the repository.
func NewPreferenceRepository(db *sqlx.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Upsert stores a family's preferences for a schedule. Resubmitting before
// the deadline overwrites the previous submission in place.
func (r *PreferenceRepository) Upsert(ctx context.Context, prefs *models.WeeklyPreferences) error {
	if prefs.ID == "" {
		prefs.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if prefs.SubmittedAt.IsZero() {
		prefs.SubmittedAt = now
	}
	prefs.UpdatedAt = now

	const query = `INSERT INTO weekly_preferences (id, schedule_id, family_id, days, is_late_submission, submitted_at, updated_at)
		VALUES (:id, :schedule_id, :family_id, :days, :is_late_submission, :submitted_at, :updated_at)
		ON CONFLICT (schedule_id, family_id) DO UPDATE
		SET days = EXCLUDED.days, is_late_submission = EXCLUDED.is_late_submission, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, prefs); err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

// GetByFamilySchedule returns the preferences one family submitted for a
// schedule.
func (r *PreferenceRepository) GetByFamilySchedule(ctx context.Context, scheduleID, familyID string) (*models.WeeklyPreferences, error) {
	const query = `SELECT id, schedule_id, family_id, days, is_late_submission, submitted_at, updated_at FROM weekly_preferences WHERE schedule_id = $1 AND family_id = $2 LIMIT 1`
	var prefs models.WeeklyPreferences
	if err := r.db.GetContext(ctx, &prefs, query, scheduleID, familyID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get preferences by family schedule: %w", err)
	}
	return &prefs, nil
}

// ListBySchedule returns every submission for a schedule ordered by family id
// so the resolver walks families deterministically.
func (r *PreferenceRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.WeeklyPreferences, error) {
	const query = `SELECT id, schedule_id, family_id, days, is_late_submission, submitted_at, updated_at FROM weekly_preferences WHERE schedule_id = $1 ORDER BY family_id`
	var prefs []models.WeeklyPreferences
	if err := r.db.SelectContext(ctx, &prefs, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list preferences by schedule: %w", err)
	}
	return prefs, nil
}

// CountBySchedule returns how many families have submitted for a schedule.
func (r *PreferenceRepository) CountBySchedule(ctx context.Context, scheduleID string) (int, error) {
	const query = `SELECT COUNT(*) FROM weekly_preferences WHERE schedule_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, scheduleID); err != nil {
		return 0, fmt.Errorf("count preferences by schedule: %w", err)
	}
	return count, nil
}
