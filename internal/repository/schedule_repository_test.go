package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/carpool-api/internal/models"
)

func newScheduleMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScheduleRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newScheduleMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec("INSERT INTO weekly_schedules").
		WillReturnResult(sqlmock.NewResult(1, 1))

	schedule := &models.WeeklySchedule{
		GroupID:       "group-1",
		WeekStartDate: time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		WeekEndDate:   time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC),
		Status:        models.ScheduleStatusPreferencesOpen,
		CreatedBy:     "admin-1",
	}
	require.NoError(t, repo.Create(context.Background(), schedule))
	assert.NotEmpty(t, schedule.ID)
	assert.Equal(t, 1, schedule.Version)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "group_id", "week_start_date", "week_end_date", "status", "preferences_deadline", "swaps_deadline", "version", "created_by", "created_at", "updated_at"}).
		AddRow(schedule.ID, "group-1", schedule.WeekStartDate, schedule.WeekEndDate, "PREFERENCES_OPEN", now, now, 1, "admin-1", now, now)
	mock.ExpectQuery("SELECT (.+) FROM weekly_schedules WHERE id").
		WithArgs(schedule.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusPreferencesOpen, found.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryUpdateStatusVersionedConflict(t *testing.T) {
	db, mock, cleanup := newScheduleMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec("UPDATE weekly_schedules SET status").
		WithArgs("ASSIGNED", sqlmock.AnyArg(), "sched-1", "PREFERENCES_CLOSED", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatusVersioned(context.Background(), db, "sched-1", models.ScheduleStatusPreferencesClosed, models.ScheduleStatusAssigned, 3)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryUpdateStatusVersionedSuccess(t *testing.T) {
	db, mock, cleanup := newScheduleMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec("UPDATE weekly_schedules SET status").
		WithArgs("PREFERENCES_CLOSED", sqlmock.AnyArg(), "sched-1", "PREFERENCES_OPEN").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "sched-1", models.ScheduleStatusPreferencesOpen, models.ScheduleStatusPreferencesClosed)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
