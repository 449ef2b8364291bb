package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/carpool-api/internal/models"
)

func newPrefMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPreferenceRepositoryUpsertAndGet(t *testing.T) {
	db, mock, cleanup := newPrefMock(t)
	defer cleanup()
	repo := NewPreferenceRepository(db)

	mock.ExpectExec("INSERT INTO weekly_preferences").
		WithArgs(sqlmock.AnyArg(), "sched-1", "family-1", sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Upsert(context.Background(), &models.WeeklyPreferences{
		ScheduleID: "sched-1",
		FamilyID:   "family-1",
		Days:       types.JSONText(`[]`),
	})
	require.NoError(t, err)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "schedule_id", "family_id", "days", "is_late_submission", "submitted_at", "updated_at"}).
		AddRow("pref-1", "sched-1", "family-1", `[]`, false, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, schedule_id, family_id, days, is_late_submission, submitted_at, updated_at FROM weekly_preferences WHERE schedule_id = $1 AND family_id = $2")).
		WithArgs("sched-1", "family-1").
		WillReturnRows(rows)

	prefs, err := repo.GetByFamilySchedule(context.Background(), "sched-1", "family-1")
	require.NoError(t, err)
	assert.Equal(t, "pref-1", prefs.ID)
	assert.False(t, prefs.IsLateSubmission)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceRepositoryListBySchedule(t *testing.T) {
	db, mock, cleanup := newPrefMock(t)
	defer cleanup()
	repo := NewPreferenceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "schedule_id", "family_id", "days", "is_late_submission", "submitted_at", "updated_at"}).
		AddRow("pref-1", "sched-1", "family-1", `[]`, false, now, now).
		AddRow("pref-2", "sched-1", "family-2", `[]`, true, now, now)
	mock.ExpectQuery("SELECT (.+) FROM weekly_preferences WHERE schedule_id").
		WithArgs("sched-1").
		WillReturnRows(rows)

	prefs, err := repo.ListBySchedule(context.Background(), "sched-1")
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	assert.Equal(t, "family-1", prefs[0].FamilyID)
	assert.True(t, prefs[1].IsLateSubmission)
	assert.NoError(t, mock.ExpectationsWereMet())
}
