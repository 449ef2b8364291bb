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

func newMakeupMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestMakeupRepositoryCreateDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newMakeupMock(t)
	defer cleanup()
	repo := NewMakeupRepository(db)

	mock.ExpectExec("INSERT INTO makeup_proposals").
		WillReturnResult(sqlmock.NewResult(1, 1))

	proposal := &models.MakeupProposal{
		GroupID:       "group-1",
		FamilyID:      "family-a",
		ProposedDate:  time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		ProposedTime:  "08:00",
		MakeupType:    models.MakeupTypeWeekendTrip,
		TripsToMakeup: 1,
	}
	require.NoError(t, repo.Create(context.Background(), proposal))
	assert.Equal(t, models.MakeupStatusProposed, proposal.Status)
	assert.NotEmpty(t, proposal.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMakeupRepositoryUpdateStatusGuardsCurrentState(t *testing.T) {
	db, mock, cleanup := newMakeupMock(t)
	defer cleanup()
	repo := NewMakeupRepository(db)

	reviewer := "admin-1"
	mock.ExpectExec("UPDATE makeup_proposals SET status").
		WithArgs("APPROVED", "admin-1", "looks good", sqlmock.AnyArg(), "prop-1", "PROPOSED").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "prop-1", models.MakeupStatusProposed, models.MakeupStatusApproved, &reviewer, "looks good")
	require.NoError(t, err)

	mock.ExpectExec("UPDATE makeup_proposals SET status").
		WithArgs("APPROVED", "admin-1", "", sqlmock.AnyArg(), "prop-2", "PROPOSED").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateStatusTx(context.Background(), db, "prop-2", models.MakeupStatusProposed, models.MakeupStatusApproved, &reviewer, "")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
