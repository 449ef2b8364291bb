package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/carpool-api/internal/models"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
)

type fairnessRepoStub struct {
	records       []models.FairnessRecord
	drivenCalls   []string
	missedCalls   []string
	reversedCalls []string
	makeupErr     error
	makeupTrips   int
}

func (f *fairnessRepoStub) Snapshot(ctx context.Context, groupID string) ([]models.FairnessRecord, error) {
	return f.records, nil
}

func (f *fairnessRepoStub) GetByFamily(ctx context.Context, groupID, familyID string) (*models.FairnessRecord, error) {
	for i := range f.records {
		if f.records[i].FamilyID == familyID {
			return &f.records[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fairnessRepoStub) RecordDrivenTx(ctx context.Context, exec sqlx.ExtContext, groupID, familyID string, drivenDate time.Time) error {
	f.drivenCalls = append(f.drivenCalls, familyID)
	return nil
}

func (f *fairnessRepoStub) RecordMissedTx(ctx context.Context, exec sqlx.ExtContext, groupID, familyID string) error {
	f.missedCalls = append(f.missedCalls, familyID)
	return nil
}

func (f *fairnessRepoStub) ReverseDrivenTx(ctx context.Context, exec sqlx.ExtContext, groupID, familyID string) error {
	f.reversedCalls = append(f.reversedCalls, familyID)
	return nil
}

func (f *fairnessRepoStub) ReverseMissedTx(ctx context.Context, exec sqlx.ExtContext, groupID, familyID string) error {
	f.reversedCalls = append(f.reversedCalls, familyID)
	return nil
}

func (f *fairnessRepoStub) ApplyMakeupTx(ctx context.Context, exec sqlx.ExtContext, groupID, familyID string, trips int, completedDate time.Time) error {
	if f.makeupErr != nil {
		return f.makeupErr
	}
	f.makeupTrips += trips
	return nil
}

func (f *fairnessRepoStub) EnsureRecord(ctx context.Context, groupID, familyID string) error {
	f.records = append(f.records, models.FairnessRecord{GroupID: groupID, FamilyID: familyID})
	return nil
}

func TestFairnessSummarySpread(t *testing.T) {
	repo := &fairnessRepoStub{records: []models.FairnessRecord{
		{FamilyID: "fam-a", TripsDriven: 4},
		{FamilyID: "fam-b", TripsDriven: 1},
		{FamilyID: "fam-c", TripsDriven: 3},
	}}
	svc := NewFairnessService(repo, zap.NewNop())

	summary, err := svc.Summary(context.Background(), "group-1")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.MaxDriven)
	assert.Equal(t, 1, summary.MinDriven)
	assert.Len(t, summary.Records, 3)
	assert.False(t, summary.GeneratedAt.IsZero())
}

func TestFairnessSummaryEmptyGroup(t *testing.T) {
	svc := NewFairnessService(&fairnessRepoStub{}, zap.NewNop())

	summary, err := svc.Summary(context.Background(), "group-1")
	require.NoError(t, err)
	assert.Zero(t, summary.MaxDriven)
	assert.Zero(t, summary.MinDriven)
	assert.Empty(t, summary.Records)
}

func TestFairnessApplyRunRecordsDeltas(t *testing.T) {
	repo := &fairnessRepoStub{}
	svc := NewFairnessService(repo, zap.NewNop())

	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	driven := map[string][]time.Time{
		"fam-a": {monday, monday.AddDate(0, 0, 1)},
		"fam-b": {monday.AddDate(0, 0, 2)},
	}
	err := svc.ApplyRunTx(context.Background(), nil, "group-1", driven, []string{"fam-c", "fam-c"})
	require.NoError(t, err)
	assert.Len(t, repo.drivenCalls, 3)
	assert.Equal(t, []string{"fam-c", "fam-c"}, repo.missedCalls)
}

func TestFairnessReverseRun(t *testing.T) {
	repo := &fairnessRepoStub{}
	svc := NewFairnessService(repo, zap.NewNop())

	err := svc.ReverseRunTx(context.Background(), nil, "group-1", []string{"fam-a", "fam-a"}, []string{"fam-b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"fam-a", "fam-a", "fam-b"}, repo.reversedCalls)
}

func TestFairnessMakeupSettlement(t *testing.T) {
	repo := &fairnessRepoStub{}
	svc := NewFairnessService(repo, zap.NewNop())

	err := svc.ApplyMakeupCompletionTx(context.Background(), nil, "group-1", "fam-a", 2, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.makeupTrips)
}

func TestFairnessMakeupSettlementExceedsBalance(t *testing.T) {
	repo := &fairnessRepoStub{makeupErr: sql.ErrNoRows}
	svc := NewFairnessService(repo, zap.NewNop())

	err := svc.ApplyMakeupCompletionTx(context.Background(), nil, "group-1", "fam-a", 5, time.Now().UTC())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "outstanding balance")
}

func TestFairnessMakeupSettlementRejectsNonPositive(t *testing.T) {
	svc := NewFairnessService(&fairnessRepoStub{}, zap.NewNop())

	err := svc.ApplyMakeupCompletionTx(context.Background(), nil, "group-1", "fam-a", 0, time.Now().UTC())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
