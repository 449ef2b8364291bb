package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/carpool-api/internal/dto"
	"github.com/noah-isme/carpool-api/internal/models"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
)

type preferenceRepoStub struct {
	records map[string]*models.WeeklyPreferences
	err     error
}

func newPreferenceRepoStub() *preferenceRepoStub {
	return &preferenceRepoStub{records: map[string]*models.WeeklyPreferences{}}
}

func prefKey(scheduleID, familyID string) string {
	return scheduleID + "/" + familyID
}

func (r *preferenceRepoStub) Upsert(ctx context.Context, prefs *models.WeeklyPreferences) error {
	if r.err != nil {
		return r.err
	}
	if prefs.ID == "" {
		prefs.ID = "pref-" + prefs.FamilyID
	}
	r.records[prefKey(prefs.ScheduleID, prefs.FamilyID)] = prefs
	return nil
}

func (r *preferenceRepoStub) GetByFamilySchedule(ctx context.Context, scheduleID, familyID string) (*models.WeeklyPreferences, error) {
	record, ok := r.records[prefKey(scheduleID, familyID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return record, nil
}

func (r *preferenceRepoStub) ListBySchedule(ctx context.Context, scheduleID string) ([]models.WeeklyPreferences, error) {
	var out []models.WeeklyPreferences
	for _, record := range r.records {
		if record.ScheduleID == scheduleID {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (r *preferenceRepoStub) CountBySchedule(ctx context.Context, scheduleID string) (int, error) {
	records, _ := r.ListBySchedule(ctx, scheduleID)
	return len(records), nil
}

type scheduleReaderStub struct {
	schedule *models.WeeklySchedule
	err      error
}

func (s scheduleReaderStub) FindByID(ctx context.Context, id string) (*models.WeeklySchedule, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.schedule == nil || s.schedule.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.schedule, nil
}

type membershipStub struct {
	members map[string]bool
	err     error
}

func (m membershipStub) IsMember(ctx context.Context, groupID, familyID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.members[familyID], nil
}

func openSchedule(deadline time.Time) *models.WeeklySchedule {
	return &models.WeeklySchedule{
		ID:                  "sched-1",
		GroupID:             "group-1",
		WeekStartDate:       time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		WeekEndDate:         time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC),
		Status:              models.ScheduleStatusPreferencesOpen,
		PreferencesDeadline: deadline,
		Version:             1,
	}
}

func fullWeek(roles ...models.PreferredRole) []models.DayPreference {
	days := make([]models.DayPreference, 0, len(roles))
	for i, role := range roles {
		day := models.DayPreference{Weekday: i + 1, PreferredRole: role}
		if role == models.RoleDriver || role == models.RoleEither {
			day.CanDrive = true
		}
		if role == models.RoleDriver {
			capacity := 3
			day.MaxPassengers = &capacity
		}
		days = append(days, day)
	}
	return days
}

func newPreferenceServiceForTest(deadline time.Time) (*PreferenceService, *preferenceRepoStub) {
	repo := newPreferenceRepoStub()
	svc := NewPreferenceService(
		repo,
		scheduleReaderStub{schedule: openSchedule(deadline)},
		membershipStub{members: map[string]bool{"fam-1": true}},
		nil,
		zap.NewNop(),
	)
	return svc, repo
}

func TestPreferenceSubmitStoresWeek(t *testing.T) {
	svc, repo := newPreferenceServiceForTest(time.Now().UTC().Add(24 * time.Hour))

	req := dto.SubmitPreferencesRequest{
		Days: fullWeek(models.RoleDriver, models.RoleDriver, models.RoleEither, models.RoleEither, models.RoleUnavailable),
	}
	resp, err := svc.Submit(context.Background(), "sched-1", "fam-1", req)
	require.NoError(t, err)
	assert.Equal(t, "sched-1", resp.ScheduleID)
	assert.Equal(t, "fam-1", resp.FamilyID)
	assert.False(t, resp.IsLateSubmission)
	assert.Len(t, resp.Days, 5)

	stored, ok := repo.records[prefKey("sched-1", "fam-1")]
	require.True(t, ok)
	assert.False(t, stored.IsLateSubmission)
}

func TestPreferenceSubmitFlagsLate(t *testing.T) {
	svc, _ := newPreferenceServiceForTest(time.Now().UTC().Add(-time.Hour))

	req := dto.SubmitPreferencesRequest{
		Days: fullWeek(models.RoleDriver, models.RoleEither, models.RolePassenger, models.RoleEither, models.RoleUnavailable),
	}
	resp, err := svc.Submit(context.Background(), "sched-1", "fam-1", req)
	require.NoError(t, err)
	assert.True(t, resp.IsLateSubmission)
}

func TestPreferenceSubmitResubmissionReplaces(t *testing.T) {
	svc, repo := newPreferenceServiceForTest(time.Now().UTC().Add(24 * time.Hour))

	first := dto.SubmitPreferencesRequest{
		Days: fullWeek(models.RoleDriver, models.RoleEither, models.RoleEither, models.RolePassenger, models.RoleUnavailable),
	}
	_, err := svc.Submit(context.Background(), "sched-1", "fam-1", first)
	require.NoError(t, err)

	second := dto.SubmitPreferencesRequest{
		Days: fullWeek(models.RoleUnavailable, models.RoleEither, models.RoleEither, models.RolePassenger, models.RoleDriver),
	}
	_, err = svc.Submit(context.Background(), "sched-1", "fam-1", second)
	require.NoError(t, err)

	stored := repo.records[prefKey("sched-1", "fam-1")]
	days, err := decodeDays(stored.Days)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUnavailable, days[0].PreferredRole)
	assert.Equal(t, models.RoleDriver, days[4].PreferredRole)
}

func TestPreferenceSubmitQuotaExceeded(t *testing.T) {
	svc, _ := newPreferenceServiceForTest(time.Now().UTC().Add(24 * time.Hour))

	cases := []struct {
		name  string
		roles []models.PreferredRole
		want  string
	}{
		{
			name:  "too many preferable",
			roles: []models.PreferredRole{models.RoleDriver, models.RoleDriver, models.RolePassenger, models.RolePassenger, models.RoleEither},
			want:  "at most 3 preferable days allowed, got 4",
		},
		{
			name:  "too many less preferable",
			roles: []models.PreferredRole{models.RoleEither, models.RoleEither, models.RoleEither, models.RoleDriver, models.RoleUnavailable},
			want:  "at most 2 less_preferable days allowed, got 3",
		},
		{
			name:  "too many unavailable",
			roles: []models.PreferredRole{models.RoleUnavailable, models.RoleUnavailable, models.RoleUnavailable, models.RoleDriver, models.RoleEither},
			want:  "at most 2 unavailable days allowed, got 3",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := dto.SubmitPreferencesRequest{Days: fullWeek(tc.roles...)}
			_, err := svc.Submit(context.Background(), "sched-1", "fam-1", req)
			require.Error(t, err)
			var appErr *appErrors.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
			assert.Equal(t, tc.want, appErr.Message)
		})
	}
}

func TestPreferenceSubmitDriverOfferRequiresCapacity(t *testing.T) {
	svc, _ := newPreferenceServiceForTest(time.Now().UTC().Add(24 * time.Hour))

	cases := []struct {
		name     string
		capacity *int
	}{
		{name: "missing capacity", capacity: nil},
		{name: "zero capacity", capacity: func() *int { v := 0; return &v }()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			days := fullWeek(models.RoleDriver, models.RoleEither, models.RoleEither, models.RolePassenger, models.RoleUnavailable)
			days[0].MaxPassengers = tc.capacity
			_, err := svc.Submit(context.Background(), "sched-1", "fam-1", dto.SubmitPreferencesRequest{Days: days})
			require.Error(t, err)
			var appErr *appErrors.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
			assert.Equal(t, "maxPassengers must be at least 1 when offering to drive on weekday 1", appErr.Message)
		})
	}
}

func TestPreferenceSubmitDuplicateWeekday(t *testing.T) {
	svc, _ := newPreferenceServiceForTest(time.Now().UTC().Add(24 * time.Hour))

	days := fullWeek(models.RoleDriver, models.RoleEither, models.RoleEither, models.RolePassenger, models.RoleUnavailable)
	days[4].Weekday = 1
	_, err := svc.Submit(context.Background(), "sched-1", "fam-1", dto.SubmitPreferencesRequest{Days: days})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Message, "weekday 1 appears more than once")
}

func TestPreferenceSubmitRejectsNonMember(t *testing.T) {
	repo := newPreferenceRepoStub()
	svc := NewPreferenceService(
		repo,
		scheduleReaderStub{schedule: openSchedule(time.Now().UTC().Add(24 * time.Hour))},
		membershipStub{members: map[string]bool{}},
		nil,
		zap.NewNop(),
	)

	req := dto.SubmitPreferencesRequest{
		Days: fullWeek(models.RoleDriver, models.RoleEither, models.RoleEither, models.RolePassenger, models.RoleUnavailable),
	}
	_, err := svc.Submit(context.Background(), "sched-1", "fam-9", req)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestPreferenceSubmitClosedWindow(t *testing.T) {
	schedule := openSchedule(time.Now().UTC().Add(24 * time.Hour))
	schedule.Status = models.ScheduleStatusAssigned
	svc := NewPreferenceService(
		newPreferenceRepoStub(),
		scheduleReaderStub{schedule: schedule},
		membershipStub{members: map[string]bool{"fam-1": true}},
		nil,
		zap.NewNop(),
	)

	req := dto.SubmitPreferencesRequest{
		Days: fullWeek(models.RoleDriver, models.RoleEither, models.RoleEither, models.RolePassenger, models.RoleUnavailable),
	}
	_, err := svc.Submit(context.Background(), "sched-1", "fam-1", req)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestPreferenceGetNotFound(t *testing.T) {
	svc, _ := newPreferenceServiceForTest(time.Now().UTC().Add(24 * time.Hour))

	_, err := svc.Get(context.Background(), "sched-1", "fam-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestQuotaUsageCounts(t *testing.T) {
	days := fullWeek(models.RoleDriver, models.RolePassenger, models.RoleEither, models.RoleEither, models.RoleUnavailable)
	usage := QuotaUsage(days)
	assert.Equal(t, 2, usage.Preferable)
	assert.Equal(t, 2, usage.LessPreferable)
	assert.Equal(t, 1, usage.Unavailable)
}
