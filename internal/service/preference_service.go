package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/carpool-api/internal/dto"
	"github.com/noah-isme/carpool-api/internal/models"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
)

type preferenceRepository interface {
	Upsert(ctx context.Context, prefs *models.WeeklyPreferences) error
	GetByFamilySchedule(ctx context.Context, scheduleID, familyID string) (*models.WeeklyPreferences, error)
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.WeeklyPreferences, error)
	CountBySchedule(ctx context.Context, scheduleID string) (int, error)
}

type preferenceScheduleReader interface {
	FindByID(ctx context.Context, id string) (*models.WeeklySchedule, error)
}

type preferenceMembershipChecker interface {
	IsMember(ctx context.Context, groupID, familyID string) (bool, error)
}

// PreferenceService validates and stores weekly trip preferences.
type PreferenceService struct {
	prefs     preferenceRepository
	schedules preferenceScheduleReader
	members   preferenceMembershipChecker
	validator *validator.Validate
	logger    *zap.Logger
	nowFunc   func() time.Time
}

// NewPreferenceService wires preference dependencies.
func NewPreferenceService(
	prefs preferenceRepository,
	schedules preferenceScheduleReader,
	members preferenceMembershipChecker,
	validate *validator.Validate,
	logger *zap.Logger,
) *PreferenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferenceService{
		prefs:     prefs,
		schedules: schedules,
		members:   members,
		validator: validate,
		logger:    logger,
		nowFunc:   func() time.Time { return time.Now().UTC() },
	}
}

// Submit stores a family's preferences for a schedule. The submission must
// cover each weekday exactly once and respect the weekly quota: at most 3
// preferable days, at most 2 less-preferable days, at most 2 unavailable
// days. Submissions after the deadline are accepted but flagged late.
func (s *PreferenceService) Submit(ctx context.Context, scheduleID, familyID string, req dto.SubmitPreferencesRequest) (*dto.PreferencesResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preferences payload")
	}

	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if schedule.Status != models.ScheduleStatusPreferencesOpen && schedule.Status != models.ScheduleStatusPreferencesClosed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "schedule no longer accepts preference submissions")
	}

	member, err := s.members.IsMember(ctx, schedule.GroupID, familyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check group membership")
	}
	if !member {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "family is not a member of this carpool group")
	}

	if err := validateDayPreferences(req.Days); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req.Days)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode preferences")
	}

	now := s.nowFunc()
	record := &models.WeeklyPreferences{
		ScheduleID:       scheduleID,
		FamilyID:         familyID,
		Days:             types.JSONText(payload),
		IsLateSubmission: now.After(schedule.PreferencesDeadline),
		SubmittedAt:      now,
	}
	if err := s.prefs.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store preferences")
	}

	s.logger.Info("preferences submitted",
		zap.String("scheduleId", scheduleID),
		zap.String("familyId", familyID),
		zap.Bool("late", record.IsLateSubmission),
	)

	return &dto.PreferencesResponse{
		ID:               record.ID,
		ScheduleID:       record.ScheduleID,
		FamilyID:         record.FamilyID,
		Days:             req.Days,
		IsLateSubmission: record.IsLateSubmission,
		SubmittedAt:      record.SubmittedAt,
	}, nil
}

// Get returns one family's stored submission for a schedule.
func (s *PreferenceService) Get(ctx context.Context, scheduleID, familyID string) (*dto.PreferencesResponse, error) {
	record, err := s.prefs.GetByFamilySchedule(ctx, scheduleID, familyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "preferences not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}
	days, err := decodeDays(record.Days)
	if err != nil {
		return nil, err
	}
	return &dto.PreferencesResponse{
		ID:               record.ID,
		ScheduleID:       record.ScheduleID,
		FamilyID:         record.FamilyID,
		Days:             days,
		IsLateSubmission: record.IsLateSubmission,
		SubmittedAt:      record.SubmittedAt,
	}, nil
}

// ListBySchedule returns every submission for a schedule, admins only.
func (s *PreferenceService) ListBySchedule(ctx context.Context, scheduleID string) ([]dto.PreferencesResponse, error) {
	records, err := s.prefs.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list preferences")
	}
	result := make([]dto.PreferencesResponse, 0, len(records))
	for _, record := range records {
		days, err := decodeDays(record.Days)
		if err != nil {
			return nil, err
		}
		result = append(result, dto.PreferencesResponse{
			ID:               record.ID,
			ScheduleID:       record.ScheduleID,
			FamilyID:         record.FamilyID,
			Days:             days,
			IsLateSubmission: record.IsLateSubmission,
			SubmittedAt:      record.SubmittedAt,
		})
	}
	return result, nil
}

// QuotaUsage computes the category counts for a set of day preferences.
func QuotaUsage(days []models.DayPreference) dto.PreferenceQuotaUsage {
	var usage dto.PreferenceQuotaUsage
	for _, day := range days {
		switch day.PreferredRole.Category() {
		case models.CategoryPreferable:
			usage.Preferable++
		case models.CategoryLessPreferable:
			usage.LessPreferable++
		case models.CategoryUnavailable:
			usage.Unavailable++
		}
	}
	return usage
}

func validateDayPreferences(days []models.DayPreference) error {
	seen := make(map[int]bool, 5)
	for _, day := range days {
		if !day.PreferredRole.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown preferred role %q for weekday %d", day.PreferredRole, day.Weekday))
		}
		if seen[day.Weekday] {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("weekday %d appears more than once", day.Weekday))
		}
		seen[day.Weekday] = true
		if day.PreferredRole == models.RoleDriver && day.CanDrive {
			if day.MaxPassengers == nil || *day.MaxPassengers < 1 {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("maxPassengers must be at least 1 when offering to drive on weekday %d", day.Weekday))
			}
		}
	}
	for weekday := 1; weekday <= 5; weekday++ {
		if !seen[weekday] {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("missing preference for weekday %d", weekday))
		}
	}

	usage := QuotaUsage(days)
	if usage.Preferable > models.MaxPreferableDays {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d preferable days allowed, got %d", models.MaxPreferableDays, usage.Preferable))
	}
	if usage.LessPreferable > models.MaxLessPreferableDays {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d less_preferable days allowed, got %d", models.MaxLessPreferableDays, usage.LessPreferable))
	}
	if usage.Unavailable > models.MaxUnavailableDays {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d unavailable days allowed, got %d", models.MaxUnavailableDays, usage.Unavailable))
	}
	return nil
}

func decodeDays(raw types.JSONText) ([]models.DayPreference, error) {
	var days []models.DayPreference
	if len(raw) == 0 {
		return days, nil
	}
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode stored preferences")
	}
	return days, nil
}
