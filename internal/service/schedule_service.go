package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/carpool-api/internal/dto"
	"github.com/noah-isme/carpool-api/internal/models"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
)

type scheduleRepository interface {
	FindByID(ctx context.Context, id string) (*models.WeeklySchedule, error)
	FindByGroupWeek(ctx context.Context, groupID string, weekStart time.Time) (*models.WeeklySchedule, error)
	ListByGroup(ctx context.Context, groupID string, limit int) ([]models.WeeklySchedule, error)
	Create(ctx context.Context, schedule *models.WeeklySchedule) error
	UpdateStatus(ctx context.Context, id string, from, to models.WeeklyScheduleStatus) error
}

type scheduleGroupReader interface {
	FindByID(ctx context.Context, id string) (*models.CarpoolGroup, error)
	ListGroupsByFamily(ctx context.Context, familyID string) ([]models.CarpoolGroup, error)
}

type scheduleCache interface {
	GetSchedules(ctx context.Context, groupID string, dest *[]models.WeeklySchedule) bool
	SetSchedules(ctx context.Context, groupID string, schedules []models.WeeklySchedule)
	InvalidateGroup(ctx context.Context, groupID string)
}

type scheduleNotifier interface {
	Emit(ctx context.Context, event models.NotificationType, familyID string, payload map[string]any)
}

type scheduleRosterReader interface {
	ListMembers(ctx context.Context, groupID string) ([]models.Family, error)
}

// ScheduleService manages the weekly schedule lifecycle around the resolver.
type ScheduleService struct {
	schedules scheduleRepository
	groups    scheduleGroupReader
	roster    scheduleRosterReader
	cache     scheduleCache
	notifier  scheduleNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService wires schedule dependencies.
func NewScheduleService(
	schedules scheduleRepository,
	groups scheduleGroupReader,
	roster scheduleRosterReader,
	cache scheduleCache,
	notifier scheduleNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		schedules: schedules,
		groups:    groups,
		roster:    roster,
		cache:     cache,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
	}
}

// Create opens a new scheduling week for a group in PREFERENCES_OPEN. The
// deadline ordering week_start < preferences_deadline < week_end is enforced
// here, and one group gets at most one schedule per week start.
func (s *ScheduleService) Create(ctx context.Context, req dto.CreateScheduleRequest, createdBy string) (*models.WeeklySchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if !req.WeekEndDate.After(req.WeekStartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "weekEndDate must be after weekStartDate")
	}
	if req.PreferencesDeadline.Before(req.WeekStartDate) || req.PreferencesDeadline.After(req.WeekEndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "preferencesDeadline must fall within the week")
	}
	if req.SwapsDeadline.Before(req.PreferencesDeadline) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "swapsDeadline must not precede preferencesDeadline")
	}

	if _, err := s.groups.FindByID(ctx, req.GroupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "carpool group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	if existing, err := s.schedules.FindByGroupWeek(ctx, req.GroupID, req.WeekStartDate); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a schedule already exists for this group and week")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing schedule")
	}

	schedule := &models.WeeklySchedule{
		GroupID:             req.GroupID,
		WeekStartDate:       req.WeekStartDate,
		WeekEndDate:         req.WeekEndDate,
		Status:              models.ScheduleStatusPreferencesOpen,
		PreferencesDeadline: req.PreferencesDeadline,
		SwapsDeadline:       req.SwapsDeadline,
		CreatedBy:           createdBy,
	}
	if err := s.schedules.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}

	if s.cache != nil {
		s.cache.InvalidateGroup(ctx, req.GroupID)
	}
	if s.notifier != nil && s.roster != nil {
		if members, err := s.roster.ListMembers(ctx, req.GroupID); err == nil {
			for _, family := range members {
				s.notifier.Emit(ctx, models.NotificationScheduleOpened, family.ID, map[string]any{
					"scheduleId": schedule.ID,
					"weekStart":  schedule.WeekStartDate.Format("2006-01-02"),
					"deadline":   schedule.PreferencesDeadline.Format(time.RFC3339),
				})
			}
		}
	}

	s.logger.Info("schedule created",
		zap.String("scheduleId", schedule.ID),
		zap.String("groupId", schedule.GroupID),
		zap.Time("weekStart", schedule.WeekStartDate),
	)
	return schedule, nil
}

// Get returns one schedule.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.WeeklySchedule, error) {
	schedule, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return schedule, nil
}

// ListByGroup returns a group's schedules, cache-first.
func (s *ScheduleService) ListByGroup(ctx context.Context, groupID string, limit int) ([]models.WeeklySchedule, error) {
	if s.cache != nil {
		var cached []models.WeeklySchedule
		if s.cache.GetSchedules(ctx, groupID, &cached) {
			return cached, nil
		}
	}
	schedules, err := s.schedules.ListByGroup(ctx, groupID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	if s.cache != nil {
		s.cache.SetSchedules(ctx, groupID, schedules)
	}
	return schedules, nil
}

// ListForFamily returns schedules across every group the family belongs to.
func (s *ScheduleService) ListForFamily(ctx context.Context, familyID string, limit int) ([]models.WeeklySchedule, error) {
	groups, err := s.groups.ListGroupsByFamily(ctx, familyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list family groups")
	}
	var result []models.WeeklySchedule
	for _, group := range groups {
		schedules, err := s.ListByGroup(ctx, group.ID, limit)
		if err != nil {
			return nil, err
		}
		result = append(result, schedules...)
	}
	return result, nil
}

// Transition moves a schedule strictly forward through its lifecycle. The
// resolver owns the PREFERENCES_CLOSED to ASSIGNED step; this method handles
// the admin-driven close and complete steps.
func (s *ScheduleService) Transition(ctx context.Context, id string, next models.WeeklyScheduleStatus) (*models.WeeklySchedule, error) {
	schedule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if next == models.ScheduleStatusAssigned {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignment happens through a resolver run, not a manual transition")
	}
	if !schedule.Status.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot move schedule from %s to %s", schedule.Status, next))
	}
	if err := s.schedules.UpdateStatus(ctx, id, schedule.Status, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "schedule was modified concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition schedule")
	}
	if s.cache != nil {
		s.cache.InvalidateGroup(ctx, schedule.GroupID)
	}
	return s.Get(ctx, id)
}
