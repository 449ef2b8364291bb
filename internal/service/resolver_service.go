package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/carpool-api/internal/dto"
	"github.com/noah-isme/carpool-api/internal/models"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type resolverScheduleRepo interface {
	FindByID(ctx context.Context, id string) (*models.WeeklySchedule, error)
	UpdateStatusVersioned(ctx context.Context, exec sqlx.ExtContext, id string, from, to models.WeeklyScheduleStatus, version int) error
}

type resolverPreferenceReader interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.WeeklyPreferences, error)
}

type resolverRosterReader interface {
	ListMembers(ctx context.Context, groupID string) ([]models.Family, error)
}

type resolverAssignmentRepo interface {
	DeleteByScheduleTx(ctx context.Context, tx *sqlx.Tx, scheduleID string) error
	BulkCreateTx(ctx context.Context, tx *sqlx.Tx, assignments []models.Assignment) error
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.Assignment, error)
}

type resolverFairness interface {
	Snapshot(ctx context.Context, groupID string) ([]models.FairnessRecord, error)
	ApplyRunTx(ctx context.Context, tx *sqlx.Tx, groupID string, driven map[string][]time.Time, missed []string) error
	ReverseRunTx(ctx context.Context, tx *sqlx.Tx, groupID string, driven []string, missed []string) error
}

type resolverNotifier interface {
	Emit(ctx context.Context, event models.NotificationType, familyID string, payload map[string]any)
}

// ResolverConfig governs resolver behaviour.
type ResolverConfig struct {
	IncludeLateSubmissions bool
	DefaultMaxPassengers   int
}

// ResolverService turns a closed week of preferences into daily driver and
// passenger assignments. One run covers Monday through Friday; the fairness
// comparator threads through every candidate tier so that early-week picks
// influence late-week picks.
type ResolverService struct {
	schedules   resolverScheduleRepo
	prefs       resolverPreferenceReader
	roster      resolverRosterReader
	assignments resolverAssignmentRepo
	fairness    resolverFairness
	notifier    resolverNotifier
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ResolverConfig
}

// NewResolverService wires resolver dependencies.
func NewResolverService(
	schedules resolverScheduleRepo,
	prefs resolverPreferenceReader,
	roster resolverRosterReader,
	assignments resolverAssignmentRepo,
	fairness resolverFairness,
	notifier resolverNotifier,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ResolverConfig,
) *ResolverService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultMaxPassengers <= 0 {
		cfg.DefaultMaxPassengers = 3
	}
	return &ResolverService{
		schedules:   schedules,
		prefs:       prefs,
		roster:      roster,
		assignments: assignments,
		fairness:    fairness,
		notifier:    notifier,
		tx:          tx,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// familyDayPlan is one family's decoded stance for one weekday.
type familyDayPlan struct {
	role          models.PreferredRole
	canDrive      bool
	maxPassengers int
}

// driverState is the week-shared running fairness view for one family.
type driverState struct {
	familyID   string
	driven     int
	lastDriven *time.Time
}

// Generate runs the resolver for a schedule. The schedule must be in
// PREFERENCES_CLOSED, or in ASSIGNED with force set to supersede the prior
// run. The whole run commits in one transaction; losing the optimistic
// status race reports a conflict.
func (s *ResolverService) Generate(ctx context.Context, req dto.GenerateAssignmentsRequest) (*dto.GenerateAssignmentsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}

	schedule, err := s.schedules.FindByID(ctx, req.ScheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	rerun := false
	switch schedule.Status {
	case models.ScheduleStatusPreferencesClosed:
	case models.ScheduleStatusAssigned:
		if !req.Force {
			return nil, appErrors.Clone(appErrors.ErrConflict, "schedule already assigned; use force to re-run")
		}
		rerun = true
	default:
		return nil, appErrors.Clone(appErrors.ErrConflict, "schedule is not ready for assignment")
	}

	members, err := s.roster.ListMembers(ctx, schedule.GroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group roster")
	}
	if len(members) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "carpool group has no member families")
	}

	includeLate := s.cfg.IncludeLateSubmissions
	if req.IncludeLate != nil {
		includeLate = *req.IncludeLate
	}

	plans, err := s.loadDayPlans(ctx, req.ScheduleID, includeLate)
	if err != nil {
		return nil, err
	}

	states, err := s.loadFairnessStates(ctx, schedule.GroupID, members)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	week := resolveWeek(schedule, members, plans, states, s.cfg.DefaultMaxPassengers, runID)

	var priorDriven, priorMissed []string
	if rerun {
		priorDriven, priorMissed, err = s.priorRunDeltas(ctx, req.ScheduleID, schedule, members, plans)
		if err != nil {
			return nil, err
		}
	}

	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.assignments.DeleteByScheduleTx(ctx, tx, req.ScheduleID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear prior assignments")
		return nil, err
	}
	if err = s.assignments.BulkCreateTx(ctx, tx, week.assignments); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist assignments")
		return nil, err
	}
	if rerun {
		if err = s.fairness.ReverseRunTx(ctx, tx, schedule.GroupID, priorDriven, priorMissed); err != nil {
			return nil, err
		}
	}
	if err = s.fairness.ApplyRunTx(ctx, tx, schedule.GroupID, week.driven, week.missed); err != nil {
		return nil, err
	}

	fromStatus := models.ScheduleStatusPreferencesClosed
	if rerun {
		fromStatus = models.ScheduleStatusAssigned
	}
	if err = s.schedules.UpdateStatusVersioned(ctx, tx, schedule.ID, fromStatus, models.ScheduleStatusAssigned, schedule.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrConflict, "schedule was modified by a concurrent run")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition schedule")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit resolver run")
		return nil, err
	}

	s.logger.Info("resolver run committed",
		zap.String("scheduleId", schedule.ID),
		zap.String("runId", runID),
		zap.Int("assignments", len(week.assignments)),
		zap.Strings("unassigned", week.unassigned),
		zap.Bool("rerun", rerun),
	)

	if s.notifier != nil {
		for _, family := range members {
			s.notifier.Emit(ctx, models.NotificationAssignmentPublished, family.ID, map[string]any{
				"scheduleId": schedule.ID,
				"runId":      runID,
				"weekStart":  schedule.WeekStartDate.Format("2006-01-02"),
			})
		}
	}

	return &dto.GenerateAssignmentsResponse{
		RunID:              runID,
		AssignmentsCreated: len(week.assignments),
		SlotsAssigned:      len(week.assignments),
		UnassignedSlots:    week.unassigned,
		Assignments:        week.views,
		AlgorithmSteps:     week.steps,
	}, nil
}

// ListAssignments returns the persisted assignments of a schedule decoded
// for the API.
func (s *ResolverService) ListAssignments(ctx context.Context, scheduleID string) ([]dto.DayAssignmentView, error) {
	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if schedule.Status != models.ScheduleStatusAssigned && schedule.Status != models.ScheduleStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "schedule has no published assignments yet")
	}
	stored, err := s.assignments.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	views := make([]dto.DayAssignmentView, 0, len(stored))
	for _, assignment := range stored {
		var passengers []string
		if len(assignment.PassengerFamilyIDs) > 0 {
			if err := json.Unmarshal(assignment.PassengerFamilyIDs, &passengers); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode passengers")
			}
		}
		views = append(views, dto.DayAssignmentView{
			Date:               assignment.Date,
			Weekday:            assignment.Weekday,
			DriverFamilyID:     assignment.DriverFamilyID,
			PassengerFamilyIDs: passengers,
		})
	}
	return views, nil
}

func (s *ResolverService) loadDayPlans(ctx context.Context, scheduleID string, includeLate bool) (map[string]map[int]familyDayPlan, error) {
	records, err := s.prefs.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load preferences")
	}
	plans := make(map[string]map[int]familyDayPlan, len(records))
	for _, record := range records {
		if record.IsLateSubmission && !includeLate {
			continue
		}
		var days []models.DayPreference
		if err := json.Unmarshal(record.Days, &days); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode stored preferences")
		}
		byDay := make(map[int]familyDayPlan, len(days))
		for _, day := range days {
			plan := familyDayPlan{role: day.PreferredRole, canDrive: day.CanDrive}
			if day.MaxPassengers != nil {
				plan.maxPassengers = *day.MaxPassengers
			}
			byDay[day.Weekday] = plan
		}
		plans[record.FamilyID] = byDay
	}
	return plans, nil
}

func (s *ResolverService) loadFairnessStates(ctx context.Context, groupID string, members []models.Family) (map[string]*driverState, error) {
	records, err := s.fairness.Snapshot(ctx, groupID)
	if err != nil {
		return nil, err
	}
	states := make(map[string]*driverState, len(members))
	for _, family := range members {
		states[family.ID] = &driverState{familyID: family.ID}
	}
	for _, record := range records {
		if state, ok := states[record.FamilyID]; ok {
			state.driven = record.TripsDriven
			state.lastDriven = record.LastDrivenDate
		}
	}
	return states, nil
}

// priorRunDeltas reconstructs the superseded run's fairness deltas from its
// stored assignment rows plus the same preference inputs, so a force re-run
// can reverse them before applying its own.
func (s *ResolverService) priorRunDeltas(ctx context.Context, scheduleID string, schedule *models.WeeklySchedule, members []models.Family, plans map[string]map[int]familyDayPlan) ([]string, []string, error) {
	stored, err := s.assignments.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prior assignments")
	}
	var driven, missed []string
	for _, assignment := range stored {
		driven = append(driven, assignment.DriverFamilyID)
		for _, family := range members {
			if plan, ok := plans[family.ID][assignment.Weekday]; ok && plan.role == models.RoleUnavailable {
				missed = append(missed, family.ID)
			}
		}
	}
	return driven, missed, nil
}

// weekResult is the pure output of one resolver pass over five days.
type weekResult struct {
	assignments []models.Assignment
	views       []dto.DayAssignmentView
	unassigned  []string
	steps       []dto.AlgorithmStepReport
	driven      map[string][]time.Time
	missed      []string
}

// resolveWeek runs the candidate tiers for each weekday in order. It mutates
// the passed states as days resolve, which is what makes Monday's pick count
// against Tuesday's comparator.
func resolveWeek(
	schedule *models.WeeklySchedule,
	members []models.Family,
	plans map[string]map[int]familyDayPlan,
	states map[string]*driverState,
	defaultMaxPassengers int,
	runID string,
) weekResult {
	result := weekResult{
		unassigned: make([]string, 0),
		driven:     make(map[string][]time.Time),
	}
	steps := make([]dto.AlgorithmStepReport, 5)
	steps[0] = dto.AlgorithmStepReport{Step: 1, Name: "exclude"}
	steps[1] = dto.AlgorithmStepReport{Step: 2, Name: "preferable"}
	steps[2] = dto.AlgorithmStepReport{Step: 3, Name: "less_preferable"}
	steps[3] = dto.AlgorithmStepReport{Step: 4, Name: "fill"}
	steps[4] = dto.AlgorithmStepReport{Step: 5, Name: "comparator"}

	for weekday := 1; weekday <= 5; weekday++ {
		date := schedule.WeekStartDate.AddDate(0, 0, weekday-1)

		var preferable, lessPreferable, fill []*driverState
		for _, family := range members {
			plan, submitted := plans[family.ID][weekday]
			if !submitted || plan.role == models.RoleUnavailable || !plan.canDrive {
				steps[0].SlotsExcluded++
				continue
			}
			state := states[family.ID]
			switch plan.role {
			case models.RoleDriver:
				preferable = append(preferable, state)
			case models.RoleEither:
				lessPreferable = append(lessPreferable, state)
			default:
				fill = append(fill, state)
			}
		}
		steps[0].DriversProcessed += len(members)

		var driver *driverState
		switch {
		case len(preferable) > 0:
			driver = pickDriver(preferable)
			steps[1].DriversProcessed += len(preferable)
			steps[1].SlotsResolved++
			steps[4].DriversProcessed += len(preferable)
		case len(lessPreferable) > 0:
			driver = pickDriver(lessPreferable)
			steps[2].DriversProcessed += len(lessPreferable)
			steps[2].SlotsResolved++
			steps[4].DriversProcessed += len(lessPreferable)
		case len(fill) > 0:
			driver = pickDriver(fill)
			steps[3].DriversProcessed += len(fill)
			steps[3].SlotsResolved++
			steps[4].DriversProcessed += len(fill)
		default:
			result.unassigned = append(result.unassigned, date.Format("2006-01-02"))
			continue
		}

		maxPassengers := defaultMaxPassengers
		if plan, ok := plans[driver.familyID][weekday]; ok && plan.maxPassengers > 0 {
			maxPassengers = plan.maxPassengers
		}

		var passengers, unseated []string
		for _, family := range members {
			if family.ID == driver.familyID {
				continue
			}
			if plan, ok := plans[family.ID][weekday]; ok && plan.role == models.RoleUnavailable {
				result.missed = append(result.missed, family.ID)
				continue
			}
			if len(passengers) < maxPassengers {
				passengers = append(passengers, family.ID)
			} else {
				unseated = append(unseated, family.ID)
			}
		}

		driverCopy := date
		driver.driven++
		driver.lastDriven = &driverCopy
		result.driven[driver.familyID] = append(result.driven[driver.familyID], date)

		payload, _ := json.Marshal(passengers)
		result.assignments = append(result.assignments, models.Assignment{
			ScheduleID:         schedule.ID,
			RunID:              runID,
			Date:               date,
			Weekday:            weekday,
			DriverFamilyID:     driver.familyID,
			PassengerFamilyIDs: types.JSONText(payload),
			MaxPassengers:      maxPassengers,
		})
		result.views = append(result.views, dto.DayAssignmentView{
			Date:               date,
			Weekday:            weekday,
			DriverFamilyID:     driver.familyID,
			PassengerFamilyIDs: passengers,
			PassengersUnseated: unseated,
		})
	}

	result.steps = steps
	return result
}

// pickDriver orders candidates with the shared fairness comparator: fewest
// trips driven, then oldest last-driven date with never-driven first, then
// family id ascending. Sorting the whole slice keeps the selection stable
// and free of randomness.
func pickDriver(candidates []*driverState) *driverState {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.driven != b.driven {
			return a.driven < b.driven
		}
		switch {
		case a.lastDriven == nil && b.lastDriven != nil:
			return true
		case a.lastDriven != nil && b.lastDriven == nil:
			return false
		case a.lastDriven != nil && b.lastDriven != nil && !a.lastDriven.Equal(*b.lastDriven):
			return a.lastDriven.Before(*b.lastDriven)
		}
		return a.familyID < b.familyID
	})
	return candidates[0]
}
