package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/carpool-api/internal/models"
	"github.com/noah-isme/carpool-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	MarkDispatched(ctx context.Context, id string) error
	ListByFamily(ctx context.Context, familyID string, limit int) ([]models.Notification, error)
}

// Dispatcher delivers a notification to its channel. The default dispatcher
// only logs; email and SMS transports plug in here.
type Dispatcher interface {
	Dispatch(ctx context.Context, notification models.Notification) error
}

// LogDispatcher writes notifications to the structured log.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher constructs the logging dispatcher.
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDispatcher{logger: logger}
}

// Dispatch logs the notification.
func (d *LogDispatcher) Dispatch(_ context.Context, notification models.Notification) error {
	d.logger.Info("notification dispatched",
		zap.String("id", notification.ID),
		zap.String("type", string(notification.Type)),
		zap.String("familyId", notification.FamilyID),
	)
	return nil
}

// NotificationConfig governs the notification worker.
type NotificationConfig struct {
	Enabled           bool
	WorkerConcurrency int
}

// NotificationService persists logical events and hands them to the
// dispatcher through a background queue. Emission never blocks or fails the
// calling operation.
type NotificationService struct {
	repo       notificationRepository
	dispatcher Dispatcher
	queue      *jobs.Queue
	logger     *zap.Logger
	enabled    bool
}

// NewNotificationService wires notification dependencies.
func NewNotificationService(repo notificationRepository, dispatcher Dispatcher, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dispatcher == nil {
		dispatcher = NewLogDispatcher(logger)
	}
	s := &NotificationService{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger,
		enabled:    cfg.Enabled,
	}
	s.queue = jobs.NewQueue("notifications", s.process, jobs.QueueConfig{
		Workers: cfg.WorkerConcurrency,
		Logger:  logger,
	})
	return s
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Emit records an event for a family and queues it for dispatch. Failures
// are logged, never propagated: notifications are best-effort by contract.
func (s *NotificationService) Emit(ctx context.Context, event models.NotificationType, familyID string, payload map[string]any) {
	if s == nil || !s.enabled {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to encode notification payload", zap.Error(err))
		return
	}
	notification := models.Notification{
		ID:       uuid.NewString(),
		Type:     event,
		FamilyID: familyID,
		Payload:  types.JSONText(body),
	}
	if err := s.repo.Create(ctx, &notification); err != nil {
		s.logger.Warn("failed to persist notification", zap.Error(err), zap.String("type", string(event)))
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: notification.ID, Type: string(event), Payload: notification}); err != nil {
		s.logger.Warn("failed to queue notification", zap.Error(err), zap.String("id", notification.ID))
	}
}

// ListByFamily returns a family's notifications.
func (s *NotificationService) ListByFamily(ctx context.Context, familyID string, limit int) ([]models.Notification, error) {
	return s.repo.ListByFamily(ctx, familyID, limit)
}

func (s *NotificationService) process(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Warn("unexpected notification job payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.dispatcher.Dispatch(ctx, notification); err != nil {
		return err
	}
	if err := s.repo.MarkDispatched(ctx, notification.ID); err != nil {
		s.logger.Warn("failed to mark notification dispatched", zap.Error(err), zap.String("id", notification.ID))
	}
	return nil
}
