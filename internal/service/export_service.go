package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/carpool-api/internal/dto"
	"github.com/noah-isme/carpool-api/internal/models"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
	"github.com/noah-isme/carpool-api/pkg/export"
	"github.com/noah-isme/carpool-api/pkg/jobs"
	"github.com/noah-isme/carpool-api/pkg/storage"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, job *models.ExportJob) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]models.ExportJob, error)
	Delete(ctx context.Context, id string) error
}

type exportScheduleReader interface {
	FindByID(ctx context.Context, id string) (*models.WeeklySchedule, error)
}

type exportAssignmentReader interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.Assignment, error)
}

type exportFairnessReader interface {
	Snapshot(ctx context.Context, groupID string) ([]models.FairnessRecord, error)
}

type exportRosterReader interface {
	ListMembers(ctx context.Context, groupID string) ([]models.Family, error)
	IsMember(ctx context.Context, groupID, familyID string) (bool, error)
}

type exportQueue interface {
	Enqueue(job jobs.Job) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportService owns the export job lifecycle: it validates requests,
// persists jobs, renders assignment and fairness datasets to CSV or PDF,
// and serves signed downloads for the results.
type ExportService struct {
	repo        exportJobStore
	schedules   exportScheduleReader
	assignments exportAssignmentReader
	fairness    exportFairnessReader
	roster      exportRosterReader
	queue       exportQueue
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs the export service.
func NewExportService(repo exportJobStore, schedules exportScheduleReader, assignments exportAssignmentReader, fairness exportFairnessReader, roster exportRosterReader, queue exportQueue, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		repo:        repo,
		schedules:   schedules,
		assignments: assignments,
		fairness:    fairness,
		roster:      roster,
		queue:       queue,
		storage:     store,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// CreateJob validates the request, persists the job, and enqueues processing.
func (s *ExportService) CreateJob(ctx context.Context, req dto.ExportRequest, actorID string, role models.UserRole, familyID *string) (*dto.ExportJobResponse, error) {
	if err := s.validateRequest(ctx, req, role, familyID); err != nil {
		return nil, err
	}
	job := &models.ExportJob{
		Type:      req.Type,
		Params:    models.ExportJobParams{GroupID: req.GroupID, ScheduleID: req.ScheduleID, Format: req.Format},
		Status:    models.ExportStatusQueued,
		Progress:  0,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		now := time.Now().UTC()
		msg := "failed to enqueue job"
		job.Status = models.ExportStatusFailed
		job.Progress = 100
		job.ErrorMessage = &msg
		job.FinishedAt = &now
		_ = s.repo.Update(ctx, job)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata to clients, enforcing ownership for parents.
func (s *ExportService) GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*dto.ExportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if role != models.RoleAdmin && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}
	resp := &dto.ExportStatusResponse{
		ID:       job.ID,
		Status:   job.Status,
		Progress: job.Progress,
	}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ListJobs returns the caller's export jobs, newest first.
func (s *ExportService) ListJobs(ctx context.Context, actorID string, limit int) ([]dto.ExportStatusResponse, error) {
	records, err := s.repo.ListByUser(ctx, actorID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	out := make([]dto.ExportStatusResponse, 0, len(records))
	for _, job := range records {
		item := dto.ExportStatusResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}
		if job.ResultURL != nil {
			item.ResultURL = job.ResultURL
		}
		if job.ErrorMessage != nil && *job.ErrorMessage != "" {
			item.Error = job.ErrorMessage
		}
		out = append(out, item)
	}
	return out, nil
}

// ResolveDownload validates the token and opens the stored export file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ExportService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.ResultTTL)
	expired, err := s.repo.ListFinishedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Sugar().Warnw("cleanup list failed", "error", err)
		return
	}
	for _, job := range expired {
		if job.ResultURL != nil {
			token := extractToken(*job.ResultURL)
			if token != "" {
				if _, relPath, _, parseErr := s.signer.Parse(token, true); parseErr == nil {
					if delErr := s.storage.Delete(relPath); delErr != nil {
						s.logger.Sugar().Warnw("cleanup delete failed", "job_id", job.ID, "error", delErr)
					}
				}
			}
		}
		if err := s.repo.Delete(ctx, job.ID); err != nil {
			s.logger.Sugar().Warnw("cleanup job delete failed", "job_id", job.ID, "error", err)
		}
	}
	if _, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("filesystem cleanup failed", "error", err)
	}
}

func (s *ExportService) validateRequest(ctx context.Context, req dto.ExportRequest, role models.UserRole, familyID *string) error {
	if req.GroupID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "groupId is required")
	}
	switch req.Type {
	case models.ExportTypeAssignments:
		if req.ScheduleID == nil || *req.ScheduleID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "scheduleId is required for assignment exports")
		}
	case models.ExportTypeFairness:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unsupported export type")
	}
	if req.Format != models.ExportFormatCSV && req.Format != models.ExportFormatPDF {
		return appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if role != models.RoleAdmin {
		if familyID == nil || *familyID == "" {
			return appErrors.Clone(appErrors.ErrForbidden, "no family associated with account")
		}
		isMember, err := s.roster.IsMember(ctx, req.GroupID, *familyID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate group membership")
		}
		if !isMember {
			return appErrors.ErrForbidden
		}
	}
	return nil
}

// Generate builds the dataset for the job and stores the rendered file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	signedURL := fmt.Sprintf("%s/exports/download/%s", prefix, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ExportTypeAssignments:
		return s.buildAssignmentsDataset(ctx, job.Params)
	case models.ExportTypeFairness:
		return s.buildFairnessDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %s", job.Type)
	}
}

func (s *ExportService) buildAssignmentsDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	if params.ScheduleID == nil || *params.ScheduleID == "" {
		return export.Dataset{}, "", fmt.Errorf("schedule id missing")
	}
	schedule, err := s.schedules.FindByID(ctx, *params.ScheduleID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load schedule: %w", err)
	}
	rows, err := s.assignments.ListBySchedule(ctx, schedule.ID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load assignments: %w", err)
	}
	names, err := s.familyNames(ctx, params.GroupID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		var passengerIDs []string
		if len(row.PassengerFamilyIDs) > 0 {
			if err := json.Unmarshal(row.PassengerFamilyIDs, &passengerIDs); err != nil {
				return export.Dataset{}, "", fmt.Errorf("decode passengers: %w", err)
			}
		}
		passengers := make([]string, 0, len(passengerIDs))
		for _, id := range passengerIDs {
			passengers = append(passengers, familyLabel(names, id))
		}
		dataRows = append(dataRows, map[string]string{
			"Date":       row.Date.Format("2006-01-02"),
			"Weekday":    weekdayName(row.Weekday),
			"Driver":     familyLabel(names, row.DriverFamilyID),
			"Passengers": strings.Join(passengers, "; "),
			"Seats":      fmt.Sprintf("%d", row.MaxPassengers),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Date", "Weekday", "Driver", "Passengers", "Seats"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Weekly Assignments %s", schedule.WeekStartDate.Format("2006-01-02"))
	return dataset, title, nil
}

func (s *ExportService) buildFairnessDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	records, err := s.fairness.Snapshot(ctx, params.GroupID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load fairness ledger: %w", err)
	}
	names, err := s.familyNames(ctx, params.GroupID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(records))
	for _, row := range records {
		lastDriven := ""
		if row.LastDrivenDate != nil {
			lastDriven = row.LastDrivenDate.Format("2006-01-02")
		}
		dataRows = append(dataRows, map[string]string{
			"Family":           familyLabel(names, row.FamilyID),
			"Trips Driven":     fmt.Sprintf("%d", row.TripsDriven),
			"Trips Missed":     fmt.Sprintf("%d", row.TripsMissed),
			"Makeup Owed":      fmt.Sprintf("%d", row.MakeupOwed),
			"Makeup Completed": fmt.Sprintf("%d", row.MakeupCompleted),
			"Last Driven":      lastDriven,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Family", "Trips Driven", "Trips Missed", "Makeup Owed", "Makeup Completed", "Last Driven"},
		Rows:    dataRows,
	}
	return dataset, "Fairness Ledger", nil
}

func (s *ExportService) familyNames(ctx context.Context, groupID string) (map[string]string, error) {
	members, err := s.roster.ListMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group roster: %w", err)
	}
	names := make(map[string]string, len(members))
	for _, member := range members {
		names[member.ID] = member.Name
	}
	return names, nil
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	groupPart := sanitizeFilename(job.Params.GroupID)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), groupPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func extractToken(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

func familyLabel(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}

func weekdayName(weekday int) string {
	switch weekday {
	case 1:
		return "Monday"
	case 2:
		return "Tuesday"
	case 3:
		return "Wednesday"
	case 4:
		return "Thursday"
	case 5:
		return "Friday"
	default:
		return fmt.Sprintf("Day %d", weekday)
	}
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error)
}

// ExportWorker bridges queue jobs to the export generator.
type ExportWorker struct {
	repo       exportJobStore
	generator  exportGenerator
	logger     *zap.Logger
	maxRetries int
}

// NewExportWorker constructs a worker.
func NewExportWorker(repo exportJobStore, generator exportGenerator, maxRetries int, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ExportWorker{
		repo:       repo,
		generator:  generator,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job through its full lifecycle.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	record.Status = models.ExportStatusProcessing
	record.Progress = 10
	if err := w.repo.Update(ctx, record); err != nil {
		return err
	}
	result, err := w.generator.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		record.ErrorMessage = &msg
		if job.Attempt >= w.maxRetries {
			now := time.Now().UTC()
			record.Status = models.ExportStatusFailed
			record.Progress = 100
			record.FinishedAt = &now
		} else {
			record.Status = models.ExportStatusQueued
			record.Progress = 0
		}
		if updateErr := w.repo.Update(ctx, record); updateErr != nil {
			w.logger.Sugar().Warnw("failed to record export job failure", "job_id", job.ID, "error", updateErr)
		}
		return err
	}
	now := time.Now().UTC()
	record.Status = models.ExportStatusFinished
	record.Progress = 100
	record.ResultURL = &result.URL
	record.ErrorMessage = nil
	record.FinishedAt = &now
	if err := w.repo.Update(ctx, record); err != nil {
		w.logger.Sugar().Warnw("failed to mark export job finished", "job_id", job.ID, "error", err)
		return err
	}
	return nil
}
