package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/carpool-api/internal/dto"
	"github.com/noah-isme/carpool-api/internal/models"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
	"github.com/noah-isme/carpool-api/pkg/jobs"
	"github.com/noah-isme/carpool-api/pkg/storage"
)

type exportRepoStub struct {
	jobs map[string]*models.ExportJob
}

func newExportRepoStub() *exportRepoStub {
	return &exportRepoStub{jobs: map[string]*models.ExportJob{}}
}

func (r *exportRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = "job-1"
	}
	if job.Status == "" {
		job.Status = models.ExportStatusQueued
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *exportRepoStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (r *exportRepoStub) Update(ctx context.Context, job *models.ExportJob) error {
	if _, ok := r.jobs[job.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

func (r *exportRepoStub) ListByUser(ctx context.Context, userID string, limit int) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, job := range r.jobs {
		if job.CreatedBy == userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (r *exportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (r *exportRepoStub) Delete(ctx context.Context, id string) error {
	delete(r.jobs, id)
	return nil
}

type exportRosterStub struct {
	families []models.Family
	members  map[string]bool
}

func (r exportRosterStub) ListMembers(ctx context.Context, groupID string) ([]models.Family, error) {
	return r.families, nil
}

func (r exportRosterStub) IsMember(ctx context.Context, groupID, familyID string) (bool, error) {
	return r.members[familyID], nil
}

type exportQueueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *exportQueueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func newExportServiceForTest(t *testing.T) (*ExportService, *exportRepoStub, *exportQueueStub) {
	t.Helper()
	repo := newExportRepoStub()
	queue := &exportQueueStub{}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)

	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	schedule := &models.WeeklySchedule{
		ID:            "sched-1",
		GroupID:       "group-1",
		WeekStartDate: monday,
		Status:        models.ScheduleStatusAssigned,
	}
	passengers, _ := json.Marshal([]string{"fam-b", "fam-c"})
	assignments := &assignmentRepoStub{stored: []models.Assignment{
		{
			ScheduleID:         "sched-1",
			Date:               monday,
			Weekday:            1,
			DriverFamilyID:     "fam-a",
			PassengerFamilyIDs: types.JSONText(passengers),
			MaxPassengers:      3,
		},
	}}
	fairness := &fairnessStub{records: []models.FairnessRecord{
		{GroupID: "group-1", FamilyID: "fam-a", TripsDriven: 4, MakeupOwed: 1},
		{GroupID: "group-1", FamilyID: "fam-b", TripsDriven: 2, TripsMissed: 1},
	}}
	roster := exportRosterStub{
		families: []models.Family{
			{ID: "fam-a", Name: "Andersson"},
			{ID: "fam-b", Name: "Berg"},
			{ID: "fam-c", Name: "Carlsson"},
		},
		members: map[string]bool{"fam-a": true},
	}

	svc := NewExportService(
		repo,
		scheduleReaderStub{schedule: schedule},
		assignments,
		fairness,
		roster,
		queue,
		store,
		signer,
		ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour},
		zap.NewNop(),
		nil,
		nil,
	)
	return svc, repo, queue
}

func scheduleIDRef() *string {
	id := "sched-1"
	return &id
}

func TestExportCreateJobEnqueues(t *testing.T) {
	svc, repo, queue := newExportServiceForTest(t)

	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:       models.ExportTypeAssignments,
		GroupID:    "group-1",
		ScheduleID: scheduleIDRef(),
		Format:     models.ExportFormatCSV,
	}, "admin-1", models.RoleAdmin, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	assert.Zero(t, resp.Progress)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, resp.ID, queue.jobs[0].ID)
	assert.Equal(t, "assignments", queue.jobs[0].Type)
	assert.Len(t, repo.jobs, 1)
}

func TestExportCreateJobValidation(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)

	cases := []struct {
		name string
		req  dto.ExportRequest
		want string
	}{
		{
			name: "missing group",
			req:  dto.ExportRequest{Type: models.ExportTypeFairness, Format: models.ExportFormatCSV},
			want: "groupId",
		},
		{
			name: "assignments without schedule",
			req:  dto.ExportRequest{Type: models.ExportTypeAssignments, GroupID: "group-1", Format: models.ExportFormatCSV},
			want: "scheduleId",
		},
		{
			name: "unknown type",
			req:  dto.ExportRequest{Type: "rides", GroupID: "group-1", Format: models.ExportFormatCSV},
			want: "export type",
		},
		{
			name: "unknown format",
			req:  dto.ExportRequest{Type: models.ExportTypeFairness, GroupID: "group-1", Format: "xlsx"},
			want: "export format",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateJob(context.Background(), tc.req, "admin-1", models.RoleAdmin, nil)
			require.Error(t, err)
			var appErr *appErrors.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
			assert.Contains(t, appErr.Message, tc.want)
		})
	}
}

func TestExportCreateJobMembership(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)
	familyID := "fam-a"
	outsider := "fam-z"

	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:    models.ExportTypeFairness,
		GroupID: "group-1",
		Format:  models.ExportFormatCSV,
	}, "user-1", models.RoleParent, &familyID)
	require.NoError(t, err)

	_, err = svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:    models.ExportTypeFairness,
		GroupID: "group-1",
		Format:  models.ExportFormatCSV,
	}, "user-2", models.RoleParent, &outsider)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestExportWorkerFinishesAssignmentsCSV(t *testing.T) {
	svc, repo, _ := newExportServiceForTest(t)
	job := &models.ExportJob{
		ID:        "job-1",
		Type:      models.ExportTypeAssignments,
		Params:    models.ExportJobParams{GroupID: "group-1", ScheduleID: scheduleIDRef(), Format: models.ExportFormatCSV},
		Status:    models.ExportStatusQueued,
		CreatedBy: "admin-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))

	worker := NewExportWorker(repo, svc, 3, zap.NewNop())
	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Type: "assignments"})
	require.NoError(t, err)

	stored := repo.jobs["job-1"]
	assert.Equal(t, models.ExportStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ResultURL)
	assert.True(t, strings.HasPrefix(*stored.ResultURL, "/api/v1/exports/download/"))
	require.NotNil(t, stored.FinishedAt)

	token := (*stored.ResultURL)[strings.LastIndex(*stored.ResultURL, "/")+1:]
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Date,Weekday,Driver,Passengers,Seats")
	assert.Contains(t, string(content), "Andersson")
	assert.Contains(t, string(content), "Berg; Carlsson")
}

func TestExportWorkerFairnessDataset(t *testing.T) {
	svc, repo, _ := newExportServiceForTest(t)
	job := &models.ExportJob{
		ID:        "job-2",
		Type:      models.ExportTypeFairness,
		Params:    models.ExportJobParams{GroupID: "group-1", Format: models.ExportFormatCSV},
		Status:    models.ExportStatusQueued,
		CreatedBy: "admin-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))

	worker := NewExportWorker(repo, svc, 3, zap.NewNop())
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-2", Type: "fairness"}))

	stored := repo.jobs["job-2"]
	require.Equal(t, models.ExportStatusFinished, stored.Status)
	token := (*stored.ResultURL)[strings.LastIndex(*stored.ResultURL, "/")+1:]
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Family,Trips Driven,Trips Missed,Makeup Owed,Makeup Completed,Last Driven")
	assert.Contains(t, string(content), "Andersson,4,0,1,0")
}

func TestExportWorkerMarksFailedAfterRetries(t *testing.T) {
	svc, repo, _ := newExportServiceForTest(t)
	missing := "sched-9"
	job := &models.ExportJob{
		ID:        "job-3",
		Type:      models.ExportTypeAssignments,
		Params:    models.ExportJobParams{GroupID: "group-1", ScheduleID: &missing, Format: models.ExportFormatCSV},
		Status:    models.ExportStatusQueued,
		CreatedBy: "admin-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))

	worker := NewExportWorker(repo, svc, 2, zap.NewNop())
	err := worker.Handle(context.Background(), jobs.Job{ID: "job-3", Type: "assignments", Attempt: 2})
	require.Error(t, err)

	stored := repo.jobs["job-3"]
	assert.Equal(t, models.ExportStatusFailed, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ErrorMessage)
	require.NotNil(t, stored.FinishedAt)
}

func TestExportWorkerRequeuesBeforeRetryLimit(t *testing.T) {
	svc, repo, _ := newExportServiceForTest(t)
	missing := "sched-9"
	job := &models.ExportJob{
		ID:        "job-4",
		Type:      models.ExportTypeAssignments,
		Params:    models.ExportJobParams{GroupID: "group-1", ScheduleID: &missing, Format: models.ExportFormatCSV},
		Status:    models.ExportStatusQueued,
		CreatedBy: "admin-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))

	worker := NewExportWorker(repo, svc, 3, zap.NewNop())
	err := worker.Handle(context.Background(), jobs.Job{ID: "job-4", Type: "assignments", Attempt: 1})
	require.Error(t, err)

	stored := repo.jobs["job-4"]
	assert.Equal(t, models.ExportStatusQueued, stored.Status)
	assert.Zero(t, stored.Progress)
}

func TestExportGetStatusOwnership(t *testing.T) {
	svc, repo, _ := newExportServiceForTest(t)
	job := &models.ExportJob{ID: "job-5", Type: models.ExportTypeFairness, Status: models.ExportStatusProcessing, Progress: 10, CreatedBy: "user-1"}
	require.NoError(t, repo.Create(context.Background(), job))

	status, err := svc.GetStatus(context.Background(), "job-5", "user-1", models.RoleParent)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusProcessing, status.Status)

	_, err = svc.GetStatus(context.Background(), "job-5", "user-2", models.RoleParent)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	admin, err := svc.GetStatus(context.Background(), "job-5", "someone-else", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "job-5", admin.ID)
}

func TestExportResolveDownloadRejectsBadToken(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)

	_, err := svc.ResolveDownload(context.Background(), "not-a-token")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
