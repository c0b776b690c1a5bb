package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/koyo-learn/koyo-api/internal/models"
	appErrors "github.com/koyo-learn/koyo-api/pkg/errors"
	"github.com/koyo-learn/koyo-api/pkg/jobs"
	"github.com/koyo-learn/koyo-api/pkg/storage"
)

type mockReportRepo struct {
	jobs map[string]*models.ReportJob
	seq  int
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{jobs: map[string]*models.ReportJob{}}
}

func (m *mockReportRepo) Create(ctx context.Context, job *models.ReportJob) error {
	m.seq++
	job.ID = "rep-" + string(rune('0'+m.seq))
	job.CreatedAt = time.Now()
	m.jobs[job.ID] = job
	return nil
}

func (m *mockReportRepo) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (m *mockReportRepo) MarkRunning(ctx context.Context, id string) error {
	m.jobs[id].Status = models.ReportStatusRunning
	return nil
}

func (m *mockReportRepo) MarkCompleted(ctx context.Context, id, filePath string, completedAt time.Time) error {
	job := m.jobs[id]
	job.Status = models.ReportStatusCompleted
	job.FilePath = filePath
	job.CompletedAt = &completedAt
	return nil
}

func (m *mockReportRepo) MarkFailed(ctx context.Context, id, message string, failedAt time.Time) error {
	job := m.jobs[id]
	job.Status = models.ReportStatusFailed
	job.ErrorMessage = message
	job.CompletedAt = &failedAt
	return nil
}

type stubAnalyticsProvider struct {
	analytics *models.InstructorAnalytics
	err       error
}

func (m *stubAnalyticsProvider) ForInstructor(ctx context.Context, instructorID string) (*models.InstructorAnalytics, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.analytics, nil
}

func sampleAnalytics() *models.InstructorAnalytics {
	return &models.InstructorAnalytics{
		TotalStudents: 3,
		TotalCourses:  1,
		TotalRevenue:  150,
		AverageRating: 4.5,
		TotalReviews:  2,
		MonthlyEnrollments: []models.MonthlyEnrollment{
			{Month: "2026-07", Count: 1},
			{Month: "2026-08", Count: 2},
		},
		TopCourses: []models.TopCourse{
			{Course: &models.CourseDetail{Course: models.Course{ID: "c1", Title: "Go from Zero", Price: 50}}, EnrollmentCount: 3, Revenue: 150},
		},
	}
}

func newReportService(t *testing.T, repo *mockReportRepo, provider *stubAnalyticsProvider) *ReportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("report-secret", time.Hour)
	return NewReportService(repo, provider, store, signer, nil, ReportConfig{
		WorkerConcurrency: 1,
		WorkerRetries:     1,
	}, validator.New(), zap.NewNop())
}

func TestReportExportQueuesJob(t *testing.T) {
	repo := newMockReportRepo()
	svc := newReportService(t, repo, &stubAnalyticsProvider{analytics: sampleAnalytics()})
	svc.Start(context.Background())
	defer svc.Stop()

	status, err := svc.Export(context.Background(), "i1", models.ExportAnalyticsRequest{Format: "csv"})
	require.NoError(t, err)
	assert.NotEmpty(t, status.ID)
	assert.Equal(t, models.ReportFormatCSV, status.Format)
}

func TestReportExportRejectsUnknownFormat(t *testing.T) {
	svc := newReportService(t, newMockReportRepo(), &stubAnalyticsProvider{analytics: sampleAnalytics()})

	_, err := svc.Export(context.Background(), "i1", models.ExportAnalyticsRequest{Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportProcessRendersCSV(t *testing.T) {
	repo := newMockReportRepo()
	svc := newReportService(t, repo, &stubAnalyticsProvider{analytics: sampleAnalytics()})

	job := &models.ReportJob{InstructorID: "i1", Format: models.ReportFormatCSV}
	require.NoError(t, repo.Create(context.Background(), job))

	err := svc.process(context.Background(), jobs.Job{ID: job.ID, Type: reportJobType, Payload: job.ID})
	require.NoError(t, err)

	stored := repo.jobs[job.ID]
	assert.Equal(t, models.ReportStatusCompleted, stored.Status)
	assert.True(t, strings.HasSuffix(stored.FilePath, ".csv"))

	file, err := svc.store.Open(stored.FilePath)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Total Revenue")
	assert.Contains(t, string(content), "150.00")
	assert.Contains(t, string(content), "2026-08")
}

func TestReportProcessRendersPDF(t *testing.T) {
	repo := newMockReportRepo()
	svc := newReportService(t, repo, &stubAnalyticsProvider{analytics: sampleAnalytics()})

	job := &models.ReportJob{InstructorID: "i1", Format: models.ReportFormatPDF}
	require.NoError(t, repo.Create(context.Background(), job))

	err := svc.process(context.Background(), jobs.Job{ID: job.ID, Type: reportJobType, Payload: job.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, repo.jobs[job.ID].Status)
	assert.True(t, strings.HasSuffix(repo.jobs[job.ID].FilePath, ".pdf"))
}

func TestReportProcessMarksFailure(t *testing.T) {
	repo := newMockReportRepo()
	svc := newReportService(t, repo, &stubAnalyticsProvider{err: appErrors.ErrInternal})

	job := &models.ReportJob{InstructorID: "i1", Format: models.ReportFormatCSV}
	require.NoError(t, repo.Create(context.Background(), job))

	err := svc.process(context.Background(), jobs.Job{ID: job.ID, Type: reportJobType, Payload: job.ID})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusFailed, repo.jobs[job.ID].Status)
	assert.NotEmpty(t, repo.jobs[job.ID].ErrorMessage)
}

func TestReportStatusOwnershipAndSignedURL(t *testing.T) {
	repo := newMockReportRepo()
	svc := newReportService(t, repo, &stubAnalyticsProvider{analytics: sampleAnalytics()})

	job := &models.ReportJob{InstructorID: "i1", Format: models.ReportFormatCSV}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NoError(t, svc.process(context.Background(), jobs.Job{ID: job.ID, Payload: job.ID}))

	_, err := svc.Status(context.Background(), "i2", job.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	status, err := svc.Status(context.Background(), "i1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, status.Status)
	assert.Contains(t, status.DownloadURL, "token=")
	require.NotNil(t, status.ExpiresAt)
}

func TestReportDownloadWithToken(t *testing.T) {
	repo := newMockReportRepo()
	svc := newReportService(t, repo, &stubAnalyticsProvider{analytics: sampleAnalytics()})

	job := &models.ReportJob{InstructorID: "i1", Format: models.ReportFormatCSV}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NoError(t, svc.process(context.Background(), jobs.Job{ID: job.ID, Payload: job.ID}))

	status, err := svc.Status(context.Background(), "i1", job.ID)
	require.NoError(t, err)
	token := status.DownloadURL[strings.Index(status.DownloadURL, "token=")+len("token="):]

	file, downloaded, err := svc.Download(context.Background(), token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, job.ID, downloaded.ID)

	_, _, err = svc.Download(context.Background(), token+"tampered")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
