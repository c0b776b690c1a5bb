package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/koyo-learn/koyo-api/internal/models"
	appErrors "github.com/koyo-learn/koyo-api/pkg/errors"
	"github.com/koyo-learn/koyo-api/pkg/export"
	"github.com/koyo-learn/koyo-api/pkg/jobs"
	"github.com/koyo-learn/koyo-api/pkg/storage"
)

const reportJobType = "analytics-export"

type reportRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, filePath string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string, failedAt time.Time) error
}

type analyticsProvider interface {
	ForInstructor(ctx context.Context, instructorID string) (*models.InstructorAnalytics, error)
}

type reportStore interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
}

// ReportConfig tunes the export worker pool and download links.
type ReportConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	DownloadBasePath  string
}

// ReportService renders instructor analytics exports asynchronously. Jobs
// are queued on an in-process worker pool and download links are signed
// and time-limited.
type ReportService struct {
	reports   reportRepository
	analytics analyticsProvider
	store     reportStore
	signer    *storage.SignedURLSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	metrics   *MetricsService
	queue     *jobs.Queue
	config    ReportConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService constructs a ReportService and its worker queue. Call
// Start before enqueuing exports.
func NewReportService(
	reports reportRepository,
	analytics analyticsProvider,
	store reportStore,
	signer *storage.SignedURLSigner,
	metrics *MetricsService,
	config ReportConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.DownloadBasePath == "" {
		config.DownloadBasePath = "/reports/download"
	}
	s := &ReportService{
		reports:   reports,
		analytics: analytics,
		store:     store,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		metrics:   metrics,
		config:    config,
		validator: validate,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("reports", s.process, jobs.QueueConfig{
		Workers:    config.WorkerConcurrency,
		MaxRetries: config.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ReportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ReportService) Stop() {
	s.queue.Stop()
}

// Export queues a new analytics export for the instructor.
func (s *ReportService) Export(ctx context.Context, instructorID string, req models.ExportAnalyticsRequest) (*models.ReportJobStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}

	job := &models.ReportJob{
		InstructorID: instructorID,
		Format:       models.ReportFormat(req.Format),
		Status:       models.ReportStatusPending,
	}
	if err := s.reports.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: reportJobType, Payload: job.ID}); err != nil {
		now := time.Now().UTC()
		if markErr := s.reports.MarkFailed(ctx, job.ID, "export queue unavailable", now); markErr != nil {
			s.logger.Warn("failed to mark report failed", zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}

	s.logger.Info("analytics export queued", zap.String("reportId", job.ID), zap.String("format", req.Format))
	return &models.ReportJobStatus{ReportJob: *job}, nil
}

// Status returns the state of the instructor's export, with a signed
// download URL once it completes.
func (s *ReportService) Status(ctx context.Context, instructorID, reportID string) (*models.ReportJobStatus, error) {
	job, err := s.ownedJob(ctx, instructorID, reportID)
	if err != nil {
		return nil, err
	}

	status := &models.ReportJobStatus{ReportJob: *job}
	if job.Status == models.ReportStatusCompleted && job.FilePath != "" {
		token, expiresAt, err := s.signer.Generate(job.ID, job.FilePath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
		}
		status.DownloadURL = s.config.DownloadBasePath + "?token=" + token
		status.ExpiresAt = &expiresAt
	}
	return status, nil
}

// Download validates a signed token and opens the rendered report file.
func (s *ReportService) Download(ctx context.Context, token string) (*os.File, *models.ReportJob, error) {
	reportID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}

	job, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	if job.Status != models.ReportStatusCompleted || job.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "report is not available for download")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report file not found")
	}
	return file, job, nil
}

func (s *ReportService) ownedJob(ctx context.Context, instructorID, reportID string) (*models.ReportJob, error) {
	job, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	if job.InstructorID != instructorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not own this report")
	}
	return job, nil
}

// process renders a queued export. Runs on the worker pool.
func (s *ReportService) process(ctx context.Context, job jobs.Job) error {
	reportID, _ := job.Payload.(string)
	if reportID == "" {
		reportID = job.ID
	}

	record, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return fmt.Errorf("load report %s: %w", reportID, err)
	}
	if err := s.reports.MarkRunning(ctx, record.ID); err != nil {
		s.logger.Warn("failed to mark report running", zap.Error(err))
	}

	start := time.Now()
	analytics, err := s.analytics.ForInstructor(ctx, record.InstructorID)
	if err != nil {
		return s.fail(ctx, record.ID, fmt.Errorf("compute analytics: %w", err))
	}

	dataset := buildAnalyticsDataset(analytics)
	var rendered []byte
	switch record.Format {
	case models.ReportFormatPDF:
		rendered, err = s.pdf.Render(dataset, "Instructor Analytics")
	default:
		rendered, err = s.csv.Render(dataset)
	}
	if err != nil {
		return s.fail(ctx, record.ID, fmt.Errorf("render report: %w", err))
	}

	relPath := fmt.Sprintf("reports/%s.%s", record.ID, record.Format)
	if _, err := s.store.Save(relPath, rendered); err != nil {
		return s.fail(ctx, record.ID, fmt.Errorf("store report: %w", err))
	}

	if err := s.reports.MarkCompleted(ctx, record.ID, relPath, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark report completed: %w", err)
	}

	s.metrics.ObserveReportRender(string(record.Format), time.Since(start))
	s.logger.Info("analytics export rendered",
		zap.String("reportId", record.ID),
		zap.String("format", string(record.Format)),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (s *ReportService) fail(ctx context.Context, reportID string, cause error) error {
	if err := s.reports.MarkFailed(ctx, reportID, cause.Error(), time.Now().UTC()); err != nil {
		s.logger.Warn("failed to mark report failed", zap.Error(err))
	}
	return cause
}

// buildAnalyticsDataset flattens the rollup into a three-column table so
// the same shape renders for both CSV and PDF.
func buildAnalyticsDataset(a *models.InstructorAnalytics) export.Dataset {
	rows := []map[string]string{
		{"Section": "Summary", "Name": "Total Students", "Value": strconv.Itoa(a.TotalStudents)},
		{"Section": "Summary", "Name": "Total Courses", "Value": strconv.Itoa(a.TotalCourses)},
		{"Section": "Summary", "Name": "Total Revenue", "Value": strconv.FormatFloat(a.TotalRevenue, 'f', 2, 64)},
		{"Section": "Summary", "Name": "Average Rating", "Value": strconv.FormatFloat(a.AverageRating, 'f', 2, 64)},
		{"Section": "Summary", "Name": "Total Reviews", "Value": strconv.Itoa(a.TotalReviews)},
	}
	for _, bucket := range a.MonthlyEnrollments {
		rows = append(rows, map[string]string{
			"Section": "Monthly Enrollments",
			"Name":    bucket.Month,
			"Value":   strconv.Itoa(bucket.Count),
		})
	}
	for _, top := range a.TopCourses {
		rows = append(rows, map[string]string{
			"Section": "Top Courses",
			"Name":    top.Course.Title,
			"Value":   fmt.Sprintf("%d enrollments / %.2f revenue", top.EnrollmentCount, top.Revenue),
		})
	}
	return export.Dataset{Headers: []string{"Section", "Name", "Value"}, Rows: rows}
}
