package models

import "time"

// ReportFormat selects the rendering of an analytics export.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus tracks the lifecycle of an export job.
type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusRunning   ReportStatus = "running"
	ReportStatusCompleted ReportStatus = "completed"
	ReportStatusFailed    ReportStatus = "failed"
)

// ReportJob is a persisted analytics export request.
type ReportJob struct {
	ID           string       `db:"id" json:"id"`
	InstructorID string       `db:"instructor_id" json:"-"`
	Format       ReportFormat `db:"format" json:"format"`
	Status       ReportStatus `db:"status" json:"status"`
	FilePath     string       `db:"file_path" json:"-"`
	ErrorMessage string       `db:"error_message" json:"error,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	CompletedAt  *time.Time   `db:"completed_at" json:"completedAt,omitempty"`
}

// ExportAnalyticsRequest asks for a new analytics report.
type ExportAnalyticsRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf"`
}

// ReportJobStatus is the API view of a job, including the signed download
// URL once the job has completed.
type ReportJobStatus struct {
	ReportJob
	DownloadURL string     `json:"downloadUrl,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}
