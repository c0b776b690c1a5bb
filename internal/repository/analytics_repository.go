package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/koyo-learn/koyo-api/internal/models"
)

// AnalyticsRepository exposes the grouping queries behind instructor
// analytics. All queries are scoped to a single instructor's courses and
// return zero-valued results when the instructor has none.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// CountStudents returns the number of enrollments across the
// instructor's courses.
func (r *AnalyticsRepository) CountStudents(ctx context.Context, instructorID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE c.instructor_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, instructorID); err != nil {
		return 0, fmt.Errorf("count enrolled students: %w", err)
	}
	return count, nil
}

// TotalRevenue sums enrollment count times course price across the
// instructor's courses. Price is read at query time; the data model keeps
// no point-of-sale price, so a later price change shifts reported revenue.
func (r *AnalyticsRepository) TotalRevenue(ctx context.Context, instructorID string) (float64, error) {
	const query = `SELECT COALESCE(SUM(c.price), 0) FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE c.instructor_id = $1`
	var revenue float64
	if err := r.db.GetContext(ctx, &revenue, query, instructorID); err != nil {
		return 0, fmt.Errorf("sum revenue: %w", err)
	}
	return revenue, nil
}

// MonthlyEnrollments buckets the instructor's enrollments by calendar
// year-month since the given time, sorted chronologically.
func (r *AnalyticsRepository) MonthlyEnrollments(ctx context.Context, instructorID string, since time.Time) ([]models.MonthlyEnrollment, error) {
	const query = `SELECT to_char(date_trunc('month', e.enrolled_at), 'YYYY-MM') AS month, COUNT(*) AS count
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE c.instructor_id = $1 AND e.enrolled_at >= $2
        GROUP BY date_trunc('month', e.enrolled_at)
        ORDER BY date_trunc('month', e.enrolled_at) ASC`
	var buckets []models.MonthlyEnrollment
	if err := r.db.SelectContext(ctx, &buckets, query, instructorID, since); err != nil {
		return nil, fmt.Errorf("bucket monthly enrollments: %w", err)
	}
	return buckets, nil
}

// TopCoursesByEnrollment returns the instructor's courses with the most
// enrollments, highest first.
func (r *AnalyticsRepository) TopCoursesByEnrollment(ctx context.Context, instructorID string, limit int) ([]models.EnrollmentCount, error) {
	const query = `SELECT e.course_id, COUNT(*) AS count
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE c.instructor_id = $1
        GROUP BY e.course_id
        ORDER BY count DESC
        LIMIT $2`
	var rows []models.EnrollmentCount
	if err := r.db.SelectContext(ctx, &rows, query, instructorID, limit); err != nil {
		return nil, fmt.Errorf("query top courses: %w", err)
	}
	return rows, nil
}

// ReviewAggregate returns the combined average rating and review count
// across all the instructor's courses.
func (r *AnalyticsRepository) ReviewAggregate(ctx context.Context, instructorID string) (*models.ReviewAggregate, error) {
	const query = `SELECT COALESCE(AVG(rv.rating), 0) AS average_rating, COUNT(rv.id) AS total_reviews
        FROM reviews rv
        JOIN courses c ON c.id = rv.course_id
        WHERE c.instructor_id = $1`
	var agg models.ReviewAggregate
	if err := r.db.GetContext(ctx, &agg, query, instructorID); err != nil {
		return nil, fmt.Errorf("aggregate instructor reviews: %w", err)
	}
	return &agg, nil
}
