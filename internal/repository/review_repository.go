package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/koyo-learn/koyo-api/internal/models"
)

// ReviewRepository handles persistence of course reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

const reviewColumns = `id, course_id, student_id, rating, comment, created_at, updated_at`

// Create persists a new review. The unique (course_id, student_id) index
// rejects a concurrent duplicate.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now
	const query = `INSERT INTO reviews (id, course_id, student_id, rating, comment, created_at, updated_at)
        VALUES (:id, :course_id, :student_id, :rating, :comment, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// FindByID returns a review by its ID.
func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*models.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1`, reviewColumns)
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, id); err != nil {
		return nil, err
	}
	return &review, nil
}

// FindByCourseAndStudent returns the review for a (course, student) pair.
func (r *ReviewRepository) FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE course_id = $1 AND student_id = $2`, reviewColumns)
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, courseID, studentID); err != nil {
		return nil, err
	}
	return &review, nil
}

// Exists checks whether the student already reviewed the course.
func (r *ReviewRepository) Exists(ctx context.Context, courseID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM reviews WHERE course_id = $1 AND student_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, courseID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check review: %w", err)
	}
	return true, nil
}

// ListByCourse returns a course's reviews, newest first.
func (r *ReviewRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE course_id = $1 ORDER BY created_at DESC`, reviewColumns)
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, courseID); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// Update persists the mutable fields of a review.
func (r *ReviewRepository) Update(ctx context.Context, review *models.Review) error {
	review.UpdatedAt = time.Now().UTC()
	const query = `UPDATE reviews SET rating = :rating, comment = :comment, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	return nil
}

// Delete removes a review.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM reviews WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

// AggregateForCourse returns the average rating and review count for one course.
func (r *ReviewRepository) AggregateForCourse(ctx context.Context, courseID string) (*models.ReviewAggregate, error) {
	const query = `SELECT COALESCE(AVG(rating), 0) AS average_rating, COUNT(*) AS total_reviews FROM reviews WHERE course_id = $1`
	var agg models.ReviewAggregate
	if err := r.db.GetContext(ctx, &agg, query, courseID); err != nil {
		return nil, fmt.Errorf("aggregate course reviews: %w", err)
	}
	return &agg, nil
}

// AggregateByCourses returns per-course rating summaries keyed by course ID.
func (r *ReviewRepository) AggregateByCourses(ctx context.Context, courseIDs []string) (map[string]models.RatingSummary, error) {
	summaries := make(map[string]models.RatingSummary, len(courseIDs))
	if len(courseIDs) == 0 {
		return summaries, nil
	}
	query, args, err := sqlx.In(`SELECT course_id, AVG(rating) AS average_rating, COUNT(*) AS total_reviews
        FROM reviews WHERE course_id IN (?) GROUP BY course_id`, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("build review aggregate query: %w", err)
	}
	query = r.db.Rebind(query)
	var rows []models.RatingSummary
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("aggregate reviews by course: %w", err)
	}
	for _, row := range rows {
		summaries[row.CourseID] = row
	}
	return summaries, nil
}

// TopRated returns the courses with the highest average rating, limited
// to courses holding at least one review.
func (r *ReviewRepository) TopRated(ctx context.Context, limit int) ([]models.RatingSummary, error) {
	const query = `SELECT course_id, AVG(rating) AS average_rating, COUNT(*) AS total_reviews
        FROM reviews GROUP BY course_id HAVING COUNT(*) >= 1
        ORDER BY average_rating DESC LIMIT $1`
	var rows []models.RatingSummary
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("query top rated courses: %w", err)
	}
	return rows, nil
}
