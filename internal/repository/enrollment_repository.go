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

// EnrollmentRepository handles persistence of enrollments and their
// completed-lesson sets.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, course_id, student_id, progress, enrolled_at, last_accessed_at`

// Create persists a new enrollment. The unique (course_id, student_id)
// index rejects a concurrent duplicate; callers map that to a conflict.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	if enrollment.LastAccessedAt.IsZero() {
		enrollment.LastAccessedAt = now
	}
	const query = `INSERT INTO enrollments (id, course_id, student_id, progress, enrolled_at, last_accessed_at)
        VALUES (:id, :course_id, :student_id, :progress, :enrolled_at, :last_accessed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindByCourseAndStudent returns the enrollment for a (course, student) pair.
func (r *EnrollmentRepository) FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE course_id = $1 AND student_id = $2`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, courseID, studentID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Exists checks whether the student holds an enrollment for the course.
func (r *EnrollmentRepository) Exists(ctx context.Context, courseID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE course_id = $1 AND student_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, courseID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// ListByStudent returns a student's enrollments, most recent first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE student_id = $1 ORDER BY enrolled_at DESC`, enrollmentColumns)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// CountByCourse returns the number of enrollments for a course.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// CountByCourses returns enrollment tallies keyed by course ID.
func (r *EnrollmentRepository) CountByCourses(ctx context.Context, courseIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(courseIDs))
	if len(courseIDs) == 0 {
		return counts, nil
	}
	query, args, err := sqlx.In(`SELECT course_id, COUNT(*) AS count FROM enrollments WHERE course_id IN (?) GROUP BY course_id`, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("build enrollment count query: %w", err)
	}
	query = r.db.Rebind(query)
	var rows []models.EnrollmentCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count enrollments by course: %w", err)
	}
	for _, row := range rows {
		counts[row.CourseID] = row.Count
	}
	return counts, nil
}

// HasCompletedLesson checks whether the lesson is already in the
// enrollment's completed set.
func (r *EnrollmentRepository) HasCompletedLesson(ctx context.Context, enrollmentID, lessonID string) (bool, error) {
	const query = `SELECT 1 FROM completed_lessons WHERE enrollment_id = $1 AND lesson_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, enrollmentID, lessonID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check completed lesson: %w", err)
	}
	return true, nil
}

// CompleteLesson appends the lesson to the enrollment's completed set and
// records the recomputed progress and access time atomically.
func (r *EnrollmentRepository) CompleteLesson(ctx context.Context, enrollmentID, lessonID string, progress float64, accessedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lesson completion: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO completed_lessons (enrollment_id, lesson_id, completed_at) VALUES ($1, $2, $3)`,
		enrollmentID, lessonID, accessedAt); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert completed lesson: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE enrollments SET progress = $2, last_accessed_at = $3 WHERE id = $1`,
		enrollmentID, progress, accessedAt); err != nil {
		return fmt.Errorf("update enrollment progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lesson completion: %w", err)
	}
	return nil
}

// ListCompletedLessons returns the completed lessons for an enrollment in
// playback order.
func (r *EnrollmentRepository) ListCompletedLessons(ctx context.Context, enrollmentID string) ([]models.Lesson, error) {
	const query = `SELECT l.id, l.course_id, l.title, l.description, l.video_url, l.duration, l.position, l.is_free, l.created_at, l.updated_at
        FROM lessons l
        JOIN completed_lessons cl ON cl.lesson_id = l.id
        WHERE cl.enrollment_id = $1
        ORDER BY l.position ASC`
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list completed lessons: %w", err)
	}
	return lessons, nil
}

// CountCompletedLessons returns the size of the enrollment's completed set.
func (r *EnrollmentRepository) CountCompletedLessons(ctx context.Context, enrollmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM completed_lessons WHERE enrollment_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, enrollmentID); err != nil {
		return 0, fmt.Errorf("count completed lessons: %w", err)
	}
	return count, nil
}
