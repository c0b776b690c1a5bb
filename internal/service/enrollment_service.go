package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/koyo-learn/koyo-api/internal/models"
	"github.com/koyo-learn/koyo-api/internal/repository"
	appErrors "github.com/koyo-learn/koyo-api/pkg/errors"
)

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Enrollment, error)
	Exists(ctx context.Context, courseID, studentID string) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	CountByCourses(ctx context.Context, courseIDs []string) (map[string]int, error)
	HasCompletedLesson(ctx context.Context, enrollmentID, lessonID string) (bool, error)
	CompleteLesson(ctx context.Context, enrollmentID, lessonID string, progress float64, accessedAt time.Time) error
	ListCompletedLessons(ctx context.Context, enrollmentID string) ([]models.Lesson, error)
	CountCompletedLessons(ctx context.Context, enrollmentID string) (int, error)
}

type enrollmentCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Course, error)
}

type enrollmentLessonRepository interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	CountByCourse(ctx context.Context, courseID string) (int, error)
}

type enrollmentReviewRepository interface {
	AggregateByCourses(ctx context.Context, courseIDs []string) (map[string]models.RatingSummary, error)
}

// EnrollmentService manages student enrollments and lesson completion
// progress.
type EnrollmentService struct {
	enrollments enrollmentRepository
	courses     enrollmentCourseRepository
	lessons     enrollmentLessonRepository
	reviews     enrollmentReviewRepository
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService instance. cache
// may be nil.
func NewEnrollmentService(
	enrollments enrollmentRepository,
	courses enrollmentCourseRepository,
	lessons enrollmentLessonRepository,
	reviews enrollmentReviewRepository,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		courses:     courses,
		lessons:     lessons,
		reviews:     reviews,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
	}
}

// Enroll creates an enrollment for the student in the given course.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	exists, err := s.enrollments.Exists(ctx, courseID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "already enrolled in this course")
	}

	enrollment := &models.Enrollment{CourseID: courseID, StudentID: studentID}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		// the unique index closes the check-then-create race
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "already enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	if err := s.cache.Invalidate(ctx, analyticsCacheKey(course.InstructorID)); err != nil {
		s.logger.Warn("analytics cache invalidation failed", zap.Error(err))
	}
	s.metrics.RecordEnrollment()
	s.logger.Info("student enrolled", zap.String("courseId", courseID), zap.String("studentId", studentID))
	return enrollment, nil
}

// MyCourses returns the student's enrollments with their courses resolved.
func (s *EnrollmentService) MyCourses(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	ids := make([]string, 0, len(enrollments))
	for _, enrollment := range enrollments {
		ids = append(ids, enrollment.CourseID)
	}
	courses, err := s.courses.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	byID := make(map[string]models.Course, len(courses))
	for _, course := range courses {
		byID[course.ID] = course
	}

	summaries, err := s.reviews.AggregateByCourses(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate reviews")
	}
	counts, err := s.enrollments.CountByCourses(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}

	details := make([]models.EnrollmentDetail, 0, len(enrollments))
	for _, enrollment := range enrollments {
		completed, err := s.enrollments.ListCompletedLessons(ctx, enrollment.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list completed lessons")
		}
		if completed == nil {
			completed = []models.Lesson{}
		}
		detail := models.EnrollmentDetail{Enrollment: enrollment, CompletedLessons: completed}
		if course, ok := byID[enrollment.CourseID]; ok {
			courseDetail := &models.CourseDetail{Course: course, Level: strings.ToUpper(string(course.Level))}
			if summary, ok := summaries[course.ID]; ok {
				courseDetail.AverageRating = summary.AverageRating
				courseDetail.TotalReviews = summary.TotalReviews
			}
			courseDetail.TotalStudents = counts[course.ID]
			detail.Course = courseDetail
		}
		details = append(details, detail)
	}
	return details, nil
}

// Get returns the student's enrollment in the given course, including the
// completed lesson set.
func (s *EnrollmentService) Get(ctx context.Context, studentID, courseID string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.enrollments.FindByCourseAndStudent(ctx, courseID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	completed, err := s.enrollments.ListCompletedLessons(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list completed lessons")
	}
	if completed == nil {
		completed = []models.Lesson{}
	}

	return &models.EnrollmentDetail{Enrollment: *enrollment, CompletedLessons: completed}, nil
}

// State reports whether the student is enrolled in the course, carrying
// the enrollment detail when they are. Unlike Get it never returns
// NOT_FOUND for an absent enrollment.
func (s *EnrollmentService) State(ctx context.Context, studentID, courseID string) (*models.EnrollmentState, error) {
	enrolled, err := s.IsEnrolled(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return &models.EnrollmentState{IsEnrolled: false}, nil
	}

	detail, err := s.Get(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	return &models.EnrollmentState{IsEnrolled: true, Enrollment: detail}, nil
}

// IsEnrolled reports whether the student holds an enrollment for the course.
func (s *EnrollmentService) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	enrolled, err := s.enrollments.Exists(ctx, courseID, studentID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	return enrolled, nil
}

// MarkLessonComplete records the lesson in the student's completed set and
// recomputes progress as the completed share of the course's lessons. A
// course with no lessons reports zero progress rather than dividing by
// zero.
func (s *EnrollmentService) MarkLessonComplete(ctx context.Context, studentID, lessonID string) (*models.Enrollment, error) {
	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}

	enrollment, err := s.enrollments.FindByCourseAndStudent(ctx, lesson.CourseID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	done, err := s.enrollments.HasCompletedLesson(ctx, enrollment.ID, lessonID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check completion")
	}
	if done {
		return nil, appErrors.Clone(appErrors.ErrBadUserInput, "lesson already completed")
	}

	total, err := s.lessons.CountByCourse(ctx, lesson.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count lessons")
	}
	completed, err := s.enrollments.CountCompletedLessons(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed lessons")
	}

	progress := 0.0
	if total > 0 {
		progress = 100 * float64(completed+1) / float64(total)
	}

	now := time.Now().UTC()
	if err := s.enrollments.CompleteLesson(ctx, enrollment.ID, lessonID, progress, now); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrBadUserInput, "lesson already completed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record completion")
	}

	enrollment.Progress = progress
	enrollment.LastAccessedAt = now
	return enrollment, nil
}
