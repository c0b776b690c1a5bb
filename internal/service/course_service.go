package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/koyo-learn/koyo-api/internal/models"
	appErrors "github.com/koyo-learn/koyo-api/pkg/errors"
)

const (
	topRatedDefaultLimit = 10
	topRatedMaxLimit     = 10
	topRatedCacheKey     = "courses:top-rated"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context) ([]models.Course, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.Course, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Course, error)
	Update(ctx context.Context, course *models.Course) error
	DeleteCascade(ctx context.Context, id string) error
}

type courseLessonRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error)
}

type courseEnrollmentRepository interface {
	CountByCourse(ctx context.Context, courseID string) (int, error)
	CountByCourses(ctx context.Context, courseIDs []string) (map[string]int, error)
}

type courseReviewRepository interface {
	AggregateForCourse(ctx context.Context, courseID string) (*models.ReviewAggregate, error)
	AggregateByCourses(ctx context.Context, courseIDs []string) (map[string]models.RatingSummary, error)
	TopRated(ctx context.Context, limit int) ([]models.RatingSummary, error)
}

type courseUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CourseService provides the course catalogue use cases: public browsing
// with derived rating and enrollment figures, and instructor-owned
// management of the catalogue itself.
type CourseService struct {
	courses     courseRepository
	lessons     courseLessonRepository
	enrollments courseEnrollmentRepository
	reviews     courseReviewRepository
	users       courseUserRepository
	cache       *CacheService
	cacheTTL    time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService constructs a CourseService instance. cache may be nil
// to disable top-rated caching.
func NewCourseService(
	courses courseRepository,
	lessons courseLessonRepository,
	enrollments courseEnrollmentRepository,
	reviews courseReviewRepository,
	users courseUserRepository,
	cache *CacheService,
	cacheTTL time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{
		courses:     courses,
		lessons:     lessons,
		enrollments: enrollments,
		reviews:     reviews,
		users:       users,
		cache:       cache,
		cacheTTL:    cacheTTL,
		validator:   validate,
		logger:      logger,
	}
}

// List returns the full catalogue with rating and enrollment figures
// resolved in bulk.
func (s *CourseService) List(ctx context.Context) ([]models.CourseDetail, error) {
	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return s.buildDetails(ctx, courses)
}

// ListByInstructor returns the catalogue entries owned by one instructor.
func (s *CourseService) ListByInstructor(ctx context.Context, instructorID string) ([]models.CourseDetail, error) {
	courses, err := s.courses.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructor courses")
	}
	return s.buildDetails(ctx, courses)
}

// Get returns one course with instructor, lessons and derived figures.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	detail := newCourseDetail(*course)

	if instructor, err := s.users.FindByID(ctx, course.InstructorID); err == nil {
		detail.Instructor = instructor
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}

	lessons, err := s.lessons.ListByCourse(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons")
	}
	detail.Lessons = lessons

	agg, err := s.reviews.AggregateForCourse(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate reviews")
	}
	detail.AverageRating = agg.AverageRating
	detail.TotalReviews = agg.TotalReviews

	students, err := s.enrollments.CountByCourse(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	detail.TotalStudents = students

	return detail, nil
}

// TopRated returns the best-rated courses, ties broken by rating order as
// returned from storage. The limit is clamped to 1..10 and defaults to 10
// when the caller sends zero or a negative value.
func (s *CourseService) TopRated(ctx context.Context, limit int) ([]models.CourseDetail, error) {
	if limit <= 0 {
		limit = topRatedDefaultLimit
	}
	if limit > topRatedMaxLimit {
		limit = topRatedMaxLimit
	}

	var cached []models.CourseDetail
	if hit, err := s.cache.Get(ctx, topRatedCacheKey, &cached); err == nil && hit {
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, nil
	}

	summaries, err := s.reviews.TopRated(ctx, topRatedMaxLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query top rated courses")
	}

	ids := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		ids = append(ids, summary.CourseID)
	}
	courses, err := s.courses.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load top rated courses")
	}
	byID := make(map[string]models.Course, len(courses))
	for _, course := range courses {
		byID[course.ID] = course
	}

	counts, err := s.enrollments.CountByCourses(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}

	// preserve the rating order from storage
	details := make([]models.CourseDetail, 0, len(summaries))
	for _, summary := range summaries {
		course, ok := byID[summary.CourseID]
		if !ok {
			continue
		}
		detail := newCourseDetail(course)
		detail.AverageRating = summary.AverageRating
		detail.TotalReviews = summary.TotalReviews
		detail.TotalStudents = counts[summary.CourseID]
		details = append(details, *detail)
	}

	if err := s.cache.Set(ctx, topRatedCacheKey, details, s.cacheTTL); err != nil {
		s.logger.Warn("top rated cache write failed", zap.Error(err))
	}

	if len(details) > limit {
		details = details[:limit]
	}
	return details, nil
}

// Create adds a course owned by the given instructor.
func (s *CourseService) Create(ctx context.Context, instructorID string, req models.CreateCourseRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	level := models.NormalizeLevel(req.Level)
	if !level.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "level must be beginner, intermediate or advanced")
	}

	course := &models.Course{
		Title:        req.Title,
		Description:  req.Description,
		Thumbnail:    req.Thumbnail,
		Category:     req.Category,
		Price:        req.Price,
		Level:        level,
		InstructorID: instructorID,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidateAnalytics(ctx, instructorID)
	s.logger.Info("course created", zap.String("courseId", course.ID), zap.String("instructorId", instructorID))
	return newCourseDetail(*course), nil
}

// Update applies the non-nil fields of the request to a course the
// instructor owns.
func (s *CourseService) Update(ctx context.Context, instructorID, courseID string, req models.UpdateCourseRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.ownedCourse(ctx, instructorID, courseID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Thumbnail != nil {
		course.Thumbnail = *req.Thumbnail
	}
	if req.Category != nil {
		course.Category = *req.Category
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if req.Level != nil {
		level := models.NormalizeLevel(*req.Level)
		if !level.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "level must be beginner, intermediate or advanced")
		}
		course.Level = level
	}

	if err := s.courses.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidateAnalytics(ctx, instructorID)
	return newCourseDetail(*course), nil
}

// Delete removes a course the instructor owns together with its lessons,
// enrollments and reviews. The storage layer runs the cascade in a single
// transaction.
func (s *CourseService) Delete(ctx context.Context, instructorID, courseID string) error {
	if _, err := s.ownedCourse(ctx, instructorID, courseID); err != nil {
		return err
	}

	if err := s.courses.DeleteCascade(ctx, courseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}

	if err := s.cache.Invalidate(ctx, topRatedCacheKey+"*"); err != nil {
		s.logger.Warn("top rated cache invalidation failed", zap.Error(err))
	}
	s.invalidateAnalytics(ctx, instructorID)

	s.logger.Info("course deleted", zap.String("courseId", courseID), zap.String("instructorId", instructorID))
	return nil
}

func (s *CourseService) invalidateAnalytics(ctx context.Context, instructorID string) {
	if err := s.cache.Invalidate(ctx, analyticsCacheKey(instructorID)); err != nil {
		s.logger.Warn("analytics cache invalidation failed", zap.Error(err))
	}
}

// ownedCourse loads a course and verifies the caller owns it. A missing
// course reports NOT_FOUND before any ownership check.
func (s *CourseService) ownedCourse(ctx context.Context, instructorID, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.InstructorID != instructorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not own this course")
	}
	return course, nil
}

func (s *CourseService) buildDetails(ctx context.Context, courses []models.Course) ([]models.CourseDetail, error) {
	ids := make([]string, 0, len(courses))
	for _, course := range courses {
		ids = append(ids, course.ID)
	}

	summaries, err := s.reviews.AggregateByCourses(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate reviews")
	}
	counts, err := s.enrollments.CountByCourses(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}

	details := make([]models.CourseDetail, 0, len(courses))
	for _, course := range courses {
		detail := newCourseDetail(course)
		if summary, ok := summaries[course.ID]; ok {
			detail.AverageRating = summary.AverageRating
			detail.TotalReviews = summary.TotalReviews
		}
		detail.TotalStudents = counts[course.ID]
		details = append(details, *detail)
	}
	return details, nil
}

func newCourseDetail(course models.Course) *models.CourseDetail {
	return &models.CourseDetail{
		Course: course,
		Level:  strings.ToUpper(string(course.Level)),
	}
}
