package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/koyo-learn/koyo-api/internal/models"
	appErrors "github.com/koyo-learn/koyo-api/pkg/errors"
)

const (
	analyticsCacheKeyPrefix = "analytics:instructor:"
	analyticsMonths         = 6
	analyticsTopCourses     = 5
)

func analyticsCacheKey(instructorID string) string {
	return analyticsCacheKeyPrefix + instructorID
}

type analyticsRepository interface {
	CountStudents(ctx context.Context, instructorID string) (int, error)
	TotalRevenue(ctx context.Context, instructorID string) (float64, error)
	MonthlyEnrollments(ctx context.Context, instructorID string, since time.Time) ([]models.MonthlyEnrollment, error)
	TopCoursesByEnrollment(ctx context.Context, instructorID string, limit int) ([]models.EnrollmentCount, error)
	ReviewAggregate(ctx context.Context, instructorID string) (*models.ReviewAggregate, error)
}

type analyticsCourseRepository interface {
	ListByInstructor(ctx context.Context, instructorID string) ([]models.Course, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Course, error)
}

// AnalyticsService assembles the per-instructor dashboard rollup.
type AnalyticsService struct {
	analytics analyticsRepository
	courses   analyticsCourseRepository
	cache     *CacheService
	cacheTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnalyticsService constructs an AnalyticsService instance. cache may
// be nil to disable caching.
func NewAnalyticsService(analytics analyticsRepository, courses analyticsCourseRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		analytics: analytics,
		courses:   courses,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// ForInstructor returns the instructor's dashboard rollup. Every field is
// zero-valued when the instructor has no courses or enrollments. Revenue
// is the enrollment count times each course's current price; the data
// model keeps no point-of-sale price, so repriced courses shift the
// reported figure.
func (s *AnalyticsService) ForInstructor(ctx context.Context, instructorID string) (*models.InstructorAnalytics, error) {
	cacheKey := analyticsCacheKey(instructorID)
	var cached models.InstructorAnalytics
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	courses, err := s.courses.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	students, err := s.analytics.CountStudents(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}

	revenue, err := s.analytics.TotalRevenue(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute revenue")
	}

	agg, err := s.analytics.ReviewAggregate(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate reviews")
	}

	monthly, err := s.monthlyHistogram(ctx, instructorID)
	if err != nil {
		return nil, err
	}

	top, err := s.topCourses(ctx, instructorID)
	if err != nil {
		return nil, err
	}

	analytics := &models.InstructorAnalytics{
		TotalStudents:      students,
		TotalCourses:       len(courses),
		TotalRevenue:       revenue,
		AverageRating:      agg.AverageRating,
		TotalReviews:       agg.TotalReviews,
		MonthlyEnrollments: monthly,
		TopCourses:         top,
	}

	if err := s.cache.Set(ctx, cacheKey, analytics, s.cacheTTL); err != nil {
		s.logger.Warn("analytics cache write failed", zap.Error(err))
	}

	return analytics, nil
}

// monthlyHistogram buckets enrollments per calendar month over the
// trailing six months including the current one. Only months that saw at
// least one enrollment appear; an instructor with none gets an empty
// slice.
func (s *AnalyticsService) monthlyHistogram(ctx context.Context, instructorID string) ([]models.MonthlyEnrollment, error) {
	now := s.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(analyticsMonths - 1), 0)

	rows, err := s.analytics.MonthlyEnrollments(ctx, instructorID, start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bucket enrollments")
	}
	if rows == nil {
		rows = []models.MonthlyEnrollment{}
	}
	return rows, nil
}

// topCourses returns the instructor's five most-enrolled courses with
// per-course revenue.
func (s *AnalyticsService) topCourses(ctx context.Context, instructorID string) ([]models.TopCourse, error) {
	ranked, err := s.analytics.TopCoursesByEnrollment(ctx, instructorID, analyticsTopCourses)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank courses")
	}

	ids := make([]string, 0, len(ranked))
	for _, row := range ranked {
		ids = append(ids, row.CourseID)
	}
	courses, err := s.courses.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	byID := make(map[string]models.Course, len(courses))
	for _, course := range courses {
		byID[course.ID] = course
	}

	top := make([]models.TopCourse, 0, len(ranked))
	for _, row := range ranked {
		course, ok := byID[row.CourseID]
		if !ok {
			continue
		}
		top = append(top, models.TopCourse{
			Course:          &models.CourseDetail{Course: course, Level: strings.ToUpper(string(course.Level)), TotalStudents: row.Count},
			EnrollmentCount: row.Count,
			Revenue:         float64(row.Count) * course.Price,
		})
	}
	return top, nil
}
