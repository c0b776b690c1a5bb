package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/koyo-learn/koyo-api/internal/models"
	appErrors "github.com/koyo-learn/koyo-api/pkg/errors"
)

type mockCourseRepo struct {
	courses map[string]*models.Course
	deleted []string
}

func newMockCourseRepo(courses ...*models.Course) *mockCourseRepo {
	m := &mockCourseRepo{courses: map[string]*models.Course{}}
	for _, course := range courses {
		m.courses[course.ID] = course
	}
	return m
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = "c-" + course.Title
	}
	course.CreatedAt = time.Now()
	m.courses[course.ID] = course
	return nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *course
	return &copied, nil
}

func (m *mockCourseRepo) List(ctx context.Context) ([]models.Course, error) {
	out := make([]models.Course, 0, len(m.courses))
	for _, course := range m.courses {
		out = append(out, *course)
	}
	return out, nil
}

func (m *mockCourseRepo) ListByInstructor(ctx context.Context, instructorID string) ([]models.Course, error) {
	var out []models.Course
	for _, course := range m.courses {
		if course.InstructorID == instructorID {
			out = append(out, *course)
		}
	}
	return out, nil
}

func (m *mockCourseRepo) ListByIDs(ctx context.Context, ids []string) ([]models.Course, error) {
	var out []models.Course
	for _, id := range ids {
		if course, ok := m.courses[id]; ok {
			out = append(out, *course)
		}
	}
	return out, nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	m.courses[course.ID] = course
	return nil
}

func (m *mockCourseRepo) DeleteCascade(ctx context.Context, id string) error {
	delete(m.courses, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockLessonListRepo struct {
	lessons map[string][]models.Lesson
}

func (m *mockLessonListRepo) ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error) {
	return m.lessons[courseID], nil
}

type mockEnrollCountRepo struct {
	counts map[string]int
}

func (m *mockEnrollCountRepo) CountByCourse(ctx context.Context, courseID string) (int, error) {
	return m.counts[courseID], nil
}

func (m *mockEnrollCountRepo) CountByCourses(ctx context.Context, courseIDs []string) (map[string]int, error) {
	out := map[string]int{}
	for _, id := range courseIDs {
		if n, ok := m.counts[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

type mockReviewAggRepo struct {
	aggregates map[string]models.RatingSummary
	topRated   []models.RatingSummary
}

func (m *mockReviewAggRepo) AggregateForCourse(ctx context.Context, courseID string) (*models.ReviewAggregate, error) {
	if summary, ok := m.aggregates[courseID]; ok {
		return &models.ReviewAggregate{AverageRating: summary.AverageRating, TotalReviews: summary.TotalReviews}, nil
	}
	return &models.ReviewAggregate{}, nil
}

func (m *mockReviewAggRepo) AggregateByCourses(ctx context.Context, courseIDs []string) (map[string]models.RatingSummary, error) {
	out := map[string]models.RatingSummary{}
	for _, id := range courseIDs {
		if summary, ok := m.aggregates[id]; ok {
			out[id] = summary
		}
	}
	return out, nil
}

func (m *mockReviewAggRepo) TopRated(ctx context.Context, limit int) ([]models.RatingSummary, error) {
	if len(m.topRated) > limit {
		return m.topRated[:limit], nil
	}
	return m.topRated, nil
}

type mockUserLookupRepo struct {
	users map[string]*models.User
}

func (m *mockUserLookupRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserLookupRepo) ListByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if user, ok := m.users[id]; ok {
			out = append(out, *user)
		}
	}
	return out, nil
}

type recordingCacheRepo struct {
	patterns []string
}

func (m *recordingCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (m *recordingCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (m *recordingCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

func newRecordingCache() (*CacheService, *recordingCacheRepo) {
	repo := &recordingCacheRepo{}
	return NewCacheService(repo, nil, time.Minute, zap.NewNop(), true), repo
}

func sampleCourse(id, instructorID string) *models.Course {
	return &models.Course{
		ID:           id,
		Title:        "Go from Zero",
		Description:  "All of Go",
		Category:     "programming",
		Price:        50,
		Level:        models.LevelBeginner,
		InstructorID: instructorID,
	}
}

func newCourseService(courses *mockCourseRepo, lessons *mockLessonListRepo, enrollments *mockEnrollCountRepo, reviews *mockReviewAggRepo, users *mockUserLookupRepo) *CourseService {
	if lessons == nil {
		lessons = &mockLessonListRepo{lessons: map[string][]models.Lesson{}}
	}
	if enrollments == nil {
		enrollments = &mockEnrollCountRepo{counts: map[string]int{}}
	}
	if reviews == nil {
		reviews = &mockReviewAggRepo{aggregates: map[string]models.RatingSummary{}}
	}
	if users == nil {
		users = &mockUserLookupRepo{users: map[string]*models.User{}}
	}
	return NewCourseService(courses, lessons, enrollments, reviews, users, nil, time.Minute, validator.New(), zap.NewNop())
}

func TestCourseGetResolvesDerivedFields(t *testing.T) {
	courses := newMockCourseRepo(sampleCourse("c1", "i1"))
	lessons := &mockLessonListRepo{lessons: map[string][]models.Lesson{
		"c1": {{ID: "l1", CourseID: "c1", Order: 1}, {ID: "l2", CourseID: "c1", Order: 2}},
	}}
	enrollments := &mockEnrollCountRepo{counts: map[string]int{"c1": 7}}
	reviews := &mockReviewAggRepo{aggregates: map[string]models.RatingSummary{
		"c1": {CourseID: "c1", AverageRating: 4.5, TotalReviews: 2},
	}}
	users := &mockUserLookupRepo{users: map[string]*models.User{"i1": {ID: "i1", Name: "Grace"}}}

	svc := newCourseService(courses, lessons, enrollments, reviews, users)
	detail, err := svc.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "BEGINNER", detail.Level)
	assert.Equal(t, "Grace", detail.Instructor.Name)
	assert.Len(t, detail.Lessons, 2)
	assert.InDelta(t, 4.5, detail.AverageRating, 0.001)
	assert.Equal(t, 2, detail.TotalReviews)
	assert.Equal(t, 7, detail.TotalStudents)
}

func TestCourseGetNotFound(t *testing.T) {
	svc := newCourseService(newMockCourseRepo(), nil, nil, nil, nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseCreateNormalizesLevel(t *testing.T) {
	courses := newMockCourseRepo()
	svc := newCourseService(courses, nil, nil, nil, nil)

	detail, err := svc.Create(context.Background(), "i1", models.CreateCourseRequest{
		Title:       "Go from Zero",
		Description: "All of Go",
		Category:    "programming",
		Price:       50,
		Level:       "BEGINNER",
	})
	require.NoError(t, err)
	assert.Equal(t, models.LevelBeginner, detail.Course.Level)
	assert.Equal(t, "BEGINNER", detail.Level)
	assert.Equal(t, "i1", detail.Course.InstructorID)
}

func TestCourseWritesInvalidateAnalyticsCache(t *testing.T) {
	courses := newMockCourseRepo(sampleCourse("c1", "i1"))
	cacheSvc, cacheRepo := newRecordingCache()
	svc := NewCourseService(
		courses,
		&mockLessonListRepo{lessons: map[string][]models.Lesson{}},
		&mockEnrollCountRepo{counts: map[string]int{}},
		&mockReviewAggRepo{aggregates: map[string]models.RatingSummary{}},
		&mockUserLookupRepo{users: map[string]*models.User{}},
		cacheSvc, time.Minute, validator.New(), zap.NewNop(),
	)

	_, err := svc.Create(context.Background(), "i1", models.CreateCourseRequest{
		Title:       "Go from Zero",
		Description: "All of Go",
		Category:    "programming",
		Price:       50,
		Level:       "BEGINNER",
	})
	require.NoError(t, err)
	assert.Contains(t, cacheRepo.patterns, "analytics:instructor:i1")

	cacheRepo.patterns = nil
	price := 75.0
	_, err = svc.Update(context.Background(), "i1", "c1", models.UpdateCourseRequest{Price: &price})
	require.NoError(t, err)
	assert.Contains(t, cacheRepo.patterns, "analytics:instructor:i1")

	cacheRepo.patterns = nil
	require.NoError(t, svc.Delete(context.Background(), "i1", "c1"))
	assert.Contains(t, cacheRepo.patterns, "analytics:instructor:i1")
	assert.Contains(t, cacheRepo.patterns, topRatedCacheKey+"*")
}

func TestCourseCreateRejectsUnknownLevel(t *testing.T) {
	svc := newCourseService(newMockCourseRepo(), nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), "i1", models.CreateCourseRequest{
		Title:       "Go from Zero",
		Description: "All of Go",
		Category:    "programming",
		Level:       "expert",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCourseUpdateForbiddenForNonOwner(t *testing.T) {
	courses := newMockCourseRepo(sampleCourse("c1", "i1"))
	svc := newCourseService(courses, nil, nil, nil, nil)

	title := "New title"
	_, err := svc.Update(context.Background(), "i2", "c1", models.UpdateCourseRequest{Title: &title})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCourseUpdateAppliesPartialFields(t *testing.T) {
	courses := newMockCourseRepo(sampleCourse("c1", "i1"))
	svc := newCourseService(courses, nil, nil, nil, nil)

	price := 75.0
	detail, err := svc.Update(context.Background(), "i1", "c1", models.UpdateCourseRequest{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 75.0, detail.Course.Price)
	assert.Equal(t, "Go from Zero", detail.Course.Title)
}

func TestCourseDeleteCascades(t *testing.T) {
	courses := newMockCourseRepo(sampleCourse("c1", "i1"))
	svc := newCourseService(courses, nil, nil, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "i1", "c1"))
	assert.Equal(t, []string{"c1"}, courses.deleted)

	err := svc.Delete(context.Background(), "i1", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseTopRatedClampsLimit(t *testing.T) {
	courses := newMockCourseRepo(sampleCourse("c1", "i1"), sampleCourse("c2", "i1"))
	reviews := &mockReviewAggRepo{topRated: []models.RatingSummary{
		{CourseID: "c2", AverageRating: 4.9, TotalReviews: 3},
		{CourseID: "c1", AverageRating: 4.2, TotalReviews: 8},
	}}
	svc := newCourseService(courses, nil, nil, reviews, nil)

	top, err := svc.TopRated(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "c2", top[0].Course.ID)

	top, err = svc.TopRated(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, top, 2)

	top, err = svc.TopRated(context.Background(), 500)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}
