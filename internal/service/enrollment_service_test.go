package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/koyo-learn/koyo-api/internal/models"
	appErrors "github.com/koyo-learn/koyo-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]*models.Enrollment
	completed   map[string]map[string]bool
	counts      map[string]int
}

func newMockEnrollmentRepo() *mockEnrollmentRepo {
	return &mockEnrollmentRepo{
		enrollments: map[string]*models.Enrollment{},
		completed:   map[string]map[string]bool{},
		counts:      map[string]int{},
	}
}

func enrollmentKey(courseID, studentID string) string {
	return courseID + "/" + studentID
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "e-" + enrollmentKey(enrollment.CourseID, enrollment.StudentID)
	enrollment.EnrolledAt = time.Now()
	m.enrollments[enrollmentKey(enrollment.CourseID, enrollment.StudentID)] = enrollment
	return nil
}

func (m *mockEnrollmentRepo) FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Enrollment, error) {
	enrollment, ok := m.enrollments[enrollmentKey(courseID, studentID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *enrollment
	return &copied, nil
}

func (m *mockEnrollmentRepo) Exists(ctx context.Context, courseID, studentID string) (bool, error) {
	_, ok := m.enrollments[enrollmentKey(courseID, studentID)]
	return ok, nil
}

func (m *mockEnrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, enrollment := range m.enrollments {
		if enrollment.StudentID == studentID {
			out = append(out, *enrollment)
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) CountByCourses(ctx context.Context, courseIDs []string) (map[string]int, error) {
	out := map[string]int{}
	for _, id := range courseIDs {
		out[id] = m.counts[id]
	}
	return out, nil
}

func (m *mockEnrollmentRepo) HasCompletedLesson(ctx context.Context, enrollmentID, lessonID string) (bool, error) {
	return m.completed[enrollmentID][lessonID], nil
}

func (m *mockEnrollmentRepo) CompleteLesson(ctx context.Context, enrollmentID, lessonID string, progress float64, accessedAt time.Time) error {
	if m.completed[enrollmentID] == nil {
		m.completed[enrollmentID] = map[string]bool{}
	}
	m.completed[enrollmentID][lessonID] = true
	for _, enrollment := range m.enrollments {
		if enrollment.ID == enrollmentID {
			enrollment.Progress = progress
			enrollment.LastAccessedAt = accessedAt
		}
	}
	return nil
}

func (m *mockEnrollmentRepo) ListCompletedLessons(ctx context.Context, enrollmentID string) ([]models.Lesson, error) {
	var out []models.Lesson
	for lessonID := range m.completed[enrollmentID] {
		out = append(out, models.Lesson{ID: lessonID})
	}
	return out, nil
}

func (m *mockEnrollmentRepo) CountCompletedLessons(ctx context.Context, enrollmentID string) (int, error) {
	return len(m.completed[enrollmentID]), nil
}

type mockLessonLookupRepo struct {
	lessons map[string]*models.Lesson
	total   map[string]int
}

func (m *mockLessonLookupRepo) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, ok := m.lessons[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return lesson, nil
}

func (m *mockLessonLookupRepo) CountByCourse(ctx context.Context, courseID string) (int, error) {
	return m.total[courseID], nil
}

func newEnrollmentService(enrollments *mockEnrollmentRepo, courses *mockCourseRepo, lessons *mockLessonLookupRepo) *EnrollmentService {
	if lessons == nil {
		lessons = &mockLessonLookupRepo{lessons: map[string]*models.Lesson{}, total: map[string]int{}}
	}
	reviews := &mockReviewAggRepo{aggregates: map[string]models.RatingSummary{}}
	return NewEnrollmentService(enrollments, courses, lessons, reviews, nil, nil, zap.NewNop())
}

func TestEnrollSuccess(t *testing.T) {
	enrollments := newMockEnrollmentRepo()
	courses := newMockCourseRepo(sampleCourse("c1", "i1"))
	svc := newEnrollmentService(enrollments, courses, nil)

	enrollment, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", enrollment.CourseID)
	assert.Zero(t, enrollment.Progress)
}

func TestEnrollInvalidatesAnalyticsCache(t *testing.T) {
	enrollments := newMockEnrollmentRepo()
	courses := newMockCourseRepo(sampleCourse("c1", "i1"))
	lessons := &mockLessonLookupRepo{lessons: map[string]*models.Lesson{}, total: map[string]int{}}
	reviews := &mockReviewAggRepo{aggregates: map[string]models.RatingSummary{}}
	cacheSvc, cacheRepo := newRecordingCache()
	svc := NewEnrollmentService(enrollments, courses, lessons, reviews, cacheSvc, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.Contains(t, cacheRepo.patterns, "analytics:instructor:i1")
}

func TestEnrollCourseNotFound(t *testing.T) {
	svc := newEnrollmentService(newMockEnrollmentRepo(), newMockCourseRepo(), nil)

	_, err := svc.Enroll(context.Background(), "s1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollTwiceConflicts(t *testing.T) {
	enrollments := newMockEnrollmentRepo()
	courses := newMockCourseRepo(sampleCourse("c1", "i1"))
	svc := newEnrollmentService(enrollments, courses, nil)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), "s1", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}

func TestMarkLessonCompleteUpdatesProgress(t *testing.T) {
	enrollments := newMockEnrollmentRepo()
	courses := newMockCourseRepo(sampleCourse("c1", "i1"))
	lessons := &mockLessonLookupRepo{
		lessons: map[string]*models.Lesson{
			"l1": {ID: "l1", CourseID: "c1"},
			"l2": {ID: "l2", CourseID: "c1"},
			"l3": {ID: "l3", CourseID: "c1"},
			"l4": {ID: "l4", CourseID: "c1"},
		},
		total: map[string]int{"c1": 4},
	}
	svc := newEnrollmentService(enrollments, courses, lessons)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)

	enrollment, err := svc.MarkLessonComplete(context.Background(), "s1", "l1")
	require.NoError(t, err)
	assert.InDelta(t, 25.0, enrollment.Progress, 0.001)

	enrollment, err = svc.MarkLessonComplete(context.Background(), "s1", "l2")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, enrollment.Progress, 0.001)
}

func TestMarkLessonCompleteRequiresEnrollment(t *testing.T) {
	enrollments := newMockEnrollmentRepo()
	courses := newMockCourseRepo(sampleCourse("c1", "i1"))
	lessons := &mockLessonLookupRepo{
		lessons: map[string]*models.Lesson{"l1": {ID: "l1", CourseID: "c1"}},
		total:   map[string]int{"c1": 1},
	}
	svc := newEnrollmentService(enrollments, courses, lessons)

	_, err := svc.MarkLessonComplete(context.Background(), "s1", "l1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestMarkLessonCompleteRejectsRepeat(t *testing.T) {
	enrollments := newMockEnrollmentRepo()
	courses := newMockCourseRepo(sampleCourse("c1", "i1"))
	lessons := &mockLessonLookupRepo{
		lessons: map[string]*models.Lesson{"l1": {ID: "l1", CourseID: "c1"}},
		total:   map[string]int{"c1": 1},
	}
	svc := newEnrollmentService(enrollments, courses, lessons)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)

	_, err = svc.MarkLessonComplete(context.Background(), "s1", "l1")
	require.NoError(t, err)

	_, err = svc.MarkLessonComplete(context.Background(), "s1", "l1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBadUserInput.Code, appErrors.FromError(err).Code)
}

func TestMarkLessonCompleteUnknownLesson(t *testing.T) {
	svc := newEnrollmentService(newMockEnrollmentRepo(), newMockCourseRepo(), nil)

	_, err := svc.MarkLessonComplete(context.Background(), "s1", "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMyCoursesResolvesCourses(t *testing.T) {
	enrollments := newMockEnrollmentRepo()
	courses := newMockCourseRepo(sampleCourse("c1", "i1"))
	svc := newEnrollmentService(enrollments, courses, nil)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)

	details, err := svc.MyCourses(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.NotNil(t, details[0].Course)
	assert.Equal(t, "c1", details[0].Course.ID)
	assert.Equal(t, "BEGINNER", details[0].Course.Level)
}

func TestMyCoursesIncludesCompletedLessons(t *testing.T) {
	enrollments := newMockEnrollmentRepo()
	courses := newMockCourseRepo(sampleCourse("c1", "i1"))
	lessons := &mockLessonLookupRepo{
		lessons: map[string]*models.Lesson{"l1": {ID: "l1", CourseID: "c1"}},
		total:   map[string]int{"c1": 2},
	}
	svc := newEnrollmentService(enrollments, courses, lessons)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)
	_, err = svc.MarkLessonComplete(context.Background(), "s1", "l1")
	require.NoError(t, err)

	details, err := svc.MyCourses(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Len(t, details[0].CompletedLessons, 1)
	assert.Equal(t, "l1", details[0].CompletedLessons[0].ID)
}

func TestGetEnrollmentIncludesCompletedLessons(t *testing.T) {
	enrollments := newMockEnrollmentRepo()
	courses := newMockCourseRepo(sampleCourse("c1", "i1"))
	lessons := &mockLessonLookupRepo{
		lessons: map[string]*models.Lesson{"l1": {ID: "l1", CourseID: "c1"}},
		total:   map[string]int{"c1": 1},
	}
	svc := newEnrollmentService(enrollments, courses, lessons)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)
	_, err = svc.MarkLessonComplete(context.Background(), "s1", "l1")
	require.NoError(t, err)

	detail, err := svc.Get(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.Len(t, detail.CompletedLessons, 1)
	assert.InDelta(t, 100.0, detail.Progress, 0.001)
}

func TestStateNotEnrolled(t *testing.T) {
	svc := newEnrollmentService(newMockEnrollmentRepo(), newMockCourseRepo(sampleCourse("c1", "i1")), nil)

	state, err := svc.State(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.False(t, state.IsEnrolled)
	assert.Nil(t, state.Enrollment)
}

func TestStateEnrolled(t *testing.T) {
	enrollments := newMockEnrollmentRepo()
	courses := newMockCourseRepo(sampleCourse("c1", "i1"))
	svc := newEnrollmentService(enrollments, courses, nil)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)

	state, err := svc.State(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.True(t, state.IsEnrolled)
	require.NotNil(t, state.Enrollment)
	assert.Equal(t, "c1", state.Enrollment.CourseID)
}
