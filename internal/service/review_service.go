package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/koyo-learn/koyo-api/internal/models"
	"github.com/koyo-learn/koyo-api/internal/repository"
	appErrors "github.com/koyo-learn/koyo-api/pkg/errors"
)

type reviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	FindByID(ctx context.Context, id string) (*models.Review, error)
	FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Review, error)
	Exists(ctx context.Context, courseID, studentID string) (bool, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Review, error)
	Update(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, id string) error
}

type reviewCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type reviewEnrollmentRepository interface {
	Exists(ctx context.Context, courseID, studentID string) (bool, error)
}

type reviewUserRepository interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// ReviewService manages course reviews. Writing a review requires an
// enrollment in the course, and each student may hold at most one review
// per course.
type ReviewService struct {
	reviews     reviewRepository
	courses     reviewCourseRepository
	enrollments reviewEnrollmentRepository
	users       reviewUserRepository
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReviewService constructs a ReviewService instance. cache may be nil.
func NewReviewService(
	reviews reviewRepository,
	courses reviewCourseRepository,
	enrollments reviewEnrollmentRepository,
	users reviewUserRepository,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReviewService{
		reviews:     reviews,
		courses:     courses,
		enrollments: enrollments,
		users:       users,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// ListByCourse returns a course's reviews with their authors resolved.
func (s *ReviewService) ListByCourse(ctx context.Context, courseID string) ([]models.ReviewDetail, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	reviews, err := s.reviews.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}

	ids := make([]string, 0, len(reviews))
	for _, review := range reviews {
		ids = append(ids, review.StudentID)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review authors")
	}
	byID := make(map[string]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	details := make([]models.ReviewDetail, 0, len(reviews))
	for _, review := range reviews {
		detail := models.ReviewDetail{Review: review}
		if user, ok := byID[review.StudentID]; ok {
			student := user
			detail.Student = &student
		}
		details = append(details, detail)
	}
	return details, nil
}

// Mine returns the student's own review for a course.
func (s *ReviewService) Mine(ctx context.Context, studentID, courseID string) (*models.Review, error) {
	review, err := s.reviews.FindByCourseAndStudent(ctx, courseID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	return review, nil
}

// Add creates a review by an enrolled student.
func (s *ReviewService) Add(ctx context.Context, studentID string, req models.AddReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	enrolled, err := s.enrollments.Exists(ctx, req.CourseID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you must be enrolled to review this course")
	}

	exists, err := s.reviews.Exists(ctx, req.CourseID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check review")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "you have already reviewed this course")
	}

	review := &models.Review{
		CourseID:  req.CourseID,
		StudentID: studentID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		// the unique index closes the check-then-create race
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "you have already reviewed this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create review")
	}

	s.invalidateCaches(ctx, review.CourseID)
	s.logger.Info("review created", zap.String("reviewId", review.ID), zap.String("courseId", review.CourseID))
	return review, nil
}

// Update applies the non-nil fields of the request to the student's own
// review.
func (s *ReviewService) Update(ctx context.Context, studentID, reviewID string, req models.UpdateReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	review, err := s.ownedReview(ctx, studentID, reviewID)
	if err != nil {
		return nil, err
	}

	if req.Rating != nil {
		review.Rating = *req.Rating
	}
	if req.Comment != nil {
		review.Comment = *req.Comment
	}

	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update review")
	}

	s.invalidateCaches(ctx, review.CourseID)
	return review, nil
}

// Delete removes the student's own review.
func (s *ReviewService) Delete(ctx context.Context, studentID, reviewID string) error {
	review, err := s.ownedReview(ctx, studentID, reviewID)
	if err != nil {
		return err
	}

	if err := s.reviews.Delete(ctx, reviewID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete review")
	}

	s.invalidateCaches(ctx, review.CourseID)
	return nil
}

func (s *ReviewService) ownedReview(ctx context.Context, studentID, reviewID string) (*models.Review, error) {
	review, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	if review.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not own this review")
	}
	return review, nil
}

// invalidateCaches drops the top-rated listing and the owning
// instructor's analytics rollup after a review write.
func (s *ReviewService) invalidateCaches(ctx context.Context, courseID string) {
	if err := s.cache.Invalidate(ctx, topRatedCacheKey+"*"); err != nil {
		s.logger.Warn("top rated cache invalidation failed", zap.Error(err))
	}
	if !s.cache.Enabled() {
		return
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		s.logger.Warn("analytics cache invalidation skipped", zap.String("courseId", courseID), zap.Error(err))
		return
	}
	if err := s.cache.Invalidate(ctx, analyticsCacheKey(course.InstructorID)); err != nil {
		s.logger.Warn("analytics cache invalidation failed", zap.Error(err))
	}
}
