package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koyo-learn/koyo-api/internal/models"
)

func courseRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "description", "thumbnail", "category", "price", "level", "instructor_id", "created_at", "updated_at"}).
		AddRow("c1", "Go Basics", "Learn Go", "", "programming", 49.99, string(models.LevelBeginner), "i1", now, now)
}

func TestCourseFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, description, thumbnail, category, price, level, instructor_id, created_at, updated_at FROM courses WHERE id = $1")).
		WithArgs("c1").
		WillReturnRows(courseRows(time.Now()))

	course, err := repo.FindByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Go Basics", course.Title)
	assert.Equal(t, "i1", course.InstructorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseListByInstructor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery("SELECT .+ FROM courses WHERE instructor_id = .+ ORDER BY created_at DESC").
		WithArgs("i1").
		WillReturnRows(courseRows(time.Now()))

	courses, err := repo.ListByInstructor(context.Background(), "i1")
	require.NoError(t, err)
	assert.Len(t, courses, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("UPDATE courses SET").WillReturnResult(sqlmock.NewResult(0, 1))

	course := &models.Course{ID: "c1", Title: "Go Basics v2", Category: "programming", Price: 59.99, Level: models.LevelBeginner}
	err := repo.Update(context.Background(), course)
	require.NoError(t, err)
	assert.False(t, course.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseDeleteCascade(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM completed_lessons").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM enrollments").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM reviews").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM lessons").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM courses").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.DeleteCascade(context.Background(), "c1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseDeleteCascadeRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM completed_lessons").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM enrollments").WithArgs("c1").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.DeleteCascade(context.Background(), "c1")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
