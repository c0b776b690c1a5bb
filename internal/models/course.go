package models

import (
	"strings"
	"time"
)

// CourseLevel is the difficulty tier of a course. Levels are stored
// lowercase and rendered uppercase in API responses.
type CourseLevel string

const (
	LevelBeginner     CourseLevel = "beginner"
	LevelIntermediate CourseLevel = "intermediate"
	LevelAdvanced     CourseLevel = "advanced"
)

// NormalizeLevel lowercases a client-supplied level value.
func NormalizeLevel(raw string) CourseLevel {
	return CourseLevel(strings.ToLower(strings.TrimSpace(raw)))
}

// Valid reports whether the level is a known tier.
func (l CourseLevel) Valid() bool {
	return l == LevelBeginner || l == LevelIntermediate || l == LevelAdvanced
}

// Course represents a video course authored by an instructor.
type Course struct {
	ID           string      `db:"id" json:"id"`
	Title        string      `db:"title" json:"title"`
	Description  string      `db:"description" json:"description"`
	Thumbnail    string      `db:"thumbnail" json:"thumbnail"`
	Category     string      `db:"category" json:"category"`
	Price        float64     `db:"price" json:"price"`
	Level        CourseLevel `db:"level" json:"-"`
	InstructorID string      `db:"instructor_id" json:"-"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`
}

// CourseDetail is a course with its derived, per-request fields resolved.
// None of the derived fields are stored or cached server-side.
type CourseDetail struct {
	Course
	Level         string   `json:"level"`
	Instructor    *User    `json:"instructor,omitempty"`
	Lessons       []Lesson `json:"lessons,omitempty"`
	AverageRating float64  `json:"averageRating"`
	TotalReviews  int      `json:"totalReviews"`
	TotalStudents int      `json:"totalStudents"`
}

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	Title       string  `json:"title" validate:"required,max=100"`
	Description string  `json:"description" validate:"required"`
	Thumbnail   string  `json:"thumbnail"`
	Category    string  `json:"category" validate:"required"`
	Price       float64 `json:"price" validate:"gte=0"`
	Level       string  `json:"level" validate:"required"`
}

// UpdateCourseRequest is the payload for updating a course. Nil fields
// are left untouched.
type UpdateCourseRequest struct {
	Title       *string  `json:"title" validate:"omitempty,max=100"`
	Description *string  `json:"description"`
	Thumbnail   *string  `json:"thumbnail"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Level       *string  `json:"level"`
}

// RatingSummary carries per-course review aggregates.
type RatingSummary struct {
	CourseID      string  `db:"course_id" json:"courseId"`
	AverageRating float64 `db:"average_rating" json:"averageRating"`
	TotalReviews  int     `db:"total_reviews" json:"totalReviews"`
}
