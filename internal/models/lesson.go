package models

import "time"

// Lesson represents a single video lesson within a course. The (courseId,
// order) pair is unique by convention.
type Lesson struct {
	ID          string    `db:"id" json:"id"`
	CourseID    string    `db:"course_id" json:"courseId"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	VideoURL    string    `db:"video_url" json:"videoURL"`
	Duration    int       `db:"duration" json:"duration"`
	Order       int       `db:"position" json:"order"`
	IsFree      bool      `db:"is_free" json:"isFree"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// CreateLessonRequest is the payload for creating a lesson.
type CreateLessonRequest struct {
	CourseID    string `json:"courseId" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	VideoURL    string `json:"videoURL" validate:"required"`
	Duration    int    `json:"duration" validate:"gte=0"`
	Order       int    `json:"order" validate:"gte=1"`
	IsFree      bool   `json:"isFree"`
}

// UpdateLessonRequest is the payload for updating a lesson.
type UpdateLessonRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	VideoURL    *string `json:"videoURL"`
	Duration    *int    `json:"duration" validate:"omitempty,gte=0"`
	Order       *int    `json:"order" validate:"omitempty,gte=1"`
	IsFree      *bool   `json:"isFree"`
}
