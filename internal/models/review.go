package models

import "time"

// Review is a student's rating of a course. At most one review exists per
// (course, student) pair, enforced by a storage-level unique constraint,
// and the reviewer must hold an enrollment for the course.
type Review struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"courseId"`
	StudentID string    `db:"student_id" json:"studentId"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ReviewDetail is a review with its author resolved.
type ReviewDetail struct {
	Review
	Student *User `json:"student,omitempty"`
}

// AddReviewRequest is the payload for creating a review.
type AddReviewRequest struct {
	CourseID string `json:"courseId" validate:"required"`
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Comment  string `json:"comment" validate:"required,max=500"`
}

// UpdateReviewRequest is the payload for updating a review.
type UpdateReviewRequest struct {
	Rating  *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=500"`
}
