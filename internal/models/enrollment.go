package models

import "time"

// Enrollment is the relationship record granting a student access to a
// course and tracking their completion. At most one enrollment exists per
// (course, student) pair, enforced by a storage-level unique constraint.
type Enrollment struct {
	ID             string    `db:"id" json:"id"`
	CourseID       string    `db:"course_id" json:"courseId"`
	StudentID      string    `db:"student_id" json:"studentId"`
	Progress       float64   `db:"progress" json:"progress"`
	EnrolledAt     time.Time `db:"enrolled_at" json:"enrolledAt"`
	LastAccessedAt time.Time `db:"last_accessed_at" json:"lastAccessedAt"`
}

// EnrollmentDetail is an enrollment with its related records resolved.
type EnrollmentDetail struct {
	Enrollment
	Course           *CourseDetail `json:"course,omitempty"`
	Student          *User         `json:"student,omitempty"`
	CompletedLessons []Lesson      `json:"completedLessons"`
}

// EnrollmentState reports whether a student is enrolled in a course,
// with the enrollment itself when one exists.
type EnrollmentState struct {
	IsEnrolled bool              `json:"isEnrolled"`
	Enrollment *EnrollmentDetail `json:"enrollment,omitempty"`
}

// EnrollmentCount pairs a course with its enrollment tally.
type EnrollmentCount struct {
	CourseID string `db:"course_id"`
	Count    int    `db:"count"`
}
