package models

// MonthlyEnrollment is one bucket of the trailing-six-month enrollment
// histogram. Month is formatted YYYY-MM.
type MonthlyEnrollment struct {
	Month string `db:"month" json:"month"`
	Count int    `db:"count" json:"count"`
}

// TopCourse annotates a course with its enrollment count and computed
// revenue (enrollment count times the course's current price).
type TopCourse struct {
	Course          *CourseDetail `json:"course"`
	EnrollmentCount int           `json:"enrollmentCount"`
	Revenue         float64       `json:"revenue"`
}

// InstructorAnalytics is the rollup returned to an instructor about their
// own courses. All fields are zero-valued when the instructor has no
// courses or no enrollments.
type InstructorAnalytics struct {
	TotalStudents      int                 `json:"totalStudents"`
	TotalCourses       int                 `json:"totalCourses"`
	TotalRevenue       float64             `json:"totalRevenue"`
	AverageRating      float64             `json:"averageRating"`
	TotalReviews       int                 `json:"totalReviews"`
	MonthlyEnrollments []MonthlyEnrollment `json:"monthlyEnrollments"`
	TopCourses         []TopCourse         `json:"topCourses"`
}

// ReviewAggregate carries the combined rating stats across a set of courses.
type ReviewAggregate struct {
	AverageRating float64 `db:"average_rating"`
	TotalReviews  int     `db:"total_reviews"`
}
