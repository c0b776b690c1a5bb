package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/koyo-learn/koyo-api/internal/middleware"
	"github.com/koyo-learn/koyo-api/internal/models"
	"github.com/koyo-learn/koyo-api/internal/service"
)

// Handlers bundles the route handlers for registration.
type Handlers struct {
	Auth        *AuthHandler
	Courses     *CourseHandler
	Lessons     *LessonHandler
	Enrollments *EnrollmentHandler
	Reviews     *ReviewHandler
	Media       *MediaHandler
	Analytics   *AnalyticsHandler
	Reports     *ReportHandler
	Presence    *PresenceHandler
}

// RegisterRoutes mounts the API surface under the given prefix.
// Catalogue reads, media serving and signed report downloads are public,
// though catalogue reads still pick up claims when a token is sent;
// everything else runs behind JWT with role checks on top.
func RegisterRoutes(r *gin.Engine, prefix string, authService *service.AuthService, h Handlers) {
	authed := middleware.JWT(authService)
	optional := middleware.OptionalJWT(authService)
	studentOnly := middleware.RequireRoles(models.RoleStudent)
	instructorOnly := middleware.RequireRoles(models.RoleInstructor)

	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.GET("/me", authed, h.Auth.Me)
	}

	courses := api.Group("/courses")
	{
		courses.GET("", optional, h.Courses.List)
		courses.GET("/top-rated", optional, h.Courses.TopRated)
		courses.GET("/:id", optional, h.Courses.Get)
		courses.GET("/:id/lessons", optional, h.Lessons.ListByCourse)
		courses.GET("/:id/reviews", optional, h.Reviews.ListByCourse)

		courses.POST("", authed, instructorOnly, h.Courses.Create)
		courses.PUT("/:id", authed, instructorOnly, h.Courses.Update)
		courses.DELETE("/:id", authed, instructorOnly, h.Courses.Delete)

		courses.POST("/:id/enroll", authed, studentOnly, h.Enrollments.Enroll)
		courses.GET("/:id/enrollment", authed, studentOnly, h.Enrollments.Get)
		courses.GET("/:id/reviews/mine", authed, h.Reviews.Mine)
	}

	lessons := api.Group("/lessons")
	{
		lessons.GET("/:id", optional, h.Lessons.Get)
		lessons.GET("/:id/viewers", authed, h.Presence.Viewers)
		lessons.POST("", authed, instructorOnly, h.Lessons.Create)
		lessons.PUT("/:id", authed, instructorOnly, h.Lessons.Update)
		lessons.DELETE("/:id", authed, instructorOnly, h.Lessons.Delete)
		lessons.POST("/:id/complete", authed, studentOnly, h.Enrollments.CompleteLesson)
	}

	api.GET("/my/courses", authed, studentOnly, h.Enrollments.MyCourses)

	reviews := api.Group("/reviews", authed, studentOnly)
	{
		reviews.POST("", h.Reviews.Add)
		reviews.PUT("/:id", h.Reviews.Update)
		reviews.DELETE("/:id", h.Reviews.Delete)
	}

	media := api.Group("/media")
	{
		media.GET("/:folder/:name", h.Media.Serve)
		media.POST("/images", authed, h.Media.UploadImage)
		media.POST("/videos", authed, h.Media.UploadVideo)
	}

	instructor := api.Group("/instructor", authed, instructorOnly)
	{
		instructor.GET("/courses", h.Courses.InstructorCourses)
		instructor.GET("/analytics", h.Analytics.Get)
		instructor.POST("/analytics/export", h.Reports.Export)
		instructor.GET("/analytics/export/:id", h.Reports.Status)
	}

	// Download links are pre-signed, the token itself is the credential.
	api.GET("/reports/download", h.Reports.Download)
}
