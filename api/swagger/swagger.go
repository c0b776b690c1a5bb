package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Koyo API",
        "description": "Online learning platform: courses, lessons, enrollments, reviews and instructor analytics",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Authentication", "description": "Registration, login and current account"},
        {"name": "Courses", "description": "Course catalogue and instructor course management"},
        {"name": "Lessons", "description": "Lesson content per course"},
        {"name": "Enrollments", "description": "Enrollment and lesson progress"},
        {"name": "Reviews", "description": "Course ratings by enrolled students"},
        {"name": "Media", "description": "Data URI uploads and media serving"},
        {"name": "Analytics", "description": "Instructor dashboard rollup and exports"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register a new account",
                "responses": {
                    "201": {"description": "Account created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload"},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Token issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current account",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Current user", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing or invalid token"}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "Browse the course catalogue",
                "responses": {
                    "200": {"description": "Course list", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Create a course",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Course created"},
                    "403": {"description": "Instructor role required"}
                }
            }
        },
        "/courses/top-rated": {
            "get": {
                "tags": ["Courses"],
                "summary": "Highest rated courses",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer", "description": "Result limit (1-10, default 10)"}
                ],
                "responses": {
                    "200": {"description": "Top rated courses"}
                }
            }
        },
        "/courses/{id}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Course detail",
                "responses": {
                    "200": {"description": "Course"},
                    "404": {"description": "Course not found"}
                }
            },
            "put": {
                "tags": ["Courses"],
                "summary": "Update an owned course",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Course updated"},
                    "403": {"description": "Not the course owner"}
                }
            },
            "delete": {
                "tags": ["Courses"],
                "summary": "Delete an owned course and its dependents",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Course deleted"},
                    "403": {"description": "Not the course owner"}
                }
            }
        },
        "/courses/{id}/lessons": {
            "get": {
                "tags": ["Lessons"],
                "summary": "Lessons for a course",
                "responses": {
                    "200": {"description": "Lesson list"},
                    "404": {"description": "Course not found"}
                }
            }
        },
        "/courses/{id}/enroll": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll in a course",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Enrollment created"},
                    "409": {"description": "Already enrolled"}
                }
            }
        },
        "/courses/{id}/enrollment": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Enrollment state for a course",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "isEnrolled flag with the enrollment and completed lessons when present"}
                }
            }
        },
        "/courses/{id}/reviews": {
            "get": {
                "tags": ["Reviews"],
                "summary": "Reviews for a course",
                "responses": {
                    "200": {"description": "Review list"},
                    "404": {"description": "Course not found"}
                }
            }
        },
        "/courses/{id}/reviews/mine": {
            "get": {
                "tags": ["Reviews"],
                "summary": "The current student's review for a course",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Review"},
                    "404": {"description": "No review yet"}
                }
            }
        },
        "/lessons": {
            "post": {
                "tags": ["Lessons"],
                "summary": "Add a lesson to an owned course",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Lesson created"},
                    "403": {"description": "Not the course owner"}
                }
            }
        },
        "/lessons/{id}": {
            "get": {
                "tags": ["Lessons"],
                "summary": "Lesson detail",
                "responses": {
                    "200": {"description": "Lesson"},
                    "404": {"description": "Lesson not found"}
                }
            },
            "put": {
                "tags": ["Lessons"],
                "summary": "Update a lesson in an owned course",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Lesson updated"},
                    "403": {"description": "Not the course owner"}
                }
            },
            "delete": {
                "tags": ["Lessons"],
                "summary": "Remove a lesson from an owned course",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Lesson deleted"},
                    "403": {"description": "Not the course owner"}
                }
            }
        },
        "/lessons/{id}/viewers": {
            "get": {
                "tags": ["Lessons"],
                "summary": "Stream the lesson's live viewer count",
                "produces": ["text/event-stream"],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "viewer-count event stream"},
                    "404": {"description": "Lesson not found"}
                }
            }
        },
        "/lessons/{id}/complete": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Mark a lesson as completed",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Updated enrollment with recomputed progress"},
                    "400": {"description": "Lesson already completed"},
                    "403": {"description": "Not enrolled in the lesson's course"}
                }
            }
        },
        "/my/courses": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Courses the current student is enrolled in",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Enrolled courses"}
                }
            }
        },
        "/reviews": {
            "post": {
                "tags": ["Reviews"],
                "summary": "Review an enrolled course",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Review created"},
                    "403": {"description": "Enrollment required"},
                    "409": {"description": "Course already reviewed"}
                }
            }
        },
        "/reviews/{id}": {
            "put": {
                "tags": ["Reviews"],
                "summary": "Update an owned review",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Review updated"},
                    "403": {"description": "Not the review author"}
                }
            },
            "delete": {
                "tags": ["Reviews"],
                "summary": "Delete an owned review",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Review deleted"},
                    "403": {"description": "Not the review author"}
                }
            }
        },
        "/media/images": {
            "post": {
                "tags": ["Media"],
                "summary": "Upload a base64 encoded image",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Stored asset"},
                    "400": {"description": "Malformed or oversized data URI"}
                }
            }
        },
        "/media/videos": {
            "post": {
                "tags": ["Media"],
                "summary": "Upload a base64 encoded video",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Stored asset"},
                    "400": {"description": "Malformed or oversized data URI"}
                }
            }
        },
        "/media/{folder}/{name}": {
            "get": {
                "tags": ["Media"],
                "summary": "Serve a stored media file",
                "responses": {
                    "200": {"description": "File stream"},
                    "404": {"description": "Media not found"}
                }
            }
        },
        "/instructor/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "Courses owned by the current instructor",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Instructor courses"}
                }
            }
        },
        "/instructor/analytics": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Aggregated analytics for the current instructor",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Dashboard rollup"}
                }
            }
        },
        "/instructor/analytics/export": {
            "post": {
                "tags": ["Analytics"],
                "summary": "Queue an analytics export",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Export queued"},
                    "400": {"description": "Unsupported format"}
                }
            }
        },
        "/instructor/analytics/export/{id}": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Poll an analytics export",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Job status with signed download URL once completed"},
                    "403": {"description": "Not the job owner"}
                }
            }
        },
        "/reports/download": {
            "get": {
                "tags": ["Analytics"],
                "summary": "Download a rendered export via a signed token",
                "parameters": [
                    {"name": "token", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
