package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/koyo-learn/koyo-api/internal/service"
	appErrors "github.com/koyo-learn/koyo-api/pkg/errors"
	"github.com/koyo-learn/koyo-api/pkg/response"
)

// PresenceHandler streams live lesson viewer counts over server-sent
// events.
type PresenceHandler struct {
	presence *service.PresenceService
	lessons  *service.LessonService
}

// NewPresenceHandler creates a new handler.
func NewPresenceHandler(presence *service.PresenceService, lessons *service.LessonService) *PresenceHandler {
	return &PresenceHandler{presence: presence, lessons: lessons}
}

// Viewers godoc
// @Summary Stream the lesson's live viewer count
// @Description Joins the lesson room and emits a viewer-count event whenever someone joins or leaves. The stream stays open until the client disconnects.
// @Tags Lessons
// @Produce text/event-stream
// @Param id path string true "Lesson ID"
// @Security BearerAuth
// @Success 200 {string} string "viewer-count event stream"
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id}/viewers [get]
func (h *PresenceHandler) Viewers(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	lessonID := c.Param("id")
	if _, err := h.lessons.Get(c.Request.Context(), lessonID); err != nil {
		response.Error(c, err)
		return
	}

	sub := h.presence.Join(lessonID)
	defer h.presence.Leave(sub)

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// the joiner sees the count right away, later changes arrive as events
	c.SSEvent("viewer-count", h.presence.ViewerCount(lessonID))
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case count, ok := <-sub.Updates():
			if !ok {
				return false
			}
			c.SSEvent("viewer-count", count)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
