package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/koyo-learn/koyo-api/internal/service"
	appErrors "github.com/koyo-learn/koyo-api/pkg/errors"
	"github.com/koyo-learn/koyo-api/pkg/response"
)

// AnalyticsHandler wires HTTP endpoints to the analytics service.
type AnalyticsHandler struct {
	service *service.AnalyticsService
}

// NewAnalyticsHandler creates a new handler.
func NewAnalyticsHandler(svc *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: svc}
}

// Get godoc
// @Summary Aggregated analytics for the current instructor
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /instructor/analytics [get]
func (h *AnalyticsHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	analytics, err := h.service.ForInstructor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics)
}
