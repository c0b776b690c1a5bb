package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/koyo-learn/koyo-api/internal/models"
	"github.com/koyo-learn/koyo-api/internal/service"
	appErrors "github.com/koyo-learn/koyo-api/pkg/errors"
	"github.com/koyo-learn/koyo-api/pkg/response"
)

// MediaHandler wires HTTP endpoints to the media service.
type MediaHandler struct {
	service *service.MediaService
}

// NewMediaHandler creates a new handler.
func NewMediaHandler(svc *service.MediaService) *MediaHandler {
	return &MediaHandler{service: svc}
}

// UploadImage godoc
// @Summary Upload a base64 encoded image
// @Tags Media
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.UploadRequest true "Data URI payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /media/images [post]
func (h *MediaHandler) UploadImage(c *gin.Context) {
	h.upload(c, service.MediaKindImage)
}

// UploadVideo godoc
// @Summary Upload a base64 encoded video
// @Tags Media
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.UploadRequest true "Data URI payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /media/videos [post]
func (h *MediaHandler) UploadVideo(c *gin.Context) {
	h.upload(c, service.MediaKindVideo)
}

func (h *MediaHandler) upload(c *gin.Context, kind service.MediaKind) {
	var req models.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload payload"))
		return
	}

	asset, err := h.service.Upload(c.Request.Context(), kind, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, asset)
}

// Serve godoc
// @Summary Serve a stored media file
// @Tags Media
// @Produce octet-stream
// @Param folder path string true "Folder"
// @Param name path string true "File name"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /media/{folder}/{name} [get]
func (h *MediaHandler) Serve(c *gin.Context) {
	file, contentType, err := h.service.Open(c.Request.Context(), c.Param("folder"), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read media"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
