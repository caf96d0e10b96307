package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exproctor-backend/internal/response"
	"github.com/stemsi/exproctor-backend/internal/service"
)

// MediaHandler handles media upload endpoints.
type MediaHandler struct {
	mediaService *service.MediaService
	log          zerolog.Logger
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(mediaService *service.MediaService, log zerolog.Logger) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
		log:          log.With().Str("component", "media_handler").Logger(),
	}
}

// UploadMedia godoc
// POST /api/v1/admin/media/upload?kind=image|video
// Uploads question media and returns its URL.
func (h *MediaHandler) UploadMedia(c *gin.Context) {
	kind := service.MediaKind(c.DefaultQuery("kind", string(service.MediaImage)))
	if kind != service.MediaImage && kind != service.MediaVideo {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"kind": "kind must be image or video",
		})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	url, err := h.mediaService.Save(file, header.Size, kind)
	if err != nil {
		failMedia(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"url": url})
}
