package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exproctor-backend/internal/middleware"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stemsi/exproctor-backend/internal/response"
	"github.com/stemsi/exproctor-backend/internal/service"
	"github.com/stemsi/exproctor-backend/internal/validator"
)

// StudentPortalHandler handles student-facing endpoints (lobby, attempts, results).
type StudentPortalHandler struct {
	attemptService *service.AttemptService
	examService    *service.ExamService
	mediaService   *service.MediaService
	log            zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	attemptService *service.AttemptService,
	examService *service.ExamService,
	mediaService *service.MediaService,
	log zerolog.Logger,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		attemptService: attemptService,
		examService:    examService,
		mediaService:   mediaService,
		log:            log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// GetLobby godoc
// GET /api/v1/student/lobby
// Returns exams open to the student's course with their status.
func (h *StudentPortalHandler) GetLobby(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	lobby, err := h.examService.Lobby(c.Request.Context(), claims.Candidate())
	if err != nil {
		h.log.Error().Err(err).Int("student_id", claims.UserID).Msg("Failed to build lobby")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": lobby})
}

// BeginAttempt godoc
// POST /api/v1/student/exams/:exam_id/attempt
// Opens the exam and returns its shuffled questions.
func (h *StudentPortalHandler) BeginAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.FailWithDetails(c, http.StatusBadRequest, response.ErrInvalidID, map[string]string{"redirect": dashboardPath})
		return
	}

	view, err := h.attemptService.BeginAttempt(c.Request.Context(), claims.Candidate(), examID)
	if err != nil {
		failAttempt(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// SubmitAttempt godoc
// POST /api/v1/student/exams/:exam_id/submit
// Grades and records the student's answers.
func (h *StudentPortalHandler) SubmitAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.FailWithDetails(c, http.StatusBadRequest, response.ErrInvalidID, map[string]string{"redirect": dashboardPath})
		return
	}

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidPayload, fields)
		return
	}

	result, err := h.attemptService.SubmitAttempt(c.Request.Context(), claims.Candidate(), examID, req)
	if err != nil {
		failAttempt(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, result.Redacted())
}

// GetResult godoc
// GET /api/v1/student/exams/:exam_id/result
// Returns the most recent result while it is still held.
func (h *StudentPortalHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.attemptService.LatestResult(c.Request.Context(), claims.UserID, examID)
	if err != nil {
		if errors.Is(err, service.ErrResultNotFound) {
			response.FailWithDetails(c, http.StatusNotFound, response.ErrResultUnavailable, map[string]string{"redirect": dashboardPath})
			return
		}
		h.log.Error().Err(err).Msg("Failed to load result")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// UploadVideoResponse godoc
// POST /api/v1/student/exams/:exam_id/questions/:question_id/video
// Stores a recorded answer for a video-response question on the live attempt.
func (h *StudentPortalHandler) UploadVideoResponse(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var duration *int
	if raw := c.PostForm("duration_seconds"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"duration_seconds": "duration_seconds must be a non-negative integer",
			})
			return
		}
		duration = &d
	}

	file, header, err := c.Request.FormFile("video")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	url, err := h.mediaService.Save(file, header.Size, service.MediaVideo)
	if err != nil {
		failMedia(c, h.log, err)
		return
	}

	upload := model.VideoUpload{Path: url, DurationSeconds: duration}
	if err := h.attemptService.AttachVideo(c.Request.Context(), claims.Candidate(), examID, questionID, upload); err != nil {
		_ = h.mediaService.Remove(url)
		failAttempt(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, upload)
}

// DownloadPaper godoc
// GET /api/v1/student/exams/:exam_id/paper
// Sends the reference paper, only after the student has submitted.
func (h *StudentPortalHandler) DownloadPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	url, err := h.examService.PaperForStudent(c.Request.Context(), claims.UserID, examID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotFound), errors.Is(err, service.ErrPaperUnavailable):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrPaperLocked):
			response.Fail(c, http.StatusForbidden, response.ErrPaperLocked)
		default:
			h.log.Error().Err(err).Msg("Failed to look up paper")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	path, err := h.mediaService.Resolve(url)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	c.FileAttachment(path, "exam-paper"+filepath.Ext(path))
}
