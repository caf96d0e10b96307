package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
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

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExamHandler handles exam management endpoints.
type ExamHandler struct {
	examService   *service.ExamService
	reportService *service.ReportService
	mediaService  *service.MediaService
	log           zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(
	examService *service.ExamService,
	reportService *service.ReportService,
	mediaService *service.MediaService,
	log zerolog.Logger,
) *ExamHandler {
	return &ExamHandler{
		examService:   examService,
		reportService: reportService,
		mediaService:  mediaService,
		log:           log.With().Str("component", "exam_handler").Logger(),
	}
}

// ListExams godoc
// GET /api/v1/admin/exams
func (h *ExamHandler) ListExams(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	exams, pagination, err := h.examService.List(c.Request.Context(), page, perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list exams")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// CreateExam godoc
// POST /api/v1/admin/exams
// Creates an exam together with its questions.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		var qErr *service.QuestionError
		switch {
		case errors.As(err, &qErr):
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"questions[" + strconv.Itoa(qErr.Index) + "]": qErr.Err.Error(),
			})
		case errors.Is(err, service.ErrEmptyExam):
			response.Fail(c, http.StatusBadRequest, response.ErrNoQuestions)
		case errors.Is(err, service.ErrInvalidTimeLimit):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidTimeLimit)
		default:
			h.log.Error().Err(err).Msg("Failed to create exam")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/admin/exams/:exam_id
// Returns the exam with its questions and answer keys.
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	detail, err := h.examService.Detail(c.Request.Context(), examID)
	if err != nil {
		h.failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, detail)
}

// DeleteExam godoc
// DELETE /api/v1/admin/exams/:exam_id
// Deletes the exam, its questions and its stored paper.
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	exam, err := h.examService.Delete(c.Request.Context(), examID)
	if err != nil {
		h.failExam(c, err)
		return
	}

	if exam.PaperPath != nil {
		if err := h.mediaService.Remove(*exam.PaperPath); err != nil {
			h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to remove exam paper")
		}
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// SetScoreVisibility godoc
// PUT /api/v1/admin/exams/:exam_id/score-visibility
func (h *ExamHandler) SetScoreVisibility(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req model.ScoreVisibilityRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.examService.SetScoreVisibility(c.Request.Context(), examID, *req.ShowScores); err != nil {
		h.failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"show_scores": *req.ShowScores})
}

// UploadPaper godoc
// POST /api/v1/admin/exams/:exam_id/paper
// Stores a PDF or image of the question paper, replacing any previous one.
func (h *ExamHandler) UploadPaper(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	url, err := h.mediaService.Save(file, header.Size, service.MediaDocument)
	if errors.Is(err, service.ErrUnsupportedFileType) {
		if _, seekErr := file.Seek(0, 0); seekErr == nil {
			url, err = h.mediaService.Save(file, header.Size, service.MediaImage)
		}
	}
	if err != nil {
		failMedia(c, h.log, err)
		return
	}

	previous, err := h.examService.AttachPaper(c.Request.Context(), examID, url)
	if err != nil {
		_ = h.mediaService.Remove(url)
		h.failExam(c, err)
		return
	}
	if previous != nil {
		_ = h.mediaService.Remove(*previous)
	}

	response.Success(c, http.StatusOK, gin.H{"paper_path": url})
}

// GetExamResults godoc
// GET /api/v1/admin/exams/:exam_id/results
func (h *ExamHandler) GetExamResults(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	results, pagination, err := h.reportService.Results(c.Request.Context(), examID, page, perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list results")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}

// ExportResults godoc
// GET /api/v1/admin/exams/:exam_id/results/export
// Streams the results and proctor event counts as an XLSX workbook.
func (h *ExamHandler) ExportResults(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	exam, err := h.examService.Get(c.Request.Context(), examID)
	if err != nil {
		h.failExam(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.reportService.ExportResults(c.Request.Context(), exam, &buf); err != nil {
		h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Failed to export results")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	filename := fmt.Sprintf("results-%s.xlsx", examID)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// GetProctorLogs godoc
// GET /api/v1/admin/exams/:exam_id/proctor-logs?student_id=
func (h *ExamHandler) GetProctorLogs(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var studentID *int
	if raw := c.Query("student_id"); raw != "" {
		sid, err := strconv.Atoi(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		studentID = &sid
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	logs, pagination, err := h.reportService.Logs(c.Request.Context(), examID, studentID, page, perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list proctor logs")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"logs": logs}, pagination)
}

func (h *ExamHandler) failExam(c *gin.Context, err error) {
	if errors.Is(err, service.ErrExamNotFound) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	h.log.Error().Err(err).Msg("Exam request failed")
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

func parseExamID(c *gin.Context) (uuid.UUID, bool) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return examID, true
}
