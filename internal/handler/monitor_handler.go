package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exproctor-backend/internal/config"
	"github.com/stemsi/exproctor-backend/internal/response"
	"github.com/stemsi/exproctor-backend/internal/service"
)

const (
	keepAliveInterval = 30 * time.Second
	snapshotTimeout   = 5 * time.Second // a slow query must not block the stream
)

// MonitorHandler streams live proctoring events to admins.
type MonitorHandler struct {
	rdb           *redis.Client
	examService   *service.ExamService
	reportService *service.ReportService
	log           zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	rdb *redis.Client,
	examService *service.ExamService,
	reportService *service.ReportService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:           rdb,
		examService:   examService,
		reportService: reportService,
		log:           log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:exam_id/monitor
// Sends a snapshot of event counts, then every alert and client event as it happens.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	reqCtx := c.Request.Context()

	exam, err := h.examService.Get(reqCtx, examID)
	if err != nil {
		if errors.Is(err, service.ErrExamNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// Subscribe before the snapshot so no event falls between the two.
	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.ExamProctorChannel(examID.String()))
	defer pubsub.Close()
	ch := pubsub.Channel()

	snapCtx, cancel := context.WithTimeout(reqCtx, snapshotTimeout)
	snapshot, err := h.reportService.Snapshot(snapCtx, examID)
	cancel()
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to build monitor snapshot")
		snapshot = &service.MonitorSnapshot{}
	}

	c.SSEvent("snapshot", gin.H{
		"exam": gin.H{
			"id":                 exam.ID,
			"title":              exam.Title,
			"time_limit_minutes": exam.TimeLimitMinutes,
			"question_count":     exam.QuestionCount,
		},
		"stats": snapshot,
	})
	c.Writer.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor SSE")
			return

		case msg, open := <-ch:
			if !open {
				return
			}
			// Payload is already JSON; forward it untouched.
			_, _ = c.Writer.Write([]byte("event: proctor\ndata: " + msg.Payload + "\n\n"))
			c.Writer.Flush()

		case <-keepAlive.C:
			_, _ = c.Writer.Write([]byte(": ping\n\n"))
			c.Writer.Flush()
		}
	}
}
