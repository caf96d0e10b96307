package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exproctor-backend/internal/middleware"
	"github.com/stemsi/exproctor-backend/internal/proctor"
	"github.com/stemsi/exproctor-backend/internal/response"
	ws "github.com/stemsi/exproctor-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// FrameProcessor runs webcam frames and client events through proctoring.
type FrameProcessor interface {
	ProcessFrame(ctx context.Context, studentID int, examID uuid.UUID, payload string) []proctor.Signal
	RecordEvent(ctx context.Context, studentID int, examID uuid.UUID, eventType, description string) error
}

// AttemptChecker reports whether a student is inside an attempt.
type AttemptChecker interface {
	HasActiveAttempt(ctx context.Context, studentID int, examID uuid.UUID) (bool, error)
}

// WSHandler handles the proctoring WebSocket.
type WSHandler struct {
	proctor  FrameProcessor
	attempts AttemptChecker
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(proctor FrameProcessor, attempts AttemptChecker, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		proctor:  proctor,
		attempts: attempts,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ProctorStream godoc
// WS /ws/v1/student/exams/:exam_id/proctor
// Receives webcam frames and client events, pushes alerts back.
func (h *WSHandler) ProctorStream(c *gin.Context) {
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

	studentID := claims.UserID
	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("exam_id", examID.String()).
		Logger()

	// Proctoring fails open: only a definite "no attempt" refuses the stream.
	active, err := h.attempts.HasActiveAttempt(c.Request.Context(), studentID, examID)
	if err != nil {
		wsLog.Warn().Err(err).Msg("Could not verify attempt, proctoring anyway")
		active = true
	}
	if !active {
		response.Fail(c, http.StatusConflict, response.ErrNoActiveAttempt)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wsLog.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	ws.Configure(conn)

	wsLog.Info().Msg("Proctoring stream connected")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var writeErr error
		switch msg.Action {
		case ws.ActionFrame:
			writeErr = h.handleFrame(conn, wsLog, studentID, examID, &msg)
		case ws.ActionEvent:
			writeErr = h.handleEvent(conn, studentID, examID, &msg)
		case ws.ActionPing:
			writeErr = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			writeErr = ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
		if writeErr != nil {
			wsLog.Debug().Err(writeErr).Msg("Write failed, closing")
			return
		}
	}
}

// handleFrame runs one frame and pushes whatever the state machine emitted.
func (h *WSHandler) handleFrame(conn *websocket.Conn, wsLog zerolog.Logger, studentID int, examID uuid.UUID, msg *ws.RequestPayload) error {
	if msg.ExamID != "" && msg.ExamID != examID.String() {
		wsLog.Debug().Str("frame_exam_id", msg.ExamID).Msg("Dropping frame for another exam")
		return nil
	}

	for _, sig := range h.proctor.ProcessFrame(context.Background(), studentID, examID, msg.Image) {
		var err error
		if sig.Alerting() {
			err = ws.WriteTyped(conn, ws.AlertResponse{
				Event:   ws.EventAlert,
				Type:    sig.Severity,
				Kind:    string(sig.Kind),
				Message: sig.Message,
			})
		} else {
			err = ws.WriteTyped(conn, ws.FeedbackResponse{
				Event:   ws.EventFeedback,
				Type:    sig.Severity,
				Message: sig.Message,
			})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (h *WSHandler) handleEvent(conn *websocket.Conn, studentID int, examID uuid.UUID, msg *ws.RequestPayload) error {
	err := h.proctor.RecordEvent(context.Background(), studentID, examID, msg.EventType, msg.Description)
	if err != nil {
		if errors.Is(err, proctor.ErrInvalidEvent) {
			return ws.WriteError(conn, "event_type is required")
		}
		return ws.WriteError(conn, "event not recorded")
	}
	return ws.WriteTyped(conn, ws.LoggedResponse{Event: ws.EventLogged, EventType: strings.TrimSpace(msg.EventType)})
}
