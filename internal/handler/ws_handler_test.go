package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exproctor-backend/internal/middleware"
	"github.com/stemsi/exproctor-backend/internal/proctor"
	"github.com/stemsi/exproctor-backend/internal/response"
	"github.com/stemsi/exproctor-backend/internal/service"
	ws "github.com/stemsi/exproctor-backend/internal/websocket"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	studentID int
	examID    uuid.UUID
	eventType string
}

type stubProctor struct {
	mu      sync.Mutex
	signals []proctor.Signal
	frames  int
	events  []recordedEvent
}

func (p *stubProctor) ProcessFrame(_ context.Context, _ int, _ uuid.UUID, _ string) []proctor.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames++
	return p.signals
}

func (p *stubProctor) RecordEvent(_ context.Context, studentID int, examID uuid.UUID, eventType, _ string) error {
	if strings.TrimSpace(eventType) == "" {
		return proctor.ErrInvalidEvent
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{studentID, examID, eventType})
	return nil
}

type stubAttempts struct {
	active bool
	err    error
}

func (a stubAttempts) HasActiveAttempt(context.Context, int, uuid.UUID) (bool, error) {
	return a.active, a.err
}

func newProctorServer(t *testing.T, p FrameProcessor, attempts AttemptChecker) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/ws/:exam_id", func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{
			TokenType: service.TokenTypeStudent,
			UserID:    42,
		})
		c.Next()
	}, NewWSHandler(p, attempts, zerolog.Nop(), nil).ProctorStream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, examID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + examID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func readMap(t *testing.T, conn *websocket.Conn) map[string]string {
	t.Helper()
	var got map[string]string
	require.NoError(t, conn.ReadJSON(&got))
	return got
}

func TestProctorStream_RefusesWithoutAttempt(t *testing.T) {
	srv := newProctorServer(t, &stubProctor{}, stubAttempts{active: false})

	_, resp, err := dial(t, srv, uuid.NewString())
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body response.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, response.ErrNoActiveAttempt, body.Error.Code)
}

func TestProctorStream_RejectsBadExamID(t *testing.T) {
	srv := newProctorServer(t, &stubProctor{}, stubAttempts{active: true})

	_, resp, err := dial(t, srv, "not-a-uuid")
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProctorStream_FailsOpenWhenAttemptLookupErrors(t *testing.T) {
	srv := newProctorServer(t, &stubProctor{}, stubAttempts{err: errors.New("redis down")})

	conn, _, err := dial(t, srv, uuid.NewString())
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(ws.RequestPayload{Action: ws.ActionPing}))
	require.Equal(t, string(ws.EventPong), readMap(t, conn)["event"])
}

func TestProctorStream_FramesAndEvents(t *testing.T) {
	examID := uuid.New()
	p := &stubProctor{signals: []proctor.Signal{
		{Kind: proctor.SignalNoFace, Severity: proctor.SeverityWarning, Message: "Please ensure your face is visible in the camera!"},
		{Kind: proctor.SignalCompliance, Severity: proctor.SeveritySuccess, Message: "Good compliance: 96%"},
	}}
	srv := newProctorServer(t, p, stubAttempts{active: true})

	conn, _, err := dial(t, srv, examID.String())
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(ws.RequestPayload{Action: ws.ActionFrame, Image: "data:image/jpeg;base64,AAAA"}))
	alert := readMap(t, conn)
	require.Equal(t, string(ws.EventAlert), alert["event"])
	require.Equal(t, "no_face", alert["kind"])
	require.Equal(t, "warning", alert["type"])

	feedback := readMap(t, conn)
	require.Equal(t, string(ws.EventFeedback), feedback["event"])
	require.Equal(t, "success", feedback["type"])

	require.NoError(t, conn.WriteJSON(ws.RequestPayload{Action: ws.ActionEvent, EventType: " tab_switch ", Description: "left the tab"}))
	logged := readMap(t, conn)
	require.Equal(t, string(ws.EventLogged), logged["event"])
	require.Equal(t, "tab_switch", logged["event_type"])

	require.NoError(t, conn.WriteJSON(ws.RequestPayload{Action: ws.ActionEvent}))
	require.Equal(t, string(ws.EventError), readMap(t, conn)["event"])

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "dance"}))
	unknown := readMap(t, conn)
	require.Equal(t, string(ws.EventError), unknown["event"])
	require.Contains(t, unknown["error"], "dance")

	// Frames addressed to another exam are dropped silently.
	require.NoError(t, conn.WriteJSON(ws.RequestPayload{Action: ws.ActionFrame, ExamID: uuid.NewString()}))
	require.NoError(t, conn.WriteJSON(ws.RequestPayload{Action: ws.ActionPing}))
	require.Equal(t, string(ws.EventPong), readMap(t, conn)["event"])

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Equal(t, 1, p.frames)
	require.Len(t, p.events, 1)
	require.Equal(t, 42, p.events[0].studentID)
	require.Equal(t, examID, p.events[0].examID)
}
