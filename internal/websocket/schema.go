package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionFrame Action = "frame"
	ActionEvent Action = "event"
	ActionPing  Action = "ping"
)

// RequestPayload carries every client message. Fields unused by an action
// are left empty.
type RequestPayload struct {
	Action Action `json:"action"`

	// frame
	ExamID string `json:"exam_id,omitempty"`
	Image  string `json:"image,omitempty"`

	// event
	EventType   string `json:"event_type,omitempty"`
	Description string `json:"description,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventAlert    Event = "proctor_alert"
	EventFeedback Event = "proctor_feedback"
	EventLogged   Event = "event_logged"
	EventPong     Event = "pong"
)

// AlertResponse is pushed when the proctor detects a violation.
type AlertResponse struct {
	Event   Event  `json:"event"`
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// FeedbackResponse is the periodic positive compliance notice.
type FeedbackResponse struct {
	Event   Event  `json:"event"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// LoggedResponse acknowledges a client-reported event.
type LoggedResponse struct {
	Event     Event  `json:"event"`
	EventType string `json:"event_type"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
