package model

import (
	"time"

	"github.com/google/uuid"
)

// Proctor event types written by the server. Client-reported events use
// their own type names.
const (
	ProctorEventNoFace        = "no_face"
	ProctorEventMultipleFaces = "multiple_faces"
	ProctorEventTabSwitch     = "tab_switch"
)

// ProctorLogEntry is an append-only audit record of a proctoring event.
type ProctorLogEntry struct {
	ID          int64     `json:"id"`
	StudentID   int       `json:"student_id"`
	ExamID      uuid.UUID `json:"exam_id"`
	EventType   string    `json:"event_type"`
	Description string    `json:"description"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// ProctorLogRow is a log entry joined with the student's name.
type ProctorLogRow struct {
	ProctorLogEntry
	StudentName string `json:"student_name"`
}

// ProctorEventCount aggregates events of one type for one student.
type ProctorEventCount struct {
	StudentID int    `json:"student_id"`
	EventType string `json:"event_type"`
	Count     int64  `json:"count"`
}

// ProctorLiveEvent is pushed to admins watching an exam.
type ProctorLiveEvent struct {
	StudentID  int       `json:"student_id"`
	ExamID     uuid.UUID `json:"exam_id"`
	EventType  string    `json:"event_type"`
	Severity   string    `json:"severity,omitempty"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}
