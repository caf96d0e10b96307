package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AttemptSession is the server-side state of one attempt between
// BeginAttempt and SubmitAttempt. Correct maps each question to its
// effective correct designator after shuffling.
type AttemptSession struct {
	ID        uuid.UUID                 `json:"id"`
	StudentID int                       `json:"student_id"`
	ExamID    uuid.UUID                 `json:"exam_id"`
	StartedAt time.Time                 `json:"started_at"`
	Deadline  time.Time                 `json:"deadline"`
	ExpiresAt time.Time                 `json:"expires_at"`
	Order     []uuid.UUID               `json:"order"`
	Correct   map[uuid.UUID]string      `json:"correct"`
	Videos    map[uuid.UUID]VideoUpload `json:"videos,omitempty"`
}

// VideoUpload is a recorded answer attached to a video-response question.
type VideoUpload struct {
	Path            string `json:"path"`
	DurationSeconds *int   `json:"duration_seconds,omitempty"`
}

// PresentedQuestion is a question as shown to one student, options relabelled
// by their shuffled position.
type PresentedQuestion struct {
	ID          uuid.UUID    `json:"id"`
	Kind        QuestionKind `json:"kind"`
	Text        string       `json:"text"`
	Explanation *string      `json:"explanation,omitempty"`
	MediaPath   *string      `json:"media_path,omitempty"`
	Options     []Option     `json:"options,omitempty"`
}

// AttemptView is returned by BeginAttempt.
type AttemptView struct {
	AttemptID        uuid.UUID           `json:"attempt_id"`
	ExamID           uuid.UUID           `json:"exam_id"`
	Title            string              `json:"title"`
	Subject          string              `json:"subject"`
	TimeLimitMinutes int                 `json:"time_limit_minutes"`
	StartedAt        time.Time           `json:"started_at"`
	Deadline         time.Time           `json:"deadline"`
	Questions        []PresentedQuestion `json:"questions"`
}

// SubmitAttemptRequest carries a student's answers keyed by question ID, and
// the video-submitted markers for video-response questions.
type SubmitAttemptRequest struct {
	Answers        map[string]string `json:"answers"`
	VideoSubmitted map[string]bool   `json:"video_submitted"`
}

// UnmarshalJSON accepts loosely typed submissions. Answers that are not
// strings are dropped and count as unanswered. Video markers accept booleans
// and the usual form strings.
func (r *SubmitAttemptRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Answers        map[string]json.RawMessage `json:"answers"`
		VideoSubmitted map[string]json.RawMessage `json:"video_submitted"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Answers = make(map[string]string, len(raw.Answers))
	for id, v := range raw.Answers {
		if string(v) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			r.Answers[id] = s
		}
	}

	r.VideoSubmitted = make(map[string]bool, len(raw.VideoSubmitted))
	for id, v := range raw.VideoSubmitted {
		if string(v) == "null" {
			continue
		}
		var b bool
		if err := json.Unmarshal(v, &b); err == nil {
			r.VideoSubmitted[id] = b
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "true", "on", "1", "yes":
				r.VideoSubmitted[id] = true
			}
		}
	}
	return nil
}

// AttemptResult is the aggregate shown right after submission.
type AttemptResult struct {
	ExamID         uuid.UUID `json:"exam_id"`
	ExamTitle      string    `json:"exam_title"`
	TotalQuestions int       `json:"total_questions"`
	CorrectCount   int       `json:"correct_count"`
	IncorrectCount int       `json:"incorrect_count"`
	Score          float64   `json:"score"`
	ShowScores     bool      `json:"show_scores"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Redacted hides the aggregates when scores are not visible to students.
func (r AttemptResult) Redacted() AttemptResult {
	if r.ShowScores {
		return r
	}
	return AttemptResult{
		ExamID:      r.ExamID,
		ExamTitle:   r.ExamTitle,
		ShowScores:  false,
		SubmittedAt: r.SubmittedAt,
	}
}
