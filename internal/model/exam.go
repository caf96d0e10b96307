package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AllCourses in an exam's course filter opens it to every student.
const AllCourses = "All Courses"

// Exam represents an exam definition.
type Exam struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	Subject          string     `json:"subject"`
	TimeLimitMinutes int        `json:"time_limit_minutes"`
	StartAt          *time.Time `json:"start_at,omitempty"`
	EndAt            *time.Time `json:"end_at,omitempty"`
	Courses          []string   `json:"courses"`
	ShowScores       bool       `json:"show_scores"`
	PaperPath        *string    `json:"paper_path,omitempty"`
	AuthorID         int        `json:"author_id"`
	QuestionCount    int        `json:"question_count"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// EligibleFor reports whether a student enrolled in course may take the exam.
// An empty filter or one containing AllCourses admits everyone.
func (e *Exam) EligibleFor(course string) bool {
	if len(e.Courses) == 0 {
		return true
	}
	for _, c := range e.Courses {
		if c == AllCourses || strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(course)) {
			return true
		}
	}
	return false
}

// TimeLimit returns the configured limit as a duration.
func (e *Exam) TimeLimit() time.Duration {
	return time.Duration(e.TimeLimitMinutes) * time.Minute
}

// CreateExamRequest is the payload for creating an exam with its questions.
type CreateExamRequest struct {
	Title            string          `json:"title" binding:"required,min=3,max=255"`
	Subject          string          `json:"subject" binding:"required,max=255"`
	TimeLimitMinutes int             `json:"time_limit_minutes" binding:"required,min=1,max=600"`
	StartAt          *time.Time      `json:"start_at" binding:"omitempty"`
	EndAt            *time.Time      `json:"end_at" binding:"omitempty"`
	Courses          []string        `json:"courses" binding:"omitempty,dive,max=255"`
	ShowScores       *bool           `json:"show_scores"`
	Questions        []QuestionInput `json:"questions" binding:"required,min=1,dive"`
}

// ScoreVisibilityRequest toggles whether students see their score.
type ScoreVisibilityRequest struct {
	ShowScores *bool `json:"show_scores" binding:"required"`
}

// ExamWithQuestions is the admin detail view.
type ExamWithQuestions struct {
	Exam
	Questions []Question `json:"questions"`
}

// LobbyStatus is how an exam appears on a student's dashboard.
type LobbyStatus string

const (
	LobbyUpcoming  LobbyStatus = "upcoming"
	LobbyAvailable LobbyStatus = "available"
	LobbyExpired   LobbyStatus = "expired"
	LobbyCompleted LobbyStatus = "completed"
)

// LobbyExam is one entry of the student lobby.
type LobbyExam struct {
	ID               uuid.UUID   `json:"id"`
	Title            string      `json:"title"`
	Subject          string      `json:"subject"`
	TimeLimitMinutes int         `json:"time_limit_minutes"`
	StartAt          *time.Time  `json:"start_at,omitempty"`
	EndAt            *time.Time  `json:"end_at,omitempty"`
	QuestionCount    int         `json:"question_count"`
	HasPaper         bool        `json:"has_paper"`
	Status           LobbyStatus `json:"status"`
}
