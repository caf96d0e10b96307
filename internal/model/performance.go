package model

import (
	"time"

	"github.com/google/uuid"
)

// PerformanceRecord is the single graded outcome of a (student, exam) pair.
type PerformanceRecord struct {
	ID             int64     `json:"id"`
	StudentID      int       `json:"student_id"`
	ExamID         uuid.UUID `json:"exam_id"`
	TotalQuestions int       `json:"total_questions"`
	CorrectCount   int       `json:"correct_count"`
	IncorrectCount int       `json:"incorrect_count"`
	Score          float64   `json:"score"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// ResponseRecord is one question's answer within an attempt.
type ResponseRecord struct {
	StudentID       int          `json:"student_id"`
	ExamID          uuid.UUID    `json:"exam_id"`
	QuestionID      uuid.UUID    `json:"question_id"`
	Kind            QuestionKind `json:"kind"`
	Answer          *string      `json:"answer"`
	IsCorrect       *bool        `json:"is_correct"`
	MediaPath       *string      `json:"media_path,omitempty"`
	DurationSeconds *int         `json:"duration_seconds,omitempty"`
	MediaSubmitted  bool         `json:"media_submitted"`
	SubmittedAt     time.Time    `json:"submitted_at"`
}

// ExamResultRow is a performance record joined with the student's identity.
type ExamResultRow struct {
	PerformanceRecord
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
	Course       string `json:"course"`
}
