package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exproctor-backend/internal/config"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stemsi/exproctor-backend/internal/observability"
	"github.com/stemsi/exproctor-backend/internal/repository"
)

// Attempt engine errors.
var (
	ErrExamNotFound        = errors.New("exam not found")
	ErrExamUpcoming        = errors.New("exam has not started yet")
	ErrExamExpired         = errors.New("exam deadline has passed")
	ErrAlreadyAttempted    = errors.New("exam already attempted")
	ErrEmptyExam           = errors.New("exam has no questions")
	ErrInvalidTimeLimit    = errors.New("exam time limit must be a positive number of minutes")
	ErrAttemptTimeExceeded = errors.New("attempt time limit exceeded")
	ErrNotEligible         = errors.New("exam is not open to this course")
	ErrNotVideoQuestion    = errors.New("question does not accept a video response")
	ErrSubmissionFailed    = errors.New("submission could not be recorded")
)

// UpcomingError reports when a not-yet-open exam starts.
type UpcomingError struct {
	StartsAt time.Time
}

func (e *UpcomingError) Error() string {
	return fmt.Sprintf("exam opens at %s", e.StartsAt.Format(time.RFC3339))
}

func (e *UpcomingError) Unwrap() error { return ErrExamUpcoming }

// ExamReader reads exam definitions.
type ExamReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// QuestionLister reads an exam's questions.
type QuestionLister interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
}

// PerformanceStore checks for and records graded attempts.
type PerformanceStore interface {
	Exists(ctx context.Context, studentID int, examID uuid.UUID) (bool, error)
	Record(ctx context.Context, perf *model.PerformanceRecord, responses []model.ResponseRecord) error
}

// Candidate is the student taking an exam.
type Candidate struct {
	ID     int
	Course string
}

// AttemptService runs exam attempts from presentation to grading.
type AttemptService struct {
	exams       ExamReader
	questions   QuestionLister
	performance PerformanceStore
	store       *AttemptStore
	cfg         config.AttemptConfig
	log         zerolog.Logger

	now       func() time.Time
	shuffle   Shuffler
	submitted []func(studentID int)
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	exams ExamReader,
	questions QuestionLister,
	performance PerformanceStore,
	store *AttemptStore,
	cfg config.AttemptConfig,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		exams:       exams,
		questions:   questions,
		performance: performance,
		store:       store,
		cfg:         cfg,
		log:         log.With().Str("component", "attempt_service").Logger(),
		now:         time.Now,
		shuffle:     rand.Shuffle,
	}
}

// OnSubmitted registers fn to run after a submission is recorded. It is not
// safe to call once the service is serving requests.
func (s *AttemptService) OnSubmitted(fn func(studentID int)) {
	s.submitted = append(s.submitted, fn)
}

// BeginAttempt validates that the student may start the exam and returns a
// freshly shuffled presentation. The effective answer key is kept in the
// attempt store until submission. Reopening an exam replaces the previous
// shuffle but keeps the original start time and uploaded videos, and once
// that start's deadline has passed the exam cannot be reopened.
func (s *AttemptService) BeginAttempt(ctx context.Context, c Candidate, examID uuid.UUID) (*model.AttemptView, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !exam.EligibleFor(c.Course) {
		return nil, ErrNotEligible
	}

	done, err := s.performance.Exists(ctx, c.ID, examID)
	if err != nil {
		return nil, fmt.Errorf("check performance: %w", err)
	}
	if done {
		return nil, ErrAlreadyAttempted
	}

	now := s.now()
	if err := checkWindow(exam, now); err != nil {
		return nil, err
	}
	if exam.TimeLimitMinutes <= 0 {
		return nil, ErrInvalidTimeLimit
	}

	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrEmptyExam
	}

	startedAt, err := s.store.MarkStart(ctx, c.ID, examID, now, s.startRetention(exam, now))
	if err != nil {
		return nil, err
	}
	deadline := attemptDeadline(exam, startedAt)
	if !now.Before(deadline) {
		return nil, ErrAttemptTimeExceeded
	}

	var videos map[uuid.UUID]model.VideoUpload
	prev, err := s.store.Active(ctx, c.ID, examID)
	switch {
	case err == nil:
		videos = prev.Videos
		s.log.Debug().Int("student_id", c.ID).Str("attempt_id", prev.ID.String()).Msg("Superseding open attempt")
	case !errors.Is(err, ErrNoActiveAttempt):
		s.log.Warn().Err(err).Int("student_id", c.ID).Msg("Could not read previous attempt")
	}

	presented, correct := PresentQuestions(questions, s.shuffle)

	order := make([]uuid.UUID, len(presented))
	for i, pq := range presented {
		order[i] = pq.ID
	}

	sess := &model.AttemptSession{
		ID:        uuid.New(),
		StudentID: c.ID,
		ExamID:    examID,
		StartedAt: startedAt,
		Deadline:  deadline,
		ExpiresAt: deadline.Add(s.cfg.Grace + s.cfg.SessionPadding),
		Order:     order,
		Correct:   correct,
		Videos:    videos,
	}
	if err := s.store.Save(ctx, sess, sess.ExpiresAt.Sub(now)); err != nil {
		return nil, fmt.Errorf("save attempt: %w", err)
	}

	s.log.Info().
		Int("student_id", c.ID).
		Str("exam_id", examID.String()).
		Str("attempt_id", sess.ID.String()).
		Int("questions", len(presented)).
		Msg("Attempt started")

	return &model.AttemptView{
		AttemptID:        sess.ID,
		ExamID:           exam.ID,
		Title:            exam.Title,
		Subject:          exam.Subject,
		TimeLimitMinutes: exam.TimeLimitMinutes,
		StartedAt:        sess.StartedAt,
		Deadline:         sess.Deadline,
		Questions:        presented,
	}, nil
}

// SubmitAttempt grades the submission against the attempt's effective key
// and records it exactly once. Without a live attempt session the original
// keys are used. A repeated or concurrent submission for the same pair gets
// ErrAlreadyAttempted.
func (s *AttemptService) SubmitAttempt(ctx context.Context, c Candidate, examID uuid.UUID, req model.SubmitAttemptRequest) (*model.AttemptResult, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if exam.EndAt != nil && now.After(*exam.EndAt) {
		observability.Submissions().WithLabelValues("expired").Inc()
		return nil, ErrExamExpired
	}

	sess, err := s.store.Active(ctx, c.ID, examID)
	switch {
	case err == nil:
		if now.After(sess.Deadline.Add(s.cfg.Grace)) {
			observability.Submissions().WithLabelValues("late").Inc()
			return nil, ErrAttemptTimeExceeded
		}
	case errors.Is(err, ErrNoActiveAttempt):
		if started, serr := s.store.StartedAt(ctx, c.ID, examID); serr == nil &&
			now.After(attemptDeadline(exam, started).Add(s.cfg.Grace)) {
			observability.Submissions().WithLabelValues("late").Inc()
			return nil, ErrAttemptTimeExceeded
		}
		s.log.Warn().Int("student_id", c.ID).Str("exam_id", examID.String()).
			Msg("No attempt session, grading with original answer keys")
	default:
		s.log.Error().Err(err).Int("student_id", c.ID).Str("exam_id", examID.String()).
			Msg("Attempt store unavailable, grading with original answer keys")
	}

	done, err := s.performance.Exists(ctx, c.ID, examID)
	if err != nil {
		observability.Submissions().WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: check performance: %v", ErrSubmissionFailed, err)
	}
	if done {
		observability.Submissions().WithLabelValues("duplicate").Inc()
		return nil, ErrAlreadyAttempted
	}

	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		observability.Submissions().WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: list questions: %v", ErrSubmissionFailed, err)
	}

	var (
		correct map[uuid.UUID]string
		videos  map[uuid.UUID]model.VideoUpload
	)
	if sess != nil {
		correct = sess.Correct
		videos = sess.Videos
	}
	grade := GradeSubmission(questions, correct, req, videos)

	perf := &model.PerformanceRecord{
		StudentID:      c.ID,
		ExamID:         examID,
		TotalQuestions: grade.TotalQuestions,
		CorrectCount:   grade.CorrectCount,
		IncorrectCount: grade.IncorrectCount,
		Score:          grade.Score,
		SubmittedAt:    now,
	}
	for i := range grade.Responses {
		grade.Responses[i].StudentID = c.ID
		grade.Responses[i].ExamID = examID
		grade.Responses[i].SubmittedAt = now
	}

	if err := s.performance.Record(ctx, perf, grade.Responses); err != nil {
		if errors.Is(err, repository.ErrAlreadySubmitted) {
			observability.Submissions().WithLabelValues("duplicate").Inc()
			return nil, ErrAlreadyAttempted
		}
		observability.Submissions().WithLabelValues("failed").Inc()
		s.log.Error().Err(err).Int("student_id", c.ID).Str("exam_id", examID.String()).Msg("Submission rolled back")
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	if sess != nil {
		if err := s.store.Discard(ctx, sess); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", sess.ID.String()).Msg("Failed to discard attempt session")
		}
	}

	result := &model.AttemptResult{
		ExamID:         examID,
		ExamTitle:      exam.Title,
		TotalQuestions: grade.TotalQuestions,
		CorrectCount:   grade.CorrectCount,
		IncorrectCount: grade.IncorrectCount,
		Score:          grade.Score,
		ShowScores:     exam.ShowScores,
		SubmittedAt:    now,
	}
	if err := s.store.SaveResult(ctx, c.ID, result, s.cfg.ResultTTL); err != nil {
		s.log.Warn().Err(err).Int("student_id", c.ID).Msg("Failed to cache result")
	}

	for _, fn := range s.submitted {
		fn(c.ID)
	}

	observability.Submissions().WithLabelValues("recorded").Inc()
	s.log.Info().
		Int("student_id", c.ID).
		Str("exam_id", examID.String()).
		Int("scored", grade.ScoredCount).
		Int("correct", grade.CorrectCount).
		Float64("score", grade.Score).
		Msg("Attempt submitted and graded")

	return result, nil
}

// AttachVideo records an uploaded video answer on the live attempt.
func (s *AttemptService) AttachVideo(ctx context.Context, c Candidate, examID, questionID uuid.UUID, upload model.VideoUpload) error {
	sess, err := s.store.Active(ctx, c.ID, examID)
	if err != nil {
		return err
	}

	now := s.now()
	if now.After(sess.Deadline.Add(s.cfg.Grace)) {
		return ErrAttemptTimeExceeded
	}

	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	accepted := false
	for _, q := range questions {
		if q.ID == questionID && q.Kind == model.QuestionKindVideoResponse {
			accepted = true
			break
		}
	}
	if !accepted {
		return ErrNotVideoQuestion
	}

	if sess.Videos == nil {
		sess.Videos = make(map[uuid.UUID]model.VideoUpload)
	}
	sess.Videos[questionID] = upload
	return s.store.Update(ctx, sess, sess.ExpiresAt.Sub(now))
}

// HasActiveAttempt reports whether the student has a live attempt for the exam.
func (s *AttemptService) HasActiveAttempt(ctx context.Context, studentID int, examID uuid.UUID) (bool, error) {
	_, err := s.store.Active(ctx, studentID, examID)
	if err != nil {
		if errors.Is(err, ErrNoActiveAttempt) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// LatestResult returns the most recent submitted result, redacted when the
// exam hides scores.
func (s *AttemptService) LatestResult(ctx context.Context, studentID int, examID uuid.UUID) (*model.AttemptResult, error) {
	result, err := s.store.Result(ctx, studentID, examID)
	if err != nil {
		return nil, err
	}
	redacted := result.Redacted()
	return &redacted, nil
}

func (s *AttemptService) getExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

// attemptDeadline is the start plus the time limit, capped by the exam's end.
func attemptDeadline(exam *model.Exam, startedAt time.Time) time.Time {
	deadline := startedAt.Add(exam.TimeLimit())
	if exam.EndAt != nil && exam.EndAt.Before(deadline) {
		deadline = *exam.EndAt
	}
	return deadline
}

// startRetention is how long the first-open marker is kept: at least until
// the exam closes, and never shorter than one full attempt.
func (s *AttemptService) startRetention(exam *model.Exam, now time.Time) time.Duration {
	keep := exam.TimeLimit() + s.cfg.Grace + s.cfg.SessionPadding
	if exam.EndAt != nil {
		if untilEnd := exam.EndAt.Sub(now) + s.cfg.Grace + s.cfg.SessionPadding; untilEnd > keep {
			keep = untilEnd
		}
	} else if s.cfg.StartRetention > keep {
		keep = s.cfg.StartRetention
	}
	return keep
}

// checkWindow applies the availability window. Each bound is optional.
func checkWindow(exam *model.Exam, now time.Time) error {
	if exam.StartAt != nil && now.Before(*exam.StartAt) {
		return &UpcomingError{StartsAt: *exam.StartAt}
	}
	if exam.EndAt != nil && now.After(*exam.EndAt) {
		return ErrExamExpired
	}
	return nil
}
