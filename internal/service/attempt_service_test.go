package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exproctor-backend/internal/config"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stemsi/exproctor-backend/internal/repository"
	"github.com/stretchr/testify/require"
)

// ─── Fakes ──────────────────────────────────────────────────────────────────

type fakeExams struct {
	exams map[uuid.UUID]*model.Exam
}

func (f *fakeExams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	e, ok := f.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

type fakeQuestions struct {
	byExam map[uuid.UUID][]model.Question
}

func (f *fakeQuestions) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	return f.byExam[examID], nil
}

type recorded struct {
	perf      model.PerformanceRecord
	responses []model.ResponseRecord
}

type fakePerformance struct {
	mu        sync.Mutex
	records   map[string]recorded
	recordErr error
	existsErr error
}

func perfKey(studentID int, examID uuid.UUID) string {
	return fmt.Sprintf("%s/%d", examID, studentID)
}

func (f *fakePerformance) Exists(_ context.Context, studentID int, examID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.records[perfKey(studentID, examID)]
	return ok, nil
}

func (f *fakePerformance) Record(_ context.Context, perf *model.PerformanceRecord, responses []model.ResponseRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	key := perfKey(perf.StudentID, perf.ExamID)
	if _, ok := f.records[key]; ok {
		return repository.ErrAlreadySubmitted
	}
	f.records[key] = recorded{perf: *perf, responses: responses}
	return nil
}

// ─── Fixture ────────────────────────────────────────────────────────────────

type attemptFixture struct {
	svc       *AttemptService
	exams     *fakeExams
	questions *fakeQuestions
	perf      *fakePerformance
	redis     *miniredis.Miniredis
	clock     time.Time

	exam    *model.Exam
	mcq     model.Question
	tf      model.Question
	video   model.Question
	student Candidate
}

func (f *attemptFixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	exam := &model.Exam{
		ID:               uuid.New(),
		Title:            "Arithmetic",
		Subject:          "Math",
		TimeLimitMinutes: 30,
		StartAt:          &start,
		Courses:          []string{"Computer Science"},
		ShowScores:       true,
	}

	f := &attemptFixture{
		exams:   &fakeExams{exams: map[uuid.UUID]*model.Exam{exam.ID: exam}},
		perf:    &fakePerformance{records: map[string]recorded{}},
		redis:   mr,
		clock:   start.Add(5 * time.Minute),
		exam:    exam,
		mcq:     choiceQuestion("2+2", "B", "3", "4", "5", "6"),
		tf:      trueFalseQuestion("sky is blue", true),
		video:   openQuestion(model.QuestionKindVideoResponse, "introduce yourself"),
		student: Candidate{ID: 7, Course: "computer science"},
	}
	f.questions = &fakeQuestions{byExam: map[uuid.UUID][]model.Question{
		exam.ID: {f.mcq, f.tf, f.video},
	}}

	cfg := config.AttemptConfig{
		Grace:          2 * time.Minute,
		SessionPadding: 30 * time.Minute,
		StartRetention: 24 * time.Hour,
		ResultTTL:      15 * time.Minute,
	}
	f.svc = NewAttemptService(f.exams, f.questions, f.perf, NewAttemptStore(rdb), cfg, zerolog.Nop())
	f.svc.now = func() time.Time { return f.clock }
	f.svc.shuffle = reverseShuffle
	return f
}

func letterFor(t *testing.T, view *model.AttemptView, questionID uuid.UUID, text string) string {
	t.Helper()
	for _, q := range view.Questions {
		if q.ID != questionID {
			continue
		}
		for _, o := range q.Options {
			if o.Text == text {
				return o.Letter
			}
		}
	}
	t.Fatalf("option %q not presented for %s", text, questionID)
	return ""
}

// ─── BeginAttempt ───────────────────────────────────────────────────────────

func TestBeginAttempt_PresentsShuffledExam(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	view, err := f.svc.BeginAttempt(ctx, f.student, f.exam.ID)
	require.NoError(t, err)

	require.Equal(t, f.exam.ID, view.ExamID)
	require.Len(t, view.Questions, 3)
	require.Equal(t, f.video.ID, view.Questions[0].ID)
	require.Equal(t, f.mcq.ID, view.Questions[2].ID)
	require.Equal(t, "C", letterFor(t, view, f.mcq.ID, "4"))
	require.Equal(t, f.clock, view.StartedAt)
	require.Equal(t, f.clock.Add(30*time.Minute), view.Deadline)

	active, err := f.svc.HasActiveAttempt(ctx, f.student.ID, f.exam.ID)
	require.NoError(t, err)
	require.True(t, active)
}

func TestBeginAttempt_DeadlineCappedByExamEnd(t *testing.T) {
	f := newAttemptFixture(t)
	end := f.clock.Add(10 * time.Minute)
	f.exam.EndAt = &end

	view, err := f.svc.BeginAttempt(context.Background(), f.student, f.exam.ID)
	require.NoError(t, err)
	require.Equal(t, end, view.Deadline)
}

func TestBeginAttempt_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *attemptFixture)
		wantErr error
	}{
		{
			name:    "unknown exam",
			mutate:  func(f *attemptFixture) { delete(f.exams.exams, f.exam.ID) },
			wantErr: ErrExamNotFound,
		},
		{
			name:    "other course",
			mutate:  func(f *attemptFixture) { f.student.Course = "Biology" },
			wantErr: ErrNotEligible,
		},
		{
			name:    "not started",
			mutate:  func(f *attemptFixture) { f.clock = f.exam.StartAt.Add(-time.Minute) },
			wantErr: ErrExamUpcoming,
		},
		{
			name: "window closed",
			mutate: func(f *attemptFixture) {
				end := f.clock.Add(-time.Second)
				f.exam.EndAt = &end
			},
			wantErr: ErrExamExpired,
		},
		{
			name: "already submitted",
			mutate: func(f *attemptFixture) {
				f.perf.records[perfKey(f.student.ID, f.exam.ID)] = recorded{}
			},
			wantErr: ErrAlreadyAttempted,
		},
		{
			name:    "no questions",
			mutate:  func(f *attemptFixture) { f.questions.byExam[f.exam.ID] = nil },
			wantErr: ErrEmptyExam,
		},
		{
			name:    "bad time limit",
			mutate:  func(f *attemptFixture) { f.exam.TimeLimitMinutes = 0 },
			wantErr: ErrInvalidTimeLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAttemptFixture(t)
			tt.mutate(f)

			_, err := f.svc.BeginAttempt(context.Background(), f.student, f.exam.ID)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBeginAttempt_UpcomingCarriesStartTime(t *testing.T) {
	f := newAttemptFixture(t)
	f.clock = f.exam.StartAt.Add(-time.Hour)

	_, err := f.svc.BeginAttempt(context.Background(), f.student, f.exam.ID)

	var upcoming *UpcomingError
	require.True(t, errors.As(err, &upcoming))
	require.Equal(t, *f.exam.StartAt, upcoming.StartsAt)
}

func TestBeginAttempt_ReopenKeepsStartTime(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	first, err := f.svc.BeginAttempt(ctx, f.student, f.exam.ID)
	require.NoError(t, err)

	f.advance(5 * time.Minute)
	f.svc.shuffle = identityShuffle
	second, err := f.svc.BeginAttempt(ctx, f.student, f.exam.ID)
	require.NoError(t, err)

	require.NotEqual(t, first.AttemptID, second.AttemptID)
	require.Equal(t, first.StartedAt, second.StartedAt)
	require.Equal(t, first.Deadline, second.Deadline)

	// The new mapping is the one used for grading.
	require.Equal(t, "B", letterFor(t, second, f.mcq.ID, "4"))
	result, err := f.svc.SubmitAttempt(ctx, f.student, f.exam.ID, answers(
		f.mcq.ID.String(), "B",
		f.tf.ID.String(), "True",
	))
	require.NoError(t, err)
	require.Equal(t, 2, result.CorrectCount)
}

func TestBeginAttempt_ReopenAfterDeadlineIsRejected(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	_, err := f.svc.BeginAttempt(ctx, f.student, f.exam.ID)
	require.NoError(t, err)

	// 09:45, ten minutes past the 09:35 deadline.
	f.advance(40 * time.Minute)
	_, err = f.svc.BeginAttempt(ctx, f.student, f.exam.ID)
	require.ErrorIs(t, err, ErrAttemptTimeExceeded)
	_, err = f.svc.SubmitAttempt(ctx, f.student, f.exam.ID, answers())
	require.ErrorIs(t, err, ErrAttemptTimeExceeded)

	// The session is gone but the first-open time is still remembered.
	f.advance(time.Hour)
	f.redis.FastForward(100 * time.Minute)
	ok, err := f.svc.HasActiveAttempt(ctx, f.student.ID, f.exam.ID)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = f.svc.BeginAttempt(ctx, f.student, f.exam.ID)
	require.ErrorIs(t, err, ErrAttemptTimeExceeded)
	_, err = f.svc.SubmitAttempt(ctx, f.student, f.exam.ID, answers())
	require.ErrorIs(t, err, ErrAttemptTimeExceeded)
	require.Empty(t, f.perf.records)
}

func TestBeginAttempt_StartMarkerLastsUntilExamEnd(t *testing.T) {
	f := newAttemptFixture(t)
	end := f.clock.Add(6 * time.Hour)
	f.exam.EndAt = &end
	ctx := context.Background()

	_, err := f.svc.BeginAttempt(ctx, f.student, f.exam.ID)
	require.NoError(t, err)

	ttl := f.redis.TTL(config.CacheKey.AttemptStartKey(f.exam.ID.String(), f.student.ID))
	require.Equal(t, 6*time.Hour+32*time.Minute, ttl)
}

func TestBeginAttempt_ReopenKeepsUploadedVideos(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	secs := 42
	upload := model.VideoUpload{Path: "/uploads/intro.webm", DurationSeconds: &secs}

	_, err := f.svc.BeginAttempt(ctx, f.student, f.exam.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.AttachVideo(ctx, f.student, f.exam.ID, f.video.ID, upload))

	f.advance(3 * time.Minute)
	_, err = f.svc.BeginAttempt(ctx, f.student, f.exam.ID)
	require.NoError(t, err)

	_, err = f.svc.SubmitAttempt(ctx, f.student, f.exam.ID, answers())
	require.NoError(t, err)

	rec := f.perf.records[perfKey(f.student.ID, f.exam.ID)]
	var found bool
	for _, r := range rec.responses {
		if r.QuestionID == f.video.ID {
			found = true
			require.True(t, r.MediaSubmitted)
			require.Equal(t, upload.Path, *r.MediaPath)
			require.Equal(t, 42, *r.DurationSeconds)
		}
	}
	require.True(t, found)
}

// ─── SubmitAttempt ──────────────────────────────────────────────────────────

func TestSubmitAttempt_GradesAgainstPresentedLetters(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	view, err := f.svc.BeginAttempt(ctx, f.student, f.exam.ID)
	require.NoError(t, err)

	f.advance(10 * time.Minute)
	result, err := f.svc.SubmitAttempt(ctx, f.student, f.exam.ID, answers(
		f.mcq.ID.String(), letterFor(t, view, f.mcq.ID, "4"),
		f.tf.ID.String(), "True",
	))
	require.NoError(t, err)

	require.Equal(t, 3, result.TotalQuestions)
	require.Equal(t, 2, result.CorrectCount)
	require.Equal(t, 0, result.IncorrectCount)
	require.InDelta(t, 100.0, result.Score, 0.0001)

	rec := f.perf.records[perfKey(f.student.ID, f.exam.ID)]
	require.Equal(t, f.student.ID, rec.perf.StudentID)
	require.Len(t, rec.responses, 3)
	for _, r := range rec.responses {
		require.Equal(t, f.exam.ID, r.ExamID)
		require.Equal(t, f.clock, r.SubmittedAt)
	}

	active, err := f.svc.HasActiveAttempt(ctx, f.student.ID, f.exam.ID)
	require.NoError(t, err)
	require.False(t, active)

	latest, err := f.svc.LatestResult(ctx, f.student.ID, f.exam.ID)
	require.NoError(t, err)
	require.Equal(t, result.Score, latest.Score)
}

func TestSubmitAttempt_AuthoringLetterIsWrongAfterShuffle(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	_, err := f.svc.BeginAttempt(ctx, f.student, f.exam.ID)
	require.NoError(t, err)

	result, err := f.svc.SubmitAttempt(ctx, f.student, f.exam.ID, answers(f.mcq.ID.String(), "B"))
	require.NoError(t, err)
	require.Equal(t, 0, result.CorrectCount)
	require.Equal(t, 2, result.IncorrectCount)
}

func TestSubmitAttempt_WithoutSessionUsesAuthoringKeys(t *testing.T) {
	f := newAttemptFixture(t)

	result, err := f.svc.SubmitAttempt(context.Background(), f.student, f.exam.ID, answers(
		f.mcq.ID.String(), "B",
		f.tf.ID.String(), "False",
	))
	require.NoError(t, err)
	require.Equal(t, 1, result.CorrectCount)
	require.InDelta(t, 50.0, result.Score, 0.0001)
}

func TestSubmitAttempt_Late(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	_, err := f.svc.BeginAttempt(ctx, f.student, f.exam.ID)
	require.NoError(t, err)

	// Inside the grace period is still accepted.
	f.advance(31 * time.Minute)
	ok, err := f.svc.HasActiveAttempt(ctx, f.student.ID, f.exam.ID)
	require.NoError(t, err)
	require.True(t, ok)

	f.advance(2 * time.Minute)
	_, err = f.svc.SubmitAttempt(ctx, f.student, f.exam.ID, answers())
	require.ErrorIs(t, err, ErrAttemptTimeExceeded)
	require.Empty(t, f.perf.records)
}

func TestSubmitAttempt_AfterExamEnd(t *testing.T) {
	f := newAttemptFixture(t)
	end := f.clock.Add(time.Minute)
	f.exam.EndAt = &end
	f.advance(2 * time.Minute)

	_, err := f.svc.SubmitAttempt(context.Background(), f.student, f.exam.ID, answers())
	require.ErrorIs(t, err, ErrExamExpired)
}

func TestSubmitAttempt_Duplicate(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitAttempt(ctx, f.student, f.exam.ID, answers())
	require.NoError(t, err)

	_, err = f.svc.SubmitAttempt(ctx, f.student, f.exam.ID, answers())
	require.ErrorIs(t, err, ErrAlreadyAttempted)
}

func TestSubmitAttempt_ConcurrentSubmissionsRecordOnce(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SubmitAttempt(ctx, f.student, f.exam.ID, answers())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyAttempted)
	}
	require.Equal(t, 1, succeeded)
	require.Len(t, f.perf.records, 1)
}

func TestSubmitAttempt_StorageFailure(t *testing.T) {
	f := newAttemptFixture(t)
	f.perf.recordErr = errors.New("connection reset")

	_, err := f.svc.SubmitAttempt(context.Background(), f.student, f.exam.ID, answers())
	require.ErrorIs(t, err, ErrSubmissionFailed)
}

func TestSubmitAttempt_NotifiesSubscribers(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	var forgotten []int
	f.svc.OnSubmitted(func(studentID int) { forgotten = append(forgotten, studentID) })

	f.perf.recordErr = errors.New("connection reset")
	_, err := f.svc.SubmitAttempt(ctx, f.student, f.exam.ID, answers())
	require.Error(t, err)
	require.Empty(t, forgotten)

	f.perf.recordErr = nil
	_, err = f.svc.SubmitAttempt(ctx, f.student, f.exam.ID, answers())
	require.NoError(t, err)
	require.Equal(t, []int{f.student.ID}, forgotten)
}

func TestSubmitAttempt_PerformanceLookupFailureIsRetryable(t *testing.T) {
	f := newAttemptFixture(t)
	f.perf.existsErr = errors.New("connection refused")

	_, err := f.svc.SubmitAttempt(context.Background(), f.student, f.exam.ID, answers())
	require.ErrorIs(t, err, ErrSubmissionFailed)
}

func TestLatestResult_RedactedWhenScoresHidden(t *testing.T) {
	f := newAttemptFixture(t)
	f.exam.ShowScores = false
	ctx := context.Background()

	_, err := f.svc.SubmitAttempt(ctx, f.student, f.exam.ID, answers(f.mcq.ID.String(), "B"))
	require.NoError(t, err)

	latest, err := f.svc.LatestResult(ctx, f.student.ID, f.exam.ID)
	require.NoError(t, err)
	require.False(t, latest.ShowScores)
	require.Zero(t, latest.Score)
	require.Zero(t, latest.CorrectCount)

	f.redis.FastForward(16 * time.Minute)
	_, err = f.svc.LatestResult(ctx, f.student.ID, f.exam.ID)
	require.ErrorIs(t, err, ErrResultNotFound)
}

// ─── AttachVideo ────────────────────────────────────────────────────────────

func TestAttachVideo(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()
	upload := model.VideoUpload{Path: "/uploads/answer.webm"}

	err := f.svc.AttachVideo(ctx, f.student, f.exam.ID, f.video.ID, upload)
	require.ErrorIs(t, err, ErrNoActiveAttempt)

	_, err = f.svc.BeginAttempt(ctx, f.student, f.exam.ID)
	require.NoError(t, err)

	err = f.svc.AttachVideo(ctx, f.student, f.exam.ID, f.mcq.ID, upload)
	require.ErrorIs(t, err, ErrNotVideoQuestion)

	require.NoError(t, f.svc.AttachVideo(ctx, f.student, f.exam.ID, f.video.ID, upload))

	_, err = f.svc.SubmitAttempt(ctx, f.student, f.exam.ID, answers())
	require.NoError(t, err)

	rec := f.perf.records[perfKey(f.student.ID, f.exam.ID)]
	var found bool
	for _, r := range rec.responses {
		if r.QuestionID == f.video.ID {
			found = true
			require.True(t, r.MediaSubmitted)
			require.Equal(t, upload.Path, *r.MediaPath)
		}
	}
	require.True(t, found)
}
