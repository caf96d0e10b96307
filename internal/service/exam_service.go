package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stemsi/exproctor-backend/internal/repository"
	"github.com/stemsi/exproctor-backend/internal/response"
)

// Domain errors.
var (
	ErrPaperLocked      = errors.New("question paper is available after submission")
	ErrPaperUnavailable = errors.New("exam has no question paper")
)

// QuestionError reports which question of a create request is invalid.
type QuestionError struct {
	Index int
	Err   error
}

func (e *QuestionError) Error() string {
	return fmt.Sprintf("question %d: %v", e.Index+1, e.Err)
}

func (e *QuestionError) Unwrap() error { return e.Err }

// ExamService handles exam administration and the student lobby.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	perfRepo     *repository.PerformanceRepository
	log          zerolog.Logger
	now          func() time.Time
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	perfRepo *repository.PerformanceRepository,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		perfRepo:     perfRepo,
		log:          log.With().Str("component", "exam_service").Logger(),
		now:          time.Now,
	}
}

// Create inserts an exam together with its questions.
func (s *ExamService) Create(ctx context.Context, authorID int, req model.CreateExamRequest) (*model.Exam, error) {
	exam, questions, err := BuildExam(authorID, req)
	if err != nil {
		return nil, err
	}
	if err := s.examRepo.CreateWithQuestions(ctx, exam, questions); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Int("author_id", authorID).
		Int("questions", len(questions)).
		Msg("Exam created")
	return exam, nil
}

// BuildExam converts a create request into an exam and its validated questions.
func BuildExam(authorID int, req model.CreateExamRequest) (*model.Exam, []model.Question, error) {
	if len(req.Questions) == 0 {
		return nil, nil, ErrEmptyExam
	}
	if req.TimeLimitMinutes <= 0 {
		return nil, nil, ErrInvalidTimeLimit
	}

	courses := make([]string, 0, len(req.Courses))
	for _, c := range req.Courses {
		if c = strings.TrimSpace(c); c != "" {
			courses = append(courses, c)
		}
	}
	if len(courses) == 0 {
		courses = []string{model.AllCourses}
	}

	show := true
	if req.ShowScores != nil {
		show = *req.ShowScores
	}

	exam := &model.Exam{
		ID:               uuid.New(),
		Title:            strings.TrimSpace(req.Title),
		Subject:          strings.TrimSpace(req.Subject),
		TimeLimitMinutes: req.TimeLimitMinutes,
		StartAt:          req.StartAt,
		EndAt:            req.EndAt,
		Courses:          courses,
		ShowScores:       show,
		AuthorID:         authorID,
		QuestionCount:    len(req.Questions),
	}

	questions := make([]model.Question, 0, len(req.Questions))
	for i, in := range req.Questions {
		q, err := in.ToQuestion(i + 1)
		if err != nil {
			return nil, nil, &QuestionError{Index: i, Err: err}
		}
		q.ExamID = exam.ID
		questions = append(questions, q)
	}
	return exam, questions, nil
}

// List retrieves exams with pagination.
func (s *ExamService) List(ctx context.Context, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)

	exams, total, err := s.examRepo.ListPaginated(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, paginate(page, perPage, total), nil
}

// Get retrieves an exam without its questions.
func (s *ExamService) Get(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.get(ctx, id)
}

// Detail returns an exam with its questions, answer keys included.
func (s *ExamService) Detail(ctx context.Context, id uuid.UUID) (*model.ExamWithQuestions, error) {
	exam, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionRepo.ListByExam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return &model.ExamWithQuestions{Exam: *exam, Questions: questions}, nil
}

// Delete removes an exam and, through the cascade, its questions. It returns
// the exam so the caller can clean up stored files.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.examRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	s.log.Info().Str("exam_id", id.String()).Msg("Exam deleted")
	return exam, nil
}

// SetScoreVisibility toggles whether students see their score.
func (s *ExamService) SetScoreVisibility(ctx context.Context, id uuid.UUID, show bool) error {
	if err := s.examRepo.SetScoreVisibility(ctx, id, show); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrExamNotFound
		}
		return err
	}
	return nil
}

// AttachPaper stores the reference paper path and returns the previous one.
func (s *ExamService) AttachPaper(ctx context.Context, id uuid.UUID, path string) (*string, error) {
	exam, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.examRepo.SetPaperPath(ctx, id, path); err != nil {
		return nil, err
	}
	return exam.PaperPath, nil
}

// Lobby lists the exams open to a student's course with their status.
func (s *ExamService) Lobby(ctx context.Context, c Candidate) ([]model.LobbyExam, error) {
	exams, err := s.examRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	submitted, err := s.perfRepo.SubmittedExamIDs(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return BuildLobby(exams, submitted, c.Course, s.now()), nil
}

// BuildLobby filters exams by course and assigns each a status.
func BuildLobby(exams []model.Exam, submitted map[uuid.UUID]bool, course string, now time.Time) []model.LobbyExam {
	lobby := make([]model.LobbyExam, 0, len(exams))
	for i := range exams {
		e := &exams[i]
		if !e.EligibleFor(course) {
			continue
		}

		status := model.LobbyAvailable
		switch err := checkWindow(e, now); {
		case submitted[e.ID]:
			status = model.LobbyCompleted
		case errors.Is(err, ErrExamUpcoming):
			status = model.LobbyUpcoming
		case errors.Is(err, ErrExamExpired):
			status = model.LobbyExpired
		}

		lobby = append(lobby, model.LobbyExam{
			ID:               e.ID,
			Title:            e.Title,
			Subject:          e.Subject,
			TimeLimitMinutes: e.TimeLimitMinutes,
			StartAt:          e.StartAt,
			EndAt:            e.EndAt,
			QuestionCount:    e.QuestionCount,
			HasPaper:         e.PaperPath != nil,
			Status:           status,
		})
	}
	return lobby
}

// PaperForStudent returns the paper path once the student has submitted.
func (s *ExamService) PaperForStudent(ctx context.Context, studentID int, examID uuid.UUID) (string, error) {
	exam, err := s.get(ctx, examID)
	if err != nil {
		return "", err
	}
	done, err := s.perfRepo.Exists(ctx, studentID, examID)
	if err != nil {
		return "", err
	}
	if !done {
		return "", ErrPaperLocked
	}
	if exam.PaperPath == nil {
		return "", ErrPaperUnavailable
	}
	return *exam.PaperPath, nil
}

func (s *ExamService) get(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}
