package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stemsi/exproctor-backend/internal/repository"
	"github.com/stemsi/exproctor-backend/internal/response"
	"golang.org/x/crypto/bcrypt"
)

// ErrStudentNotFound is returned when a student id does not exist.
var ErrStudentNotFound = errors.New("student not found")

// StudentService handles registration and approval of students.
type StudentService struct {
	studentRepo *repository.StudentRepository
	bcryptCost  int
	log         zerolog.Logger
}

// NewStudentService creates a new StudentService.
func NewStudentService(studentRepo *repository.StudentRepository, bcryptCost int, log zerolog.Logger) *StudentService {
	return &StudentService{
		studentRepo: studentRepo,
		bcryptCost:  bcryptCost,
		log:         log.With().Str("component", "student_service").Logger(),
	}
}

// Register creates a pending student account.
func (s *StudentService) Register(ctx context.Context, req model.RegisterStudentRequest) (*model.Student, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	student := &model.Student{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		Course:       strings.TrimSpace(req.Course),
		Status:       model.StudentStatusPending,
		PasswordHash: string(hashed),
	}
	if err := s.studentRepo.Create(ctx, student); err != nil {
		return nil, err
	}

	s.log.Info().Int("student_id", student.ID).Str("course", student.Course).Msg("Student registered")
	return student, nil
}

// GetByID retrieves a student by ID.
func (s *StudentService) GetByID(ctx context.Context, id int) (*model.Student, error) {
	student, err := s.studentRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStudentNotFound
	}
	return student, err
}

// ListByStatus retrieves students in an approval state with pagination.
func (s *StudentService) ListByStatus(ctx context.Context, status model.StudentStatus, page, perPage int) ([]model.Student, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)

	students, total, err := s.studentRepo.ListByStatus(ctx, status, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if students == nil {
		students = []model.Student{}
	}

	return students, paginate(page, perPage, total), nil
}

// Review approves or rejects a registration.
func (s *StudentService) Review(ctx context.Context, id int, status model.StudentStatus) error {
	if err := s.studentRepo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStudentNotFound
		}
		return err
	}
	s.log.Info().Int("student_id", id).Str("status", string(status)).Msg("Student reviewed")
	return nil
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

func paginate(page, perPage, total int) *response.Pagination {
	return &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
}
