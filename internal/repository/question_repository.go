package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exproctor-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves all questions for an exam in authoring order.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, position, kind, text, option_a, option_b, option_c, option_d,
		        correct_answer, explanation, media_path
		 FROM questions WHERE exam_id = $1 ORDER BY position, id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var (
			q       model.Question
			options [4]*string
			correct *string
		)
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Position, &q.Kind, &q.Text,
			&options[0], &options[1], &options[2], &options[3],
			&correct, &q.Explanation, &q.MediaPath); err != nil {
			return nil, err
		}
		body, err := model.BuildBody(q.Kind, options, correct)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		q.Body = body
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
