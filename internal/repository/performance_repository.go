package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exproctor-backend/internal/model"
)

// ErrAlreadySubmitted is returned when a performance record already exists
// for the (student, exam) pair.
var ErrAlreadySubmitted = errors.New("performance already recorded for this student and exam")

// PerformanceRepository handles graded results and per-question responses.
type PerformanceRepository struct {
	pool *pgxpool.Pool
}

// NewPerformanceRepository creates a new PerformanceRepository.
func NewPerformanceRepository(pool *pgxpool.Pool) *PerformanceRepository {
	return &PerformanceRepository{pool: pool}
}

// Exists reports whether the student already has a result for the exam.
func (r *PerformanceRepository) Exists(ctx context.Context, studentID int, examID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM student_performance WHERE student_id = $1 AND exam_id = $2)`,
		studentID, examID,
	).Scan(&exists)
	return exists, err
}

// SubmittedExamIDs returns the exams the student has a result for.
func (r *PerformanceRepository) SubmittedExamIDs(ctx context.Context, studentID int) (map[uuid.UUID]bool, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_id FROM student_performance WHERE student_id = $1`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// Record writes the performance record and every response in one
// transaction. The unique (student_id, exam_id) constraint decides
// concurrent submissions: the loser inserts nothing, gets ErrAlreadySubmitted
// and rolls back its responses.
func (r *PerformanceRepository) Record(ctx context.Context, perf *model.PerformanceRecord, responses []model.ResponseRecord) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM student_performance WHERE student_id = $1 AND exam_id = $2)`,
		perf.StudentID, perf.ExamID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check existing: %w", err)
	}
	if exists {
		return ErrAlreadySubmitted
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO student_performance (student_id, exam_id, total_questions, correct_count, incorrect_count, score, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (student_id, exam_id) DO NOTHING
		 RETURNING id`,
		perf.StudentID, perf.ExamID, perf.TotalQuestions, perf.CorrectCount, perf.IncorrectCount,
		perf.Score, perf.SubmittedAt,
	).Scan(&perf.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadySubmitted
		}
		return fmt.Errorf("insert performance: %w", err)
	}

	if len(responses) > 0 {
		rows := make([][]interface{}, 0, len(responses))
		for _, resp := range responses {
			rows = append(rows, []interface{}{
				resp.StudentID, resp.ExamID, resp.QuestionID, string(resp.Kind), resp.Answer, resp.IsCorrect,
				resp.MediaPath, resp.DurationSeconds, resp.MediaSubmitted, resp.SubmittedAt,
			})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"student_responses"},
			[]string{"student_id", "exam_id", "question_id", "kind", "answer", "is_correct",
				"media_path", "duration_seconds", "media_submitted", "submitted_at"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("insert responses: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListByExam returns results for an exam with student identity, best first.
func (r *PerformanceRepository) ListByExam(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.ExamResultRow, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM student_performance WHERE exam_id = $1`, examID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.student_id, p.exam_id, p.total_questions, p.correct_count, p.incorrect_count,
		        p.score, p.submitted_at, s.name, s.email, s.course
		 FROM student_performance p
		 JOIN students s ON s.id = p.student_id
		 WHERE p.exam_id = $1
		 ORDER BY p.score DESC, p.submitted_at
		 LIMIT $2 OFFSET $3`,
		examID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []model.ExamResultRow
	for rows.Next() {
		var res model.ExamResultRow
		if err := rows.Scan(&res.ID, &res.StudentID, &res.ExamID, &res.TotalQuestions, &res.CorrectCount,
			&res.IncorrectCount, &res.Score, &res.SubmittedAt, &res.StudentName, &res.StudentEmail,
			&res.Course); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}
