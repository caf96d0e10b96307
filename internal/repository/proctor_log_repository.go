package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exproctor-backend/internal/model"
)

// ProctorLogRepository handles the append-only proctoring audit log.
type ProctorLogRepository struct {
	pool *pgxpool.Pool
}

// NewProctorLogRepository creates a new ProctorLogRepository.
func NewProctorLogRepository(pool *pgxpool.Pool) *ProctorLogRepository {
	return &ProctorLogRepository{pool: pool}
}

// CopyLogs bulk-inserts entries with the COPY protocol.
func (r *ProctorLogRepository) CopyLogs(ctx context.Context, entries []model.ProctorLogEntry) (int64, error) {
	rows := make([][]interface{}, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []interface{}{e.StudentID, e.ExamID, e.EventType, e.Description, e.RecordedAt})
	}
	return r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"proctor_logs"},
		[]string{"student_id", "exam_id", "event_type", "description", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
}

// Insert writes a single entry.
func (r *ProctorLogRepository) Insert(ctx context.Context, e *model.ProctorLogEntry) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO proctor_logs (student_id, exam_id, event_type, description, recorded_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		e.StudentID, e.ExamID, e.EventType, e.Description, e.RecordedAt,
	).Scan(&e.ID)
}

// ListByExam returns log entries for an exam, newest first, optionally for one student.
func (r *ProctorLogRepository) ListByExam(ctx context.Context, examID uuid.UUID, studentID *int, limit, offset int) ([]model.ProctorLogRow, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM proctor_logs
		 WHERE exam_id = $1 AND ($2::int IS NULL OR student_id = $2)`,
		examID, studentID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT l.id, l.student_id, l.exam_id, l.event_type, l.description, l.recorded_at, s.name
		 FROM proctor_logs l
		 JOIN students s ON s.id = l.student_id
		 WHERE l.exam_id = $1 AND ($2::int IS NULL OR l.student_id = $2)
		 ORDER BY l.recorded_at DESC, l.id DESC
		 LIMIT $3 OFFSET $4`,
		examID, studentID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var logs []model.ProctorLogRow
	for rows.Next() {
		var l model.ProctorLogRow
		if err := rows.Scan(&l.ID, &l.StudentID, &l.ExamID, &l.EventType, &l.Description,
			&l.RecordedAt, &l.StudentName); err != nil {
			return nil, 0, err
		}
		logs = append(logs, l)
	}
	return logs, total, rows.Err()
}

// CountByStudent returns event counts per student and event type for an exam.
func (r *ProctorLogRepository) CountByStudent(ctx context.Context, examID uuid.UUID) ([]model.ProctorEventCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, event_type, COUNT(*)
		 FROM proctor_logs
		 WHERE exam_id = $1
		 GROUP BY student_id, event_type
		 ORDER BY student_id, event_type`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []model.ProctorEventCount
	for rows.Next() {
		var c model.ProctorEventCount
		if err := rows.Scan(&c.StudentID, &c.EventType, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
