package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DashboardRepository handles admin dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// DashboardCounts holds the stat cards of the admin dashboard.
type DashboardCounts struct {
	PendingStudents     int `json:"pending_students"`
	ApprovedStudents    int `json:"approved_students"`
	TotalExams          int `json:"total_exams"`
	TotalQuestions      int `json:"total_questions"`
	TotalSubmissions    int `json:"total_submissions"`
	RecentProctorEvents int `json:"recent_proctor_events"`
}

// GetSummaryCounts retrieves the high-level metrics for the dashboard.
func (r *DashboardRepository) GetSummaryCounts(ctx context.Context, since time.Time) (DashboardCounts, error) {
	var c DashboardCounts
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM students WHERE status = 'pending'),
			(SELECT COUNT(*) FROM students WHERE status = 'approved'),
			(SELECT COUNT(*) FROM exams),
			(SELECT COUNT(*) FROM questions),
			(SELECT COUNT(*) FROM student_performance),
			(SELECT COUNT(*) FROM proctor_logs WHERE recorded_at >= $1)`,
		since,
	).Scan(&c.PendingStudents, &c.ApprovedStudents, &c.TotalExams, &c.TotalQuestions, &c.TotalSubmissions, &c.RecentProctorEvents)
	return c, err
}

// DashboardUpcomingExam represents minimal data for upcoming scheduled exams.
type DashboardUpcomingExam struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	StartAt          time.Time `json:"start_at"`
	TimeLimitMinutes int       `json:"time_limit_minutes"`
}

// GetUpcomingExams retrieves the next N exams that have not opened yet.
func (r *DashboardRepository) GetUpcomingExams(ctx context.Context, now time.Time, limit int) ([]DashboardUpcomingExam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, start_at, time_limit_minutes
		 FROM exams
		 WHERE start_at > $1
		 ORDER BY start_at ASC LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exams := make([]DashboardUpcomingExam, 0, limit)
	for rows.Next() {
		var e DashboardUpcomingExam
		if err := rows.Scan(&e.ID, &e.Title, &e.StartAt, &e.TimeLimitMinutes); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// DashboardExamActivity summarises submissions for one exam.
type DashboardExamActivity struct {
	ExamID       uuid.UUID `json:"exam_id"`
	Title        string    `json:"title"`
	Submissions  int       `json:"submissions"`
	AverageScore float64   `json:"average_score"`
	LastSubmit   time.Time `json:"last_submitted_at"`
}

// GetRecentActivity lists exams ordered by their latest submission.
func (r *DashboardRepository) GetRecentActivity(ctx context.Context, limit int) ([]DashboardExamActivity, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.title, COUNT(sp.id), COALESCE(AVG(sp.score), 0), MAX(sp.submitted_at)
		 FROM student_performance sp
		 JOIN exams e ON e.id = sp.exam_id
		 GROUP BY e.id, e.title
		 ORDER BY MAX(sp.submitted_at) DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activity := make([]DashboardExamActivity, 0, limit)
	for rows.Next() {
		var a DashboardExamActivity
		if err := rows.Scan(&a.ExamID, &a.Title, &a.Submissions, &a.AverageScore, &a.LastSubmit); err != nil {
			return nil, err
		}
		activity = append(activity, a)
	}
	return activity, rows.Err()
}
