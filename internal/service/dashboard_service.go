package service

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/exproctor-backend/internal/repository"
)

const (
	dashboardListSize = 5

	// DefaultEventWindow is how far back the proctor event card looks.
	DefaultEventWindow = 24 * time.Hour
	maxEventWindow     = 7 * 24 * time.Hour
)

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	repository.DashboardCounts
	UpcomingExams  []repository.DashboardUpcomingExam `json:"upcoming_exams"`
	RecentActivity []repository.DashboardExamActivity `json:"recent_activity"`
}

// DashboardReader is the storage behind the admin dashboard.
type DashboardReader interface {
	GetSummaryCounts(ctx context.Context, since time.Time) (repository.DashboardCounts, error)
	GetUpcomingExams(ctx context.Context, now time.Time, limit int) ([]repository.DashboardUpcomingExam, error)
	GetRecentActivity(ctx context.Context, limit int) ([]repository.DashboardExamActivity, error)
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo DashboardReader
	now  func() time.Time
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo DashboardReader) *DashboardService {
	return &DashboardService{repo: repo, now: time.Now}
}

// GetDashboardData fetches the stat cards, the next exams to open and the
// exams with the most recent submissions. Proctor events are counted over
// eventWindow, clamped to a week.
func (s *DashboardService) GetDashboardData(ctx context.Context, eventWindow time.Duration) (*DashboardData, error) {
	if eventWindow <= 0 {
		eventWindow = DefaultEventWindow
	}
	eventWindow = min(eventWindow, maxEventWindow)
	now := s.now()

	counts, err := s.repo.GetSummaryCounts(ctx, now.Add(-eventWindow))
	if err != nil {
		return nil, fmt.Errorf("summary counts: %w", err)
	}

	upcoming, err := s.repo.GetUpcomingExams(ctx, now, dashboardListSize)
	if err != nil {
		return nil, fmt.Errorf("upcoming exams: %w", err)
	}

	recent, err := s.repo.GetRecentActivity(ctx, dashboardListSize)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}

	return &DashboardData{
		DashboardCounts: counts,
		UpcomingExams:   upcoming,
		RecentActivity:  recent,
	}, nil
}
