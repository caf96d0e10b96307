package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stemsi/exproctor-backend/internal/response"
)

// ResultLister pages through an exam's submitted results.
type ResultLister interface {
	ListByExam(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.ExamResultRow, int, error)
}

// ProctorLogReader reads an exam's proctor logs.
type ProctorLogReader interface {
	ListByExam(ctx context.Context, examID uuid.UUID, studentID *int, limit, offset int) ([]model.ProctorLogRow, int, error)
	CountByStudent(ctx context.Context, examID uuid.UUID) ([]model.ProctorEventCount, error)
}

// ReportService serves exam results and proctoring reports to admins.
type ReportService struct {
	perfRepo ResultLister
	logRepo  ProctorLogReader
}

// NewReportService creates a new ReportService.
func NewReportService(perfRepo ResultLister, logRepo ProctorLogReader) *ReportService {
	return &ReportService{perfRepo: perfRepo, logRepo: logRepo}
}

// Results lists submitted results for an exam.
func (s *ReportService) Results(ctx context.Context, examID uuid.UUID, page, perPage int) ([]model.ExamResultRow, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)

	results, total, err := s.perfRepo.ListByExam(ctx, examID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if results == nil {
		results = []model.ExamResultRow{}
	}
	return results, paginate(page, perPage, total), nil
}

// Logs lists proctor log entries for an exam, optionally for one student.
func (s *ReportService) Logs(ctx context.Context, examID uuid.UUID, studentID *int, page, perPage int) ([]model.ProctorLogRow, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)

	logs, total, err := s.logRepo.ListByExam(ctx, examID, studentID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if logs == nil {
		logs = []model.ProctorLogRow{}
	}
	return logs, paginate(page, perPage, total), nil
}

// MonitorSnapshot is the initial state sent to a live monitor.
type MonitorSnapshot struct {
	Submitted   int                       `json:"submitted"`
	EventCounts []model.ProctorEventCount `json:"event_counts"`
	TotalEvents int64                     `json:"total_events"`
}

// Snapshot gathers submission and event counts concurrently. Event counts
// are best-effort.
func (s *ReportService) Snapshot(ctx context.Context, examID uuid.UUID) (*MonitorSnapshot, error) {
	var (
		submitted int
		counts    []model.ProctorEventCount
		subErr    error
		countErr  error
		wg        sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, submitted, subErr = s.perfRepo.ListByExam(ctx, examID, 1, 0)
	}()
	go func() {
		defer wg.Done()
		counts, countErr = s.logRepo.CountByStudent(ctx, examID)
	}()
	wg.Wait()

	if subErr != nil {
		return nil, subErr
	}

	snap := &MonitorSnapshot{Submitted: submitted, EventCounts: []model.ProctorEventCount{}}
	if countErr == nil && counts != nil {
		snap.EventCounts = counts
		for _, c := range counts {
			snap.TotalEvents += c.Count
		}
	}
	return snap, nil
}
