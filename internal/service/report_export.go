package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	resultsSheet   = "Results"
	proctorSheet   = "Proctoring"
	exportPageSize = 100
)

var (
	resultsHeader = []interface{}{"Student ID", "Name", "Email", "Course", "Questions", "Correct", "Incorrect", "Score", "Submitted At"}
	proctorHeader = []interface{}{"Student ID", "Event", "Count"}
)

// ExportResults writes an exam's results and per-student proctor event
// counts to w as an XLSX workbook. Nothing is written if gathering fails.
func (s *ReportService) ExportResults(ctx context.Context, exam *model.Exam, w io.Writer) error {
	results, err := s.allResults(ctx, exam.ID)
	if err != nil {
		return err
	}
	counts, err := s.logRepo.CountByStudent(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("count proctor events: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(proctorSheet); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	rows := make([][]interface{}, 0, len(results))
	for _, r := range results {
		rows = append(rows, []interface{}{
			r.StudentID, r.StudentName, r.StudentEmail, r.Course,
			r.TotalQuestions, r.CorrectCount, r.IncorrectCount, r.Score,
			r.SubmittedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := writeSheet(f, resultsSheet, bold, resultsHeader, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(resultsSheet, "B", "C", 28); err != nil {
		return err
	}

	rows = rows[:0]
	for _, c := range counts {
		rows = append(rows, []interface{}{c.StudentID, c.EventType, c.Count})
	}
	if err := writeSheet(f, proctorSheet, bold, proctorHeader, rows); err != nil {
		return err
	}

	return f.Write(w)
}

func (s *ReportService) allResults(ctx context.Context, examID uuid.UUID) ([]model.ExamResultRow, error) {
	var all []model.ExamResultRow
	for offset := 0; ; offset += exportPageSize {
		page, total, err := s.perfRepo.ListByExam(ctx, examID, exportPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list results: %w", err)
		}
		all = append(all, page...)
		if len(page) < exportPageSize || len(all) >= total {
			return all, nil
		}
	}
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
