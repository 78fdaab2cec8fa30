package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
	exportPage   = 500
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type reportService struct {
	serviceCore
}

func NewReportService(core serviceCore) ReportService {
	return &reportService{serviceCore: core}
}

func (s *reportService) GetStatistics(ctx context.Context, actor Actor, assessmentID uint) (*AssessmentStatistics, error) {
	assessment, err := s.loadAssessment(ctx, nil, assessmentID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, assessment, "view statistics"); err != nil {
		return nil, err
	}

	stats, err := s.repo.Attempt().GetStats(ctx, nil, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load statistics: %w", err)
	}

	result := &AssessmentStatistics{
		AssessmentID:      assessmentID,
		SubmittedAttempts: stats.SubmittedAttempts,
		InProgress:        stats.InProgress,
		AverageScore:      round2(stats.AverageScore),
		HighestScore:      stats.HighestScore,
		LowestScore:       stats.LowestScore,
		PassedCount:       stats.PassedCount,
		AverageTimeSpent:  stats.AverageTimeSpent,
		TotalMarks:        assessment.TotalMarks,
	}
	if stats.SubmittedAttempts > 0 {
		result.PassRate = round2(float64(stats.PassedCount) / float64(stats.SubmittedAttempts) * 100)
	}
	return result, nil
}

// ExportResults renders every submitted attempt into an XLSX workbook with a
// results sheet and a summary sheet.
func (s *reportService) ExportResults(ctx context.Context, actor Actor, assessmentID uint) (*ResultsExport, error) {
	s.logger.Info("Exporting results", "assessment_id", assessmentID, "actor_id", actor.ID)

	stats, err := s.GetStatistics(ctx, actor, assessmentID)
	if err != nil {
		return nil, err
	}
	assessment, err := s.loadAssessment(ctx, nil, assessmentID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.submittedAttempts(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	names := s.studentNames(ctx, attempts)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	header := []interface{}{"Student ID", "Student", "Attempt", "Score", "Total Marks", "Percentage",
		"Passed", "Percentile", "Time Spent (s)", "Tab Switches", "Submitted At"}
	if err := f.SetSheetRow(resultsSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, attempt := range attempts {
		var percentile interface{} = ""
		if attempt.Percentile != nil {
			percentile = *attempt.Percentile
		}
		submittedAt := ""
		if attempt.SubmittedAt != nil {
			submittedAt = attempt.SubmittedAt.UTC().Format(time.RFC3339)
		}
		row := []interface{}{
			attempt.StudentID,
			names[attempt.StudentID],
			attempt.AttemptNumber,
			attempt.Score,
			attempt.TotalMarks,
			attempt.Percentage,
			attempt.Passed,
			percentile,
			attempt.TimeSpent,
			attempt.TabSwitchCount,
			submittedAt,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to address row: %w", err)
		}
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to add summary sheet: %w", err)
	}
	summary := [][]interface{}{
		{"Assessment", assessment.Title},
		{"Kind", string(assessment.Kind)},
		{"Total Marks", assessment.TotalMarks},
		{"Submitted Attempts", stats.SubmittedAttempts},
		{"Average Score", stats.AverageScore},
		{"Highest Score", stats.HighestScore},
		{"Lowest Score", stats.LowestScore},
		{"Pass Rate (%)", stats.PassRate},
	}
	for i, row := range summary {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("Results exported", "assessment_id", assessmentID, "rows", len(attempts))
	return &ResultsExport{
		FileName:    fmt.Sprintf("assessment-%d-results.xlsx", assessmentID),
		ContentType: xlsxMIME,
		Content:     buf.Bytes(),
	}, nil
}

func (s *reportService) submittedAttempts(ctx context.Context, assessmentID uint) ([]*models.Attempt, error) {
	status := models.AttemptSubmitted
	var all []*models.Attempt
	for offset := 0; ; offset += exportPage {
		page, total, err := s.repo.Attempt().List(ctx, nil, repositories.AttemptFilters{
			AssessmentID: &assessmentID,
			Status:       &status,
			Limit:        exportPage,
			Offset:       offset,
			SortBy:       "id",
			SortOrder:    "asc",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list attempts: %w", err)
		}
		all = append(all, page...)
		if len(page) < exportPage || int64(len(all)) >= total {
			return all, nil
		}
	}
}

// studentNames resolves display names; unresolved students stay blank
func (s *reportService) studentNames(ctx context.Context, attempts []*models.Attempt) map[string]string {
	seen := make(map[string]bool)
	var ids []string
	for _, a := range attempts {
		if !seen[a.StudentID] {
			seen[a.StudentID] = true
			ids = append(ids, a.StudentID)
		}
	}

	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names
	}
	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to resolve student names", "error", err)
		return names
	}
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	return names
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
