package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/ayodeji-martins/gradeflow/internal/entity"
	"github.com/ayodeji-martins/gradeflow/internal/repository"
)

// Service is a tiny façade over repositories that produces XLSX bytes for exports.
type Service struct {
	guides  repository.GuideRepository
	results repository.ResultRepository
	logger  *slog.Logger
}

func NewService(guides repository.GuideRepository, results repository.ResultRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{guides: guides, results: results, logger: logger}
}

// ExportResultXLSX returns an XLSX workbook (as bytes) with one row per
// question for a single submission's grading result, plus a summary row.
func (s *Service) ExportResultXLSX(ctx context.Context, submissionID uuid.UUID) ([]byte, error) {
	start := time.Now()

	result, err := s.results.FindBySubmission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("query result: %w", err)
	}

	guide, err := s.guides.FindByID(ctx, result.GuideID)
	if err != nil {
		return nil, fmt.Errorf("query guide: %w", err)
	}
	numbers := questionNumbers(guide)

	f := excelize.NewFile()
	const sheet = "Grades"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		_, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Question",
		"Points Earned",
		"Max Score",
		"Feedback",
		"Confidence",
		"Status",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, qs := range result.Scores {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		number := numbers[qs.QuestionID]
		if number == "" {
			number = qs.QuestionID
		}
		write(1, number)
		write(2, qs.PointsEarned)
		write(3, qs.MaxScore)
		write(4, truncate(qs.Feedback, 140))
		write(5, fmt.Sprintf("%.2f", qs.Confidence))
		if qs.Ungraded {
			write(6, "ungraded")
		} else {
			write(6, "graded")
		}
		row++
	}

	// Summary row after a blank line
	row++
	writeSummary := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
	writeSummary(1, "TOTAL")
	writeSummary(2, result.PointsEarned)
	writeSummary(3, result.MaxScore)
	writeSummary(4, fmt.Sprintf("%.1f%% (%s)", result.Percentage, result.LetterGrade))

	_ = f.SetColWidth(sheet, "A", "A", 12) // question
	_ = f.SetColWidth(sheet, "B", "C", 14) // scores
	_ = f.SetColWidth(sheet, "D", "D", 60) // feedback
	_ = f.SetColWidth(sheet, "E", "F", 12)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"submission_id", submissionID.String(),
		"rows", len(result.Scores),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func questionNumbers(guide *entity.GuideSchema) map[string]string {
	out := make(map[string]string)
	for _, q := range guide.FlatQuestions() {
		out[q.ID] = q.Number
	}
	return out
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
