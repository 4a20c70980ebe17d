package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/ayodeji-martins/gradeflow/internal/entity"
	"github.com/ayodeji-martins/gradeflow/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExportResultXLSX(t *testing.T) {
	store := repository.NewMemory()
	guide := &entity.GuideSchema{
		ID: uuid.New(),
		Questions: []entity.Question{
			{ID: "q1", Number: "1", Text: "A", MaxScore: 10},
			{ID: "q2", Number: "2", Text: "B", MaxScore: 5},
		},
		TotalMarks: 15,
	}
	if err := store.Save(context.Background(), guide); err != nil {
		t.Fatalf("save guide: %v", err)
	}

	subID := uuid.New()
	result := &entity.GradingResult{
		ID:           uuid.New(),
		SubmissionID: subID,
		GuideID:      guide.ID,
		Scores: []entity.QuestionScore{
			{QuestionID: "q1", PointsEarned: 8, MaxScore: 10, Feedback: "good", Confidence: 0.9},
			{QuestionID: "q2", PointsEarned: 0, MaxScore: 5, Ungraded: true},
		},
		PointsEarned: 8,
		MaxScore:     15,
		Percentage:   53.3,
		LetterGrade:  "F",
		GradedAt:     time.Now().UTC(),
	}
	if err := store.Results().Save(context.Background(), result); err != nil {
		t.Fatalf("save result: %v", err)
	}

	svc := NewService(store, store.Results(), testLogger())
	data, err := svc.ExportResultXLSX(context.Background(), subID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty workbook")
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	got := func(cell string) string {
		v, err := f.GetCellValue("Grades", cell)
		if err != nil {
			t.Fatalf("read %s: %v", cell, err)
		}
		return v
	}
	if got("A1") != "Question" {
		t.Fatalf("A1 = %q, want header", got("A1"))
	}
	if got("A2") != "1" {
		t.Fatalf("A2 = %q, want question number 1", got("A2"))
	}
	if got("F3") != "ungraded" {
		t.Fatalf("F3 = %q, want ungraded", got("F3"))
	}
	if got("A5") != "TOTAL" {
		t.Fatalf("A5 = %q, want TOTAL", got("A5"))
	}
}

func TestExportResultMissingSubmission(t *testing.T) {
	store := repository.NewMemory()
	svc := NewService(store, store.Results(), testLogger())
	if _, err := svc.ExportResultXLSX(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for unknown submission")
	}
}
