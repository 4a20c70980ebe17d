package mapping

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ayodeji-martins/gradeflow/internal/common"
	"github.com/ayodeji-martins/gradeflow/internal/coordinator"
	"github.com/ayodeji-martins/gradeflow/internal/entity"
	"github.com/ayodeji-martins/gradeflow/internal/llm"
	"github.com/ayodeji-martins/gradeflow/internal/parser"
	"github.com/ayodeji-martins/gradeflow/internal/recovery"
	"github.com/ayodeji-martins/gradeflow/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// cannedCompleter always returns the same body.
type cannedCompleter struct {
	body string
	err  error
}

func (c *cannedCompleter) Complete(context.Context, llm.CompletionRequest) (string, error) {
	return c.body, c.err
}

func newTestEngine(completer llm.Completer, repo repository.MappingRepository) *Engine {
	coord := coordinator.New(coordinator.Config{
		DefaultTimeout: 5 * time.Second,
		MinTimeout:     time.Second,
		MaxTimeout:     30 * time.Second,
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
	}, testLogger())
	p := parser.New(parser.Config{}, completer, coord, recovery.NewService(testLogger()), testLogger())
	return NewEngine(DefaultConfig(), p, repo, testLogger())
}

func testGuide() *entity.GuideSchema {
	return &entity.GuideSchema{
		ID: uuid.New(),
		Questions: []entity.Question{
			{ID: "q1", Number: "1", Text: "What is the capital of France?", MaxScore: 10},
			{ID: "q2", Number: "2", Text: "Why does it rain?", MaxScore: 5},
		},
		TotalMarks: 15,
	}
}

const answersJSON = `{
	"answers": [
		{"question_ref": "1", "text": "The capital of France is Paris."},
		{"question_ref": "2", "text": "Rain forms when water vapor condenses into droplets."}
	],
	"confidence": 0.9
}`

func TestMapAlignsByQuestionNumber(t *testing.T) {
	repo := repository.NewMemory()
	e := newTestEngine(&cannedCompleter{body: answersJSON}, repo)
	guide := testGuide()
	subID := uuid.New()

	mappings, err := e.Map(context.Background(), guide, subID, "submission text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mappings) != 2 {
		t.Fatalf("mappings = %d, want one per question", len(mappings))
	}
	for i, m := range mappings {
		if m.SubmissionID != subID {
			t.Fatalf("mapping %d submission = %v, want %v", i, m.SubmissionID, subID)
		}
		if m.GuideID != guide.ID {
			t.Fatalf("mapping %d guide = %v, want %v", i, m.GuideID, guide.ID)
		}
		if m.AnswerText == "" {
			t.Fatalf("mapping %d has no answer text", i)
		}
		if m.NeedsReview {
			t.Fatalf("confident numbered match flagged for review: %+v", m)
		}
	}
	if mappings[0].QuestionID != "q1" || mappings[1].QuestionID != "q2" {
		t.Fatalf("question order wrong: %q, %q", mappings[0].QuestionID, mappings[1].QuestionID)
	}
}

func TestMapUnansweredQuestionYieldsEmptyMapping(t *testing.T) {
	partial := `{
		"answers": [{"question_ref": "1", "text": "The capital of France is Paris."}],
		"confidence": 0.9
	}`
	repo := repository.NewMemory()
	e := newTestEngine(&cannedCompleter{body: partial}, repo)
	guide := testGuide()

	mappings, err := e.Map(context.Background(), guide, uuid.New(), "submission text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mappings) != 2 {
		t.Fatalf("mappings = %d, want 2", len(mappings))
	}
	q2 := mappings[1]
	if q2.AnswerText != "" || q2.Confidence != 0 {
		t.Fatalf("unanswered mapping = %+v, want empty zero-confidence", q2)
	}
}

func TestMapLowConfidenceIsFlaggedForReview(t *testing.T) {
	// fallback path: parse confidence 0.50 -> numbered match 0.9*0.50 = 0.45 < 0.5
	repo := repository.NewMemory()
	e := newTestEngine(&cannedCompleter{err: common.ErrRateLimited}, repo)
	guide := testGuide()

	mappings, err := e.Map(context.Background(), guide, uuid.New(),
		"Answer 1: The capital of France is Paris.\nAnswer 2: Because vapor condenses.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, m := range mappings {
		if m.AnswerText != "" && !m.NeedsReview {
			t.Fatalf("low-confidence mapping not flagged: %+v", m)
		}
	}
}

func TestMapSubmissionsNeverShareMappings(t *testing.T) {
	repo := repository.NewMemory()
	e := newTestEngine(&cannedCompleter{body: answersJSON}, repo)
	guide := testGuide()
	s1, s2 := uuid.New(), uuid.New()

	m1, err := e.Map(context.Background(), guide, s1, "first submission")
	if err != nil {
		t.Fatalf("map s1: %v", err)
	}
	m2, err := e.Map(context.Background(), guide, s2, "second submission")
	if err != nil {
		t.Fatalf("map s2: %v", err)
	}

	ids := make(map[uuid.UUID]bool)
	for _, m := range m1 {
		if m.SubmissionID != s1 {
			t.Fatalf("s1 mapping carries submission %v", m.SubmissionID)
		}
		ids[m.ID] = true
	}
	for _, m := range m2 {
		if m.SubmissionID != s2 {
			t.Fatalf("s2 mapping carries submission %v", m.SubmissionID)
		}
		if ids[m.ID] {
			t.Fatalf("mapping %v shared between submissions", m.ID)
		}
	}

	stored1, err := repo.FindBySubmission(context.Background(), s1, guide.ID)
	if err != nil {
		t.Fatalf("find s1: %v", err)
	}
	for _, m := range stored1 {
		if m.SubmissionID != s1 {
			t.Fatalf("repository leaked submission %v into s1's result", m.SubmissionID)
		}
	}
}

func TestMapReusesExistingMappings(t *testing.T) {
	repo := repository.NewMemory()
	e := newTestEngine(&cannedCompleter{body: answersJSON}, repo)
	guide := testGuide()
	subID := uuid.New()

	first, err := e.Map(context.Background(), guide, subID, "submission text")
	if err != nil {
		t.Fatalf("first map: %v", err)
	}
	second, err := e.Map(context.Background(), guide, subID, "submission text")
	if err != nil {
		t.Fatalf("second map: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("second run rebuilt mappings instead of reusing them")
		}
	}
}

func TestMapHardErrors(t *testing.T) {
	repo := repository.NewMemory()
	e := newTestEngine(&cannedCompleter{body: answersJSON}, repo)

	if _, err := e.Map(context.Background(), nil, uuid.New(), "text"); err == nil {
		t.Fatal("expected error for missing guide")
	}
	if _, err := e.Map(context.Background(), testGuide(), uuid.New(), "  "); err == nil {
		t.Fatal("expected error for empty submission text")
	}
}
