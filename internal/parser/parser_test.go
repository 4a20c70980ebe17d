package parser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ayodeji-martins/gradeflow/constants"
	"github.com/ayodeji-martins/gradeflow/internal/common"
	"github.com/ayodeji-martins/gradeflow/internal/coordinator"
	"github.com/ayodeji-martins/gradeflow/internal/llm"
	"github.com/ayodeji-martins/gradeflow/internal/recovery"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCoordinator() *coordinator.Coordinator {
	return coordinator.New(coordinator.Config{
		DefaultTimeout: 5 * time.Second,
		MinTimeout:     time.Second,
		MaxTimeout:     30 * time.Second,
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
	}, testLogger())
}

// scriptedCompleter returns canned responses (or errors) in order, then
// repeats the last one.
type scriptedCompleter struct {
	responses []string
	err       error
	calls     int
}

func (c *scriptedCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	i := c.calls - 1
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return c.responses[i], nil
}

func newTestParser(c llm.Completer) *Parser {
	return New(Config{MaxParseRetries: 2}, c, testCoordinator(), recovery.NewService(testLogger()), testLogger())
}

const validGuideJSON = `{
	"questions": [
		{"id": "q1", "number": "1", "text": "Define osmosis", "max_score": 10},
		{"id": "q2", "number": "2", "text": "Explain diffusion", "max_score": 5}
	],
	"total_marks": 15,
	"metadata": {"extraction_confidence": 0.9}
}`

func TestParseGuideEmptyTextIsTerminal(t *testing.T) {
	p := newTestParser(&scriptedCompleter{responses: []string{validGuideJSON}})
	_, err := p.ParseGuide(context.Background(), "   ")
	if err == nil {
		t.Fatal("expected error for empty text")
	}
	if !errors.Is(err, common.ErrNoReadableText) {
		t.Fatalf("error = %v, want ErrNoReadableText", err)
	}
}

func TestParseGuideHappyPath(t *testing.T) {
	c := &scriptedCompleter{responses: []string{validGuideJSON}}
	p := newTestParser(c)

	g, err := p.ParseGuide(context.Background(), "Q1 Define osmosis (10 marks)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Metadata.ExtractionMethod != constants.MethodLLMPowered {
		t.Fatalf("method = %q, want llm_powered", g.Metadata.ExtractionMethod)
	}
	if len(g.Questions) != 2 || g.TotalMarks != 15 {
		t.Fatalf("guide = %d questions, total %v", len(g.Questions), g.TotalMarks)
	}
	if c.calls != 1 {
		t.Fatalf("completer calls = %d, want 1", c.calls)
	}
}

func TestParseGuideReAsksAfterMalformedJSON(t *testing.T) {
	c := &scriptedCompleter{responses: []string{"this is not json", validGuideJSON}}
	p := newTestParser(c)

	g, err := p.ParseGuide(context.Background(), "guide text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.calls != 2 {
		t.Fatalf("completer calls = %d, want 2 (one re-ask)", c.calls)
	}
	if g.Metadata.ExtractionMethod != constants.MethodLLMPowered {
		t.Fatalf("method = %q, want llm_powered", g.Metadata.ExtractionMethod)
	}
}

func TestParseGuideReAskCapThenFallback(t *testing.T) {
	c := &scriptedCompleter{responses: []string{"still not json"}}
	p := newTestParser(c)

	g, err := p.ParseGuide(context.Background(), "Q1. Define osmosis (10 marks)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// MaxParseRetries=2 -> initial ask plus two re-asks
	if c.calls != 3 {
		t.Fatalf("completer calls = %d, want 3", c.calls)
	}
	if g.Metadata.ExtractionMethod != constants.MethodFallback {
		t.Fatalf("method = %q, want fallback after exhausted re-asks", g.Metadata.ExtractionMethod)
	}
}

func TestParseGuideFallsBackWhenModelUnavailable(t *testing.T) {
	c := &scriptedCompleter{err: common.NewAppError("LLM_AUTH", "denied", common.ErrUnauthorized)}
	p := newTestParser(c)

	text := "Q1. Define photosynthesis (10 marks)\nQ2. Explain transpiration (5 marks)"
	g, err := p.ParseGuide(context.Background(), text)
	if err != nil {
		t.Fatalf("fallback should not error: %v", err)
	}
	if g.Metadata.ExtractionMethod != constants.MethodFallback {
		t.Fatalf("method = %q, want fallback", g.Metadata.ExtractionMethod)
	}
	if len(g.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(g.Questions))
	}
	if g.TotalMarks != 15 {
		t.Fatalf("total marks = %v, want 15", g.TotalMarks)
	}
}

func TestParseGuideStripsCodeFences(t *testing.T) {
	c := &scriptedCompleter{responses: []string{"```json\n" + validGuideJSON + "\n```"}}
	p := newTestParser(c)
	g, err := p.ParseGuide(context.Background(), "guide text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(g.Questions))
	}
}

func TestParseGuideReconcilesTotalsWhenTrusted(t *testing.T) {
	// declared total 20 disagrees with question sum 15; confidence 0.9 >= trust
	mismatched := `{
		"questions": [
			{"id": "q1", "number": "1", "text": "A", "max_score": 10},
			{"id": "q2", "number": "2", "text": "B", "max_score": 5}
		],
		"total_marks": 20,
		"metadata": {"extraction_confidence": 0.9}
	}`
	p := newTestParser(&scriptedCompleter{responses: []string{mismatched}})

	g, err := p.ParseGuide(context.Background(), "guide text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.TotalMarks != 15 {
		t.Fatalf("total marks = %v, want reconciled 15", g.TotalMarks)
	}
	if len(g.Metadata.ProcessingNotes) == 0 {
		t.Fatal("expected a mismatch note")
	}
}

func TestParseGuideKeepsDeclaredTotalWhenUntrusted(t *testing.T) {
	mismatched := `{
		"questions": [{"id": "q1", "number": "1", "text": "A", "max_score": 10}],
		"total_marks": 20,
		"metadata": {"extraction_confidence": 0.6}
	}`
	p := newTestParser(&scriptedCompleter{responses: []string{mismatched}})

	g, err := p.ParseGuide(context.Background(), "guide text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.TotalMarks != 20 {
		t.Fatalf("total marks = %v, want declared 20 kept below trust threshold", g.TotalMarks)
	}
	if len(g.Metadata.ProcessingNotes) == 0 {
		t.Fatal("expected a mismatch note")
	}
}

func TestParseAnswersHappyPath(t *testing.T) {
	resp := `{
		"answers": [
			{"question_ref": "1", "text": "Paris is the capital."},
			{"question_ref": "2", "text": "Because of Rayleigh scattering."}
		],
		"confidence": 0.92
	}`
	p := newTestParser(&scriptedCompleter{responses: []string{resp}})

	id := uuid.New()
	set, err := p.ParseAnswers(context.Background(), "submission text", id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.SubmissionID != id {
		t.Fatalf("submission id = %v, want %v", set.SubmissionID, id)
	}
	if set.Method != constants.MethodLLMPowered {
		t.Fatalf("method = %q", set.Method)
	}
	if len(set.Answers) != 2 {
		t.Fatalf("answers = %d, want 2", len(set.Answers))
	}
	if set.Confidence != 0.92 {
		t.Fatalf("confidence = %v, want 0.92", set.Confidence)
	}
}

func TestParseAnswersFallsBackWhenModelUnavailable(t *testing.T) {
	p := newTestParser(&scriptedCompleter{err: errors.New("connection refused")})
	id := uuid.New()
	set, err := p.ParseAnswers(context.Background(), "Answer 1: Paris.", id)
	if err != nil {
		t.Fatalf("fallback should not error: %v", err)
	}
	if set.Method != constants.MethodFallback {
		t.Fatalf("method = %q, want fallback", set.Method)
	}
	if set.Confidence != 0.50 {
		t.Fatalf("confidence = %v, want 0.50", set.Confidence)
	}
}

func TestParseAnswersEmptyTextIsTerminal(t *testing.T) {
	p := newTestParser(&scriptedCompleter{responses: []string{"{}"}})
	_, err := p.ParseAnswers(context.Background(), "", uuid.New())
	if !errors.Is(err, common.ErrNoReadableText) {
		t.Fatalf("error = %v, want ErrNoReadableText", err)
	}
}
