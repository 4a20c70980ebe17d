package parser

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ayodeji-martins/gradeflow/constants"
)

func TestFallbackParseGuideNumberedQuestions(t *testing.T) {
	text := "Q1. Define photosynthesis (10 marks)\n" +
		"Q2) Explain why the sky appears blue (5 marks)\n"

	g := FallbackParseGuide(text)

	if len(g.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(g.Questions))
	}
	if g.TotalMarks != 15 {
		t.Fatalf("total marks = %v, want 15", g.TotalMarks)
	}
	if g.Metadata.ExtractionMethod != constants.MethodFallback {
		t.Fatalf("method = %q, want fallback", g.Metadata.ExtractionMethod)
	}
	if g.Metadata.ExtractionConfidence != 0.50 {
		t.Fatalf("confidence = %v, want 0.50", g.Metadata.ExtractionConfidence)
	}

	q1 := g.Questions[0]
	if q1.Number != "1" || q1.MaxScore != 10 {
		t.Fatalf("q1 = %+v", q1)
	}
	if strings.Contains(q1.Text, "marks") {
		t.Fatalf("marks annotation not stripped: %q", q1.Text)
	}
	if g.Questions[1].MaxScore != 5 {
		t.Fatalf("q2 max = %v, want 5", g.Questions[1].MaxScore)
	}
}

func TestFallbackParseGuideMarksVariants(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"Question 1: Foo (10 marks)", 10},
		{"Question 1: Foo [2.5 points]", 2.5},
		{"Question 1: Foo (3 pts)", 3},
		{"Question 1: Foo (1 mark)", 1},
	}
	for _, tt := range tests {
		g := FallbackParseGuide(tt.text)
		if len(g.Questions) != 1 {
			t.Fatalf("%q: questions = %d", tt.text, len(g.Questions))
		}
		if g.Questions[0].MaxScore != tt.want {
			t.Errorf("%q: max = %v, want %v", tt.text, g.Questions[0].MaxScore, tt.want)
		}
	}
}

func TestFallbackParseGuideNoNumbering(t *testing.T) {
	g := FallbackParseGuide("Describe the water cycle in detail.")
	if len(g.Questions) != 1 {
		t.Fatalf("questions = %d, want 1 whole-text question", len(g.Questions))
	}
	if g.Questions[0].MaxScore != 1 {
		t.Fatalf("default max = %v, want 1", g.Questions[0].MaxScore)
	}
	if len(g.Metadata.ProcessingNotes) == 0 {
		t.Fatal("expected a processing note about missing numbering")
	}
}

func TestFallbackParseGuideMissingMarksNote(t *testing.T) {
	g := FallbackParseGuide("Q1. Define osmosis\nQ2. Explain diffusion (4 marks)")
	if g.Questions[0].MaxScore != 1 {
		t.Fatalf("unmarked question max = %v, want default 1", g.Questions[0].MaxScore)
	}
	found := false
	for _, n := range g.Metadata.ProcessingNotes {
		if strings.Contains(n, "no marks pattern") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no note about missing marks: %v", g.Metadata.ProcessingNotes)
	}
}

func TestFallbackParseAnswers(t *testing.T) {
	id := uuid.New()
	text := "Answer 1: The capital of France is Paris.\n" +
		"Answer 2) Rain forms when water vapor condenses.\n"

	set := FallbackParseAnswers(text, id)

	if set.SubmissionID != id {
		t.Fatalf("submission id = %v, want %v", set.SubmissionID, id)
	}
	if set.Method != constants.MethodFallback {
		t.Fatalf("method = %q, want fallback", set.Method)
	}
	if len(set.Answers) != 2 {
		t.Fatalf("answers = %d, want 2: %+v", len(set.Answers), set.Answers)
	}
	if set.Answers[0].QuestionRef != "1" || set.Answers[1].QuestionRef != "2" {
		t.Fatalf("refs = %q, %q", set.Answers[0].QuestionRef, set.Answers[1].QuestionRef)
	}
	if !strings.Contains(set.Answers[0].Text, "Paris") {
		t.Fatalf("answer 1 text = %q", set.Answers[0].Text)
	}
}

func TestFallbackParseAnswersUnstructured(t *testing.T) {
	set := FallbackParseAnswers("just one big blob of prose with no structure", uuid.New())
	if len(set.Answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(set.Answers))
	}
	if set.Answers[0].QuestionRef != "" {
		t.Fatalf("ref = %q, want empty", set.Answers[0].QuestionRef)
	}
}
