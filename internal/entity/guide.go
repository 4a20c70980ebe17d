package entity

import (
	"time"

	"github.com/google/uuid"
)

// Question is one guide question, optionally with nested sub-questions.
type Question struct {
	ID           string     `json:"id"`
	Number       string     `json:"number"`
	Text         string     `json:"text"`
	MaxScore     float64    `json:"max_score"`
	ModelAnswer  string     `json:"model_answer,omitempty"`
	Criteria     string     `json:"criteria,omitempty"`
	SubQuestions []Question `json:"sub_questions,omitempty"`
}

// GuideMetadata carries extraction diagnostics alongside the parsed guide.
type GuideMetadata struct {
	NumQuestions         int      `json:"num_questions"`
	NumSubQuestions      int      `json:"num_sub_questions"`
	ExtractionConfidence float32  `json:"extraction_confidence"`
	ExtractionMethod     string   `json:"extraction_method"`
	ProcessingNotes      []string `json:"processing_notes,omitempty"`
}

// GuideSchema is the structured marking guide parsed from extracted text.
type GuideSchema struct {
	ID         uuid.UUID     `json:"id"`
	Questions  []Question    `json:"questions"`
	TotalMarks float64       `json:"total_marks"`
	Metadata   GuideMetadata `json:"metadata"`
	CreatedAt  time.Time     `json:"created_at"`
}

// SumMaxScores returns the sum of top-level question max scores. Questions
// with sub-questions contribute the sum of their leaves, not their own score.
func (g *GuideSchema) SumMaxScores() float64 {
	var sum float64
	for _, q := range g.Questions {
		sum += q.effectiveMax()
	}
	return sum
}

func (q Question) effectiveMax() float64 {
	if len(q.SubQuestions) == 0 {
		return q.MaxScore
	}
	var sum float64
	for _, sq := range q.SubQuestions {
		sum += sq.effectiveMax()
	}
	return sum
}

// FlatQuestions walks the guide depth-first and returns every leaf question.
func (g *GuideSchema) FlatQuestions() []Question {
	var out []Question
	var walk func(qs []Question)
	walk = func(qs []Question) {
		for _, q := range qs {
			if len(q.SubQuestions) == 0 {
				out = append(out, q)
				continue
			}
			walk(q.SubQuestions)
		}
	}
	walk(g.Questions)
	return out
}
