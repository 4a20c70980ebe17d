package entity

import (
	"time"

	"github.com/google/uuid"
)

// Answer is one extracted answer, referenced by question number when known.
type Answer struct {
	QuestionRef string `json:"question_ref"`
	Text        string `json:"text"`
}

// SubmissionAnswerSet is the set of answers extracted from one submission.
type SubmissionAnswerSet struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	Answers      []Answer  `json:"answers"`
	Method       string    `json:"method"`
	Confidence   float32   `json:"confidence"`
	CreatedAt    time.Time `json:"created_at"`
}

// Mapping pairs one submission's answer to one guide question.
// SubmissionID is mandatory; a Mapping never references another submission.
type Mapping struct {
	ID           uuid.UUID `json:"id"`
	SubmissionID uuid.UUID `json:"submission_id"`
	GuideID      uuid.UUID `json:"guide_id"`
	QuestionID   string    `json:"question_id"`
	AnswerText   string    `json:"answer_text"`
	Confidence   float32   `json:"confidence"`
	NeedsReview  bool      `json:"needs_review"`
	CreatedAt    time.Time `json:"created_at"`
}
