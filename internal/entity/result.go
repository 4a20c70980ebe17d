package entity

import (
	"time"

	"github.com/google/uuid"
)

// QuestionScore is one question's grading outcome.
type QuestionScore struct {
	QuestionID   string    `json:"question_id"`
	MappingID    uuid.UUID `json:"mapping_id"`
	PointsEarned float64   `json:"points_earned"`
	MaxScore     float64   `json:"max_score"`
	Feedback     string    `json:"feedback,omitempty"`
	Confidence   float32   `json:"confidence"`
	Ungraded     bool      `json:"ungraded,omitempty"`
}

// GradingResult is the per-submission aggregate produced by the grading engine.
type GradingResult struct {
	ID           uuid.UUID       `json:"id"`
	SubmissionID uuid.UUID       `json:"submission_id"`
	GuideID      uuid.UUID       `json:"guide_id"`
	Scores       []QuestionScore `json:"scores"`
	PointsEarned float64         `json:"points_earned"`
	MaxScore     float64         `json:"max_score"`
	Percentage   float64         `json:"percentage"`
	LetterGrade  string          `json:"letter_grade"`
	GradedAt     time.Time       `json:"graded_at"`
}
