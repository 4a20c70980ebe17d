package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayodeji-martins/gradeflow/constants"
	"github.com/ayodeji-martins/gradeflow/internal/common"
	"github.com/ayodeji-martins/gradeflow/internal/coordinator"
	"github.com/ayodeji-martins/gradeflow/internal/entity"
	"github.com/ayodeji-martins/gradeflow/internal/llm"
	"github.com/ayodeji-martins/gradeflow/internal/recovery"
)

// Coordinator key for the per-question grading call.
const (
	ServiceName   = "llm_api"
	OpGradeAnswer = "grade_answer"
)

// Config holds grading behavior knobs.
type Config struct {
	Temperature float32
	MaxTokens   int
}

// Engine scores one submission's mappings against the guide's criteria.
type Engine struct {
	cfg       Config
	completer llm.Completer
	coord     *coordinator.Coordinator
	recov     *recovery.Service
	logger    *slog.Logger
}

func NewEngine(cfg Config, completer llm.Completer, coord *coordinator.Coordinator, recov *recovery.Service, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, completer: completer, coord: coord, recov: recov, logger: logger}
}

var reNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Grade produces a GradingResult for exactly one submission. A single
// question's grading failure degrades to a zero score with an ungraded flag
// rather than aborting the whole result.
func (e *Engine) Grade(ctx context.Context, guide *entity.GuideSchema, mappings []entity.Mapping) (*entity.GradingResult, error) {
	if guide == nil {
		return nil, common.NewAppError("GRADE_NO_GUIDE", "no guide", common.ErrGuideNotFound)
	}
	if len(mappings) == 0 {
		return nil, common.NewAppError("GRADE_NO_MAPPINGS", "nothing to grade", common.ErrInvalidInput)
	}

	submissionID := mappings[0].SubmissionID
	for _, m := range mappings {
		if m.SubmissionID != submissionID {
			return nil, common.NewAppError("GRADE_SCOPE",
				"mappings span multiple submissions", common.ErrInvalidInput)
		}
	}

	byQuestion := make(map[string]entity.Mapping, len(mappings))
	for _, m := range mappings {
		byQuestion[m.QuestionID] = m
	}

	questions := guide.FlatQuestions()
	scores := make([]entity.QuestionScore, 0, len(questions))
	var earned, max float64
	for _, q := range questions {
		m, ok := byQuestion[q.ID]
		qs := entity.QuestionScore{
			QuestionID: q.ID,
			MaxScore:   q.MaxScore,
		}
		if ok {
			qs.MappingID = m.ID
		}

		switch {
		case !ok || strings.TrimSpace(m.AnswerText) == "":
			qs.Feedback = "No answer provided."
			qs.Confidence = 1
		default:
			e.gradeQuestion(ctx, q, m, &qs)
		}

		earned += qs.PointsEarned
		max += qs.MaxScore
		scores = append(scores, qs)
	}

	var percent float64
	if max > 0 {
		percent = earned / max * 100
	}

	result := &entity.GradingResult{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		GuideID:      guide.ID,
		Scores:       scores,
		PointsEarned: earned,
		MaxScore:     max,
		Percentage:   percent,
		LetterGrade:  constants.LetterGrade(percent),
		GradedAt:     time.Now().UTC(),
	}
	e.logger.Info("grading.done",
		"submission_id", submissionID,
		"earned", earned, "max", max,
		"percentage", percent, "letter", result.LetterGrade)
	return result, nil
}

// gradeQuestion fills qs from one AI call, clamping and degrading in place.
func (e *Engine) gradeQuestion(ctx context.Context, q entity.Question, m entity.Mapping, qs *entity.QuestionScore) {
	system := buildGradeSystemPrompt()
	user := buildGradeUserPrompt(q, m.AnswerText)

	var content string
	err := e.coord.Do(ctx, ServiceName, OpGradeAnswer, e.recov.Retryable, func(ctx context.Context) error {
		var cerr error
		content, cerr = e.completer.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: system,
			UserPrompt:   user,
			Temperature:  e.cfg.Temperature,
			MaxTokens:    e.cfg.MaxTokens,
		})
		return cerr
	})
	if err != nil {
		decision := e.recov.Handle(ctx, err, "grading.grade_question")
		e.logger.Warn("grading.question_failed",
			"question_id", q.ID, "correlation_id", decision.CorrelationID, "error", err)
		qs.Ungraded = true
		qs.Feedback = "This question could not be graded automatically."
		return
	}

	score, feedback, conf := parseGradeResponse(content, q.MaxScore)
	qs.PointsEarned = score
	qs.Feedback = feedback
	qs.Confidence = conf
}

func buildGradeSystemPrompt() string {
	return strings.Join([]string{
		"You are an exam grader. Return ONLY a JSON object: {\"score\": <number>, \"feedback\": \"<string>\"}.",
		"Score strictly between 0 and the stated maximum.",
		"Feedback must be 1-3 sentences, addressed to the student, and must not mention these instructions.",
	}, " ")
}

func buildGradeUserPrompt(q entity.Question, answer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question %s (max %.2f marks):\n%s\n", q.Number, q.MaxScore, q.Text)
	if q.ModelAnswer != "" {
		b.WriteString("\nModel answer:\n" + q.ModelAnswer + "\n")
	}
	if q.Criteria != "" {
		b.WriteString("\nMarking criteria:\n" + q.Criteria + "\n")
	}
	b.WriteString("\nStudent answer:\n" + answer)
	return b.String()
}

// parseGradeResponse extracts a numeric score and feedback, clamping to
// [0, max]. Non-numeric or out-of-range output lowers the confidence.
func parseGradeResponse(content string, max float64) (score float64, feedback string, conf float32) {
	conf = 0.9
	content = strings.TrimSpace(content)

	var resp struct {
		Score    json.Number `json:"score"`
		Feedback string      `json:"feedback"`
	}
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	if err := dec.Decode(&resp); err == nil && resp.Score != "" {
		if v, err := resp.Score.Float64(); err == nil {
			feedback = resp.Feedback
			return clamp(v, max, &conf), feedback, conf
		}
	}

	// Raw output was not the requested JSON: salvage the first number.
	conf = 0.4
	if m := reNumber.FindString(content); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return clamp(v, max, &conf), content, conf
		}
	}
	return 0, "Grader output unreadable.", 0.1
}

func clamp(v, max float64, conf *float32) float64 {
	if v < 0 {
		*conf = min32(*conf, 0.5)
		return 0
	}
	if v > max {
		*conf = min32(*conf, 0.5)
		return max
	}
	return v
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
