package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
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

// Coordinator keys for the generative-AI endpoint.
const (
	ServiceName    = "llm_api"
	OpParseGuide   = "parse_guide"
	OpParseAnswers = "parse_answers"
)

// Config holds parser behavior knobs.
type Config struct {
	Temperature     float32
	MaxTokens       int
	MaxParseRetries int // re-asks after malformed JSON, on top of transport retries
}

// Parser converts extracted text into structured guide schemas or answer
// sets. The AI path is primary; the deterministic fallback always recovers a
// usable (lower-confidence) result unless the input itself is empty.
type Parser struct {
	cfg       Config
	completer llm.Completer
	coord     *coordinator.Coordinator
	recov     *recovery.Service
	logger    *slog.Logger
}

func New(cfg Config, completer llm.Completer, coord *coordinator.Coordinator, recov *recovery.Service, logger *slog.Logger) *Parser {
	if cfg.MaxParseRetries <= 0 {
		cfg.MaxParseRetries = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{cfg: cfg, completer: completer, coord: coord, recov: recov, logger: logger}
}

// guideResponse mirrors the JSON contract exchanged with the AI endpoint.
type guideResponse struct {
	Questions  []guideQuestion `json:"questions"`
	TotalMarks float64         `json:"total_marks"`
	Metadata   struct {
		NumQuestions         int      `json:"num_questions"`
		NumSubQuestions      int      `json:"num_sub_questions"`
		ExtractionConfidence float32  `json:"extraction_confidence"`
		ExtractionMethod     string   `json:"extraction_method"`
		ProcessingNotes      []string `json:"processing_notes"`
	} `json:"metadata"`
}

type guideQuestion struct {
	ID           string          `json:"id"`
	Number       string          `json:"number"`
	Text         string          `json:"text"`
	MaxScore     float64         `json:"max_score"`
	SubQuestions []guideQuestion `json:"sub_questions"`
}

// ParseGuide turns guide text into a GuideSchema. Total failure (no input
// text) is the only terminal error; everything else degrades to the fallback.
func (p *Parser) ParseGuide(ctx context.Context, text string) (*entity.GuideSchema, error) {
	if strings.TrimSpace(text) == "" {
		return nil, common.NewAppError("PARSE_EMPTY", "no text to parse", common.ErrNoReadableText)
	}

	guide, err := p.llmGuide(ctx, text)
	if err != nil {
		decision := p.recov.Handle(ctx, err, "parser.parse_guide")
		p.logger.Warn("parser.guide.llm_failed",
			"action", decision.Action, "correlation_id", decision.CorrelationID, "error", err)
		guide = FallbackParseGuide(text)
	}

	p.reconcileTotals(guide)
	return guide, nil
}

// ParseAnswers turns submission text into a SubmissionAnswerSet for exactly
// one submission.
func (p *Parser) ParseAnswers(ctx context.Context, text string, submissionID uuid.UUID) (*entity.SubmissionAnswerSet, error) {
	if strings.TrimSpace(text) == "" {
		return nil, common.NewAppError("PARSE_EMPTY", "no text to parse", common.ErrNoReadableText)
	}

	set, err := p.llmAnswers(ctx, text, submissionID)
	if err != nil {
		decision := p.recov.Handle(ctx, err, "parser.parse_answers")
		p.logger.Warn("parser.answers.llm_failed",
			"action", decision.Action, "correlation_id", decision.CorrelationID, "error", err)
		set = FallbackParseAnswers(text, submissionID)
	}
	return set, nil
}

func (p *Parser) llmGuide(ctx context.Context, text string) (*entity.GuideSchema, error) {
	schema := BuildGuideJSONSchema()
	system := BuildGuideSystemPrompt()
	user := BuildUserPrompt("Marking guide", text)

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxParseRetries; attempt++ {
		if attempt > 0 {
			user += clarification
		}

		var content string
		err := p.coord.Do(ctx, ServiceName, OpParseGuide, p.recov.Retryable, func(ctx context.Context) error {
			var cerr error
			content, cerr = p.completer.Complete(ctx, llm.CompletionRequest{
				SystemPrompt: system,
				UserPrompt:   user,
				Temperature:  p.cfg.Temperature,
				MaxTokens:    p.cfg.MaxTokens,
			})
			return cerr
		})
		if err != nil {
			return nil, err // transport-level: no point re-asking
		}

		raw := []byte(StripJSONFences(content))
		if err := ValidateJSONAgainstSchema(schema, raw); err != nil {
			lastErr = err
			p.logger.Warn("parser.guide.malformed_response", "attempt", attempt+1, "error", err)
			continue
		}

		var resp guideResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			lastErr = err
			continue
		}
		return p.buildGuide(resp), nil
	}
	return nil, fmt.Errorf("guide response never matched schema: %w", lastErr)
}

func (p *Parser) llmAnswers(ctx context.Context, text string, submissionID uuid.UUID) (*entity.SubmissionAnswerSet, error) {
	schema := BuildAnswerJSONSchema()
	system := BuildAnswerSystemPrompt()
	user := BuildUserPrompt("Submission", text)

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxParseRetries; attempt++ {
		if attempt > 0 {
			user += clarification
		}

		var content string
		err := p.coord.Do(ctx, ServiceName, OpParseAnswers, p.recov.Retryable, func(ctx context.Context) error {
			var cerr error
			content, cerr = p.completer.Complete(ctx, llm.CompletionRequest{
				SystemPrompt: system,
				UserPrompt:   user,
				Temperature:  p.cfg.Temperature,
				MaxTokens:    p.cfg.MaxTokens,
			})
			return cerr
		})
		if err != nil {
			return nil, err
		}

		raw := []byte(StripJSONFences(content))
		if err := ValidateJSONAgainstSchema(schema, raw); err != nil {
			lastErr = err
			p.logger.Warn("parser.answers.malformed_response", "attempt", attempt+1, "error", err)
			continue
		}

		var resp struct {
			Answers []struct {
				QuestionRef string `json:"question_ref"`
				Text        string `json:"text"`
			} `json:"answers"`
			Confidence float32 `json:"confidence"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			lastErr = err
			continue
		}

		answers := make([]entity.Answer, 0, len(resp.Answers))
		for _, a := range resp.Answers {
			if strings.TrimSpace(a.Text) == "" {
				continue
			}
			answers = append(answers, entity.Answer{
				QuestionRef: strings.ToLower(strings.TrimSpace(a.QuestionRef)),
				Text:        a.Text,
			})
		}
		conf := resp.Confidence
		if conf <= 0 || conf > 1 {
			conf = 0.85
		}
		return &entity.SubmissionAnswerSet{
			SubmissionID: submissionID,
			Answers:      answers,
			Method:       constants.MethodLLMPowered,
			Confidence:   conf,
			CreatedAt:    time.Now().UTC(),
		}, nil
	}
	return nil, fmt.Errorf("answer response never matched schema: %w", lastErr)
}

// buildGuide converts a validated response, dropping malformed questions with
// a note rather than failing the whole parse.
func (p *Parser) buildGuide(resp guideResponse) *entity.GuideSchema {
	var notes []string
	var subCount int

	var convert func(qs []guideQuestion) []entity.Question
	convert = func(qs []guideQuestion) []entity.Question {
		out := make([]entity.Question, 0, len(qs))
		for _, q := range qs {
			if q.ID == "" || strings.TrimSpace(q.Text) == "" || q.MaxScore < 0 {
				note := fmt.Sprintf("dropped malformed question (number=%q)", q.Number)
				notes = append(notes, note)
				p.logger.Warn("parser.guide.question_dropped", "number", q.Number)
				continue
			}
			eq := entity.Question{
				ID:       q.ID,
				Number:   q.Number,
				Text:     q.Text,
				MaxScore: q.MaxScore,
			}
			if len(q.SubQuestions) > 0 {
				eq.SubQuestions = convert(q.SubQuestions)
				subCount += len(eq.SubQuestions)
			}
			out = append(out, eq)
		}
		return out
	}

	questions := convert(resp.Questions)
	conf := resp.Metadata.ExtractionConfidence
	if conf <= 0 || conf > 1 {
		conf = 0.85
	}
	notes = append(notes, resp.Metadata.ProcessingNotes...)

	return &entity.GuideSchema{
		ID:         uuid.New(),
		Questions:  questions,
		TotalMarks: resp.TotalMarks,
		Metadata: entity.GuideMetadata{
			NumQuestions:         len(questions),
			NumSubQuestions:      subCount,
			ExtractionConfidence: conf,
			ExtractionMethod:     constants.MethodLLMPowered,
			ProcessingNotes:      notes,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// reconcileTotals enforces the trust rule: above the trust threshold the
// declared total must equal the sum of max scores; below it, a mismatch is
// recorded in metadata instead of silently corrected.
func (p *Parser) reconcileTotals(g *entity.GuideSchema) {
	sum := g.SumMaxScores()
	if g.TotalMarks == 0 {
		g.TotalMarks = sum
		return
	}
	if sum == g.TotalMarks {
		return
	}
	note := fmt.Sprintf("total_marks %.2f does not equal question sum %.2f", g.TotalMarks, sum)
	g.Metadata.ProcessingNotes = append(g.Metadata.ProcessingNotes, note)
	if g.Metadata.ExtractionConfidence >= constants.TrustThreshold {
		g.TotalMarks = sum
	}
}
