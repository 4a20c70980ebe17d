package mapping

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayodeji-martins/gradeflow/internal/common"
	"github.com/ayodeji-martins/gradeflow/internal/entity"
	"github.com/ayodeji-martins/gradeflow/internal/parser"
	"github.com/ayodeji-martins/gradeflow/internal/repository"
)

// Config holds mapping thresholds.
type Config struct {
	// ReviewThreshold flags mappings whose confidence falls below it.
	ReviewThreshold float32
	// SimilarityFloor is the minimum text-similarity for a non-numbered match.
	SimilarityFloor float64
}

func DefaultConfig() Config {
	return Config{ReviewThreshold: 0.5, SimilarityFloor: 0.3}
}

// Engine pairs one submission's answers to one guide's questions. Every
// lookup is keyed by submission id; there is no guide-wide mode.
type Engine struct {
	cfg    Config
	parser *parser.Parser
	repo   repository.MappingRepository
	logger *slog.Logger
}

func NewEngine(cfg Config, p *parser.Parser, repo repository.MappingRepository, logger *slog.Logger) *Engine {
	if cfg.ReviewThreshold <= 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, parser: p, repo: repo, logger: logger}
}

// Map aligns the submission's answers to the guide's questions. Prior
// mappings for this exact submission are reused; unanswered questions yield a
// zero-confidence empty mapping, which is not an error. A missing guide or
// empty submission text is a hard error.
func (e *Engine) Map(ctx context.Context, guide *entity.GuideSchema, submissionID uuid.UUID, answerText string) ([]entity.Mapping, error) {
	if guide == nil || len(guide.Questions) == 0 {
		return nil, common.NewAppError("MAP_NO_GUIDE", "no guide to map against", common.ErrGuideNotFound)
	}
	if strings.TrimSpace(answerText) == "" {
		return nil, common.NewAppError("MAP_NO_TEXT", "no submission text", common.ErrInvalidInput)
	}

	if existing, err := e.repo.FindBySubmission(ctx, submissionID, guide.ID); err != nil {
		e.logger.Warn("mapping.lookup_failed", "submission_id", submissionID, "error", err)
	} else if len(existing) > 0 {
		e.logger.Debug("mapping.reused", "submission_id", submissionID, "count", len(existing))
		return existing, nil
	}

	set, err := e.parser.ParseAnswers(ctx, answerText, submissionID)
	if err != nil {
		return nil, err
	}

	mappings := e.align(guide, submissionID, set)

	if err := e.repo.SaveForSubmission(ctx, submissionID, mappings); err != nil {
		e.logger.Warn("mapping.save_failed", "submission_id", submissionID, "error", err)
	}
	return mappings, nil
}

// align matches answers to questions, by explicit numbering first and text
// similarity second. Each answer is claimed at most once.
func (e *Engine) align(guide *entity.GuideSchema, submissionID uuid.UUID, set *entity.SubmissionAnswerSet) []entity.Mapping {
	questions := guide.FlatQuestions()
	claimed := make([]bool, len(set.Answers))

	byRef := make(map[string]int, len(set.Answers))
	for i, a := range set.Answers {
		ref := normalizeRef(a.QuestionRef)
		if ref == "" {
			continue
		}
		if _, dup := byRef[ref]; !dup {
			byRef[ref] = i
		}
	}

	now := time.Now().UTC()
	mappings := make([]entity.Mapping, 0, len(questions))
	for _, q := range questions {
		m := entity.Mapping{
			ID:           uuid.New(),
			SubmissionID: submissionID,
			GuideID:      guide.ID,
			QuestionID:   q.ID,
			CreatedAt:    now,
		}

		if i, ok := byRef[normalizeRef(q.Number)]; ok && !claimed[i] {
			claimed[i] = true
			m.AnswerText = set.Answers[i].Text
			m.Confidence = 0.9 * set.Confidence
		} else if i, sim := e.bestSimilarity(q, set.Answers, claimed); i >= 0 {
			claimed[i] = true
			m.AnswerText = set.Answers[i].Text
			m.Confidence = float32(sim) * set.Confidence
		}
		// otherwise: unanswered, zero-confidence empty mapping

		if m.AnswerText != "" && m.Confidence < e.cfg.ReviewThreshold {
			m.NeedsReview = true
		}
		mappings = append(mappings, m)
	}
	return mappings
}

// bestSimilarity finds the unclaimed answer most similar to the question
// text, or -1 when nothing clears the floor.
func (e *Engine) bestSimilarity(q entity.Question, answers []entity.Answer, claimed []bool) (int, float64) {
	best, bestSim := -1, e.cfg.SimilarityFloor
	for i, a := range answers {
		if claimed[i] || strings.TrimSpace(a.Text) == "" {
			continue
		}
		sim := headingSimilarity(q.Text, a.Text)
		if sim > bestSim {
			best, bestSim = i, sim
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, bestSim
}

func normalizeRef(ref string) string {
	ref = strings.ToLower(strings.TrimSpace(ref))
	ref = strings.TrimPrefix(ref, "q")
	ref = strings.TrimSuffix(ref, ".")
	ref = strings.TrimSuffix(ref, ")")
	return ref
}
