package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ayodeji-martins/gradeflow/internal/common"
	"github.com/ayodeji-martins/gradeflow/internal/entity"
	"github.com/ayodeji-martins/gradeflow/internal/extract"
	"github.com/ayodeji-martins/gradeflow/internal/grading"
	"github.com/ayodeji-martins/gradeflow/internal/mapping"
	"github.com/ayodeji-martins/gradeflow/internal/metrics"
	"github.com/ayodeji-martins/gradeflow/internal/parser"
	"github.com/ayodeji-martins/gradeflow/internal/recovery"
	"github.com/ayodeji-martins/gradeflow/internal/repository"
)

// Stage names used in logs and metrics.
const (
	StageExtract = "extract"
	StageParse   = "parse"
	StageMap     = "map"
	StageGrade   = "grade"
	StagePersist = "persist"
)

// Processor drives a document through extract, parse, map, and grade.
// Each stage boundary checks ctx so a cancelled job stops between stages,
// not mid-call.
type Processor struct {
	chain   *extract.Chain
	parser  *parser.Parser
	mapper  *mapping.Engine
	grader  *grading.Engine
	guides  repository.GuideRepository
	results repository.ResultRepository
	recov   *recovery.Service
	logger  *slog.Logger
}

func NewProcessor(
	chain *extract.Chain,
	p *parser.Parser,
	mapper *mapping.Engine,
	grader *grading.Engine,
	guides repository.GuideRepository,
	results repository.ResultRepository,
	recov *recovery.Service,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		chain: chain, parser: p, mapper: mapper, grader: grader,
		guides: guides, results: results, recov: recov, logger: logger,
	}
}

// ProcessGuide extracts and parses a marking guide document, persisting the
// structured schema.
func (pr *Processor) ProcessGuide(ctx context.Context, doc *entity.SourceDocument) (*entity.GuideSchema, error) {
	ctx = common.WithCorrelationID(ctx, common.CorrelationIDFromContext(ctx))

	content, err := pr.extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	guide, err := pr.parser.ParseGuide(ctx, content.Text)
	metrics.StageDuration.WithLabelValues(StageParse).Observe(time.Since(start).Seconds())
	if err != nil {
		pr.recov.Handle(ctx, err, "pipeline.parse_guide")
		return nil, err
	}
	// Text quality is recorded as a note only. ExtractionConfidence belongs to
	// the parser, which has already reconciled totals against it.
	guide.Metadata.ProcessingNotes = append(guide.Metadata.ProcessingNotes,
		fmt.Sprintf("text extraction: method=%s quality=%.2f", content.Method, content.Quality))

	if err := pr.guides.Save(ctx, guide); err != nil {
		pr.recov.Handle(ctx, err, "pipeline.save_guide")
		return nil, err
	}

	pr.logger.Info("pipeline.guide_done",
		"document_id", doc.ID, "guide_id", guide.ID,
		"questions", len(guide.Questions), "total_marks", guide.TotalMarks)
	return guide, nil
}

// ProcessSubmission runs one student submission end to end against a stored
// guide and persists the grading result.
func (pr *Processor) ProcessSubmission(ctx context.Context, doc *entity.SourceDocument, guideID, submissionID uuid.UUID) (*entity.GradingResult, error) {
	ctx = common.WithCorrelationID(ctx, common.CorrelationIDFromContext(ctx))
	ctx = common.WithSubmissionID(ctx, submissionID)

	guide, err := pr.guides.FindByID(ctx, guideID)
	if err != nil {
		return nil, err
	}

	content, err := pr.extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	mappings, err := pr.mapper.Map(ctx, guide, submissionID, content.Text)
	metrics.StageDuration.WithLabelValues(StageMap).Observe(time.Since(start).Seconds())
	if err != nil {
		pr.recov.Handle(ctx, err, "pipeline.map")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	result, err := pr.grader.Grade(ctx, guide, mappings)
	metrics.StageDuration.WithLabelValues(StageGrade).Observe(time.Since(start).Seconds())
	if err != nil {
		pr.recov.Handle(ctx, err, "pipeline.grade")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	err = pr.results.Save(ctx, result)
	metrics.StageDuration.WithLabelValues(StagePersist).Observe(time.Since(start).Seconds())
	if err != nil {
		pr.recov.Handle(ctx, err, "pipeline.save_result")
		return nil, err
	}

	pr.logger.Info("pipeline.submission_done",
		"submission_id", submissionID, "guide_id", guideID,
		"percentage", result.Percentage, "letter", result.LetterGrade)
	return result, nil
}

func (pr *Processor) extract(ctx context.Context, doc *entity.SourceDocument) (*entity.ExtractedContent, error) {
	start := time.Now()
	content, err := pr.chain.Extract(ctx, doc)
	metrics.StageDuration.WithLabelValues(StageExtract).Observe(time.Since(start).Seconds())
	if err != nil {
		pr.recov.Handle(ctx, err, "pipeline.extract")
		return nil, err
	}
	return content, nil
}
