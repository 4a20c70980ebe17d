package extract

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ayodeji-martins/gradeflow/constants"
	"github.com/ayodeji-martins/gradeflow/internal/coordinator"
	"github.com/ayodeji-martins/gradeflow/internal/entity"
	"github.com/ayodeji-martins/gradeflow/internal/metrics"
)

// ServiceName is the coordinator service key for extraction backends.
const ServiceName = "extraction"

// Chain tries extraction methods in priority order, keeps the best-scoring
// attempt, and stops early once a result clears the high-confidence bar.
// Failures never escape as panics; every outcome is a value.
type Chain struct {
	methods []Method
	scorer  *Scorer
	coord   *coordinator.Coordinator
	cache   *Cache // optional
	logger  *slog.Logger
}

func NewChain(methods []Method, scorer *Scorer, coord *coordinator.Coordinator, cache *Cache, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{methods: methods, scorer: scorer, coord: coord, cache: cache, logger: logger}
}

// Extract runs the chain for one document. On success the returned content's
// validation status is valid or low_quality; empty or invalid text fails the
// whole chain. On failure the error is a *ChainFailure carrying every attempt.
func (c *Chain) Extract(ctx context.Context, doc *entity.SourceDocument) (*entity.ExtractedContent, error) {
	hash := doc.ContentHash()

	if c.cache != nil {
		if cached, ok, err := c.cache.Get(ctx, hash); err != nil {
			c.logger.Warn("extract.cache.lookup_failed", "error", err)
		} else if ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			c.logger.Debug("extract.cache.hit", "document_id", doc.ID, "hash", hash)
			return cached, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	format := constants.MapExtToFormat(doc.Ext)
	if format == "" {
		return nil, &ChainFailure{
			DocumentID: doc.ID.String(),
			Attempts: []entity.ExtractionAttempt{{
				Method: "format-check",
				Error:  "unsupported extension: " + doc.Ext,
			}},
		}
	}

	path, cleanup, err := c.materialize(doc)
	if err != nil {
		return nil, &ChainFailure{
			DocumentID: doc.ID.String(),
			Attempts: []entity.ExtractionAttempt{{
				Method: "materialize",
				Error:  err.Error(),
			}},
		}
	}
	defer cleanup()

	hints := Hints{Path: path, Format: format}

	var attempts []entity.ExtractionAttempt
	var bestText string
	var bestMethod string
	var bestScore float32
	var bestPages int

	for _, m := range c.methods {
		if !m.Supports(format) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		timeout := c.coord.GetTimeout(ServiceName, m.Name())
		mctx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		text, pages, err := m.Extract(mctx, doc, hints)
		elapsed := time.Since(start)
		cancel()

		c.coord.RecordPerformance(ServiceName, m.Name(), elapsed, err == nil)

		attempt := entity.ExtractionAttempt{
			Method:   m.Name(),
			Duration: elapsed,
		}
		if err != nil {
			attempt.Error = err.Error()
			attempts = append(attempts, attempt)
			metrics.ExtractionAttempts.WithLabelValues(m.Name(), "error").Inc()
			c.logger.Warn("extract.method.failed", "document_id", doc.ID, "method", m.Name(), "error", err)
			continue
		}

		score := c.scorer.Score(text)
		attempt.Success = true
		attempt.Text = text
		attempt.Quality = score
		attempts = append(attempts, attempt)
		metrics.ExtractionAttempts.WithLabelValues(m.Name(), "ok").Inc()

		c.logger.Debug("extract.method.ok",
			"document_id", doc.ID, "method", m.Name(),
			"quality", score, "bytes", len(text), "elapsed_ms", elapsed.Milliseconds())

		if score > bestScore || bestMethod == "" {
			bestText, bestMethod, bestScore, bestPages = text, m.Name(), score, pages
		}
		if c.scorer.HighConfidence(score) {
			break
		}
	}

	status := c.scorer.Status(bestText, bestScore)
	if bestMethod == "" || status == constants.ValidationEmpty || status == constants.ValidationInvalid {
		return nil, &ChainFailure{DocumentID: doc.ID.String(), Attempts: attempts}
	}

	content := &entity.ExtractedContent{
		DocumentID:       doc.ID,
		ContentHash:      hash,
		Text:             bestText,
		Method:           bestMethod,
		Quality:          bestScore,
		ValidationStatus: status,
		Pages:            bestPages,
		Version:          time.Now().UnixNano(),
		ExtractedAt:      time.Now().UTC(),
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, content); err != nil {
			c.logger.Warn("extract.cache.store_failed", "error", err)
		}
	}

	c.logger.Info("extract.chain.done",
		"document_id", doc.ID, "method", bestMethod,
		"quality", bestScore, "status", status, "attempts", len(attempts))
	return content, nil
}

// materialize ensures the document bytes exist on disk for exec-backed
// methods. Documents ingested from the filesystem reuse their source path.
func (c *Chain) materialize(doc *entity.SourceDocument) (string, func(), error) {
	if doc.SourcePath != "" {
		if _, err := os.Stat(doc.SourcePath); err == nil {
			return doc.SourcePath, func() {}, nil
		}
	}
	tmpDir, err := os.MkdirTemp("", "gf-doc-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	path := filepath.Join(tmpDir, "doc."+constants.NormalizeExt(doc.Ext))
	if err := os.WriteFile(path, doc.Bytes, 0o600); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}
