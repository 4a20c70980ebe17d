package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayodeji-martins/gradeflow/internal/common"
	"github.com/ayodeji-martins/gradeflow/internal/entity"
)

// Postgres implements the repository interfaces on a pgx pool. Guides and
// results are stored as JSONB documents; mappings are rows keyed by
// (submission_id, guide_id) so the only access path is per submission.
type Postgres struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPostgres(pool *pgxpool.Pool, log *slog.Logger) *Postgres {
	if log == nil {
		log = slog.Default()
	}
	return &Postgres{pool: pool, log: log}
}

func (r *Postgres) Save(ctx context.Context, guide *entity.GuideSchema) error {
	doc, err := json.Marshal(guide)
	if err != nil {
		return common.WrapError(err, "marshal guide")
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO guides (id, doc, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`,
		guide.ID, doc, guide.CreatedAt)
	if err != nil {
		r.log.Error("guide save failed", "guide_id", guide.ID, "err", err)
		return common.NewAppError("GUIDE_SAVE", "save guide", common.ErrDatabase)
	}
	return nil
}

func (r *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*entity.GuideSchema, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT doc FROM guides WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("GUIDE_NOT_FOUND", "guide "+id.String(), common.ErrGuideNotFound)
	}
	if err != nil {
		return nil, common.NewAppError("GUIDE_FIND", "find guide", common.ErrDatabase)
	}
	var g entity.GuideSchema
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, common.WrapError(err, "unmarshal guide")
	}
	return &g, nil
}

func (r *Postgres) SaveForSubmission(ctx context.Context, submissionID uuid.UUID, mappings []entity.Mapping) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return common.NewAppError("MAPPING_SAVE", "begin tx", common.ErrDatabase)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM mappings WHERE submission_id = $1`, submissionID); err != nil {
		return common.NewAppError("MAPPING_SAVE", "clear previous mappings", common.ErrDatabase)
	}
	for _, m := range mappings {
		if m.SubmissionID != submissionID {
			return common.NewAppError("MAPPING_SCOPE",
				"mapping belongs to a different submission", common.ErrInvalidInput)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO mappings
				(id, submission_id, guide_id, question_id, answer_text, confidence, needs_review, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			m.ID, m.SubmissionID, m.GuideID, m.QuestionID, m.AnswerText, m.Confidence, m.NeedsReview, m.CreatedAt)
		if err != nil {
			r.log.Error("mapping save failed", "submission_id", submissionID, "err", err)
			return common.NewAppError("MAPPING_SAVE", "insert mapping", common.ErrDatabase)
		}
	}
	return tx.Commit(ctx)
}

func (r *Postgres) FindBySubmission(ctx context.Context, submissionID, guideID uuid.UUID) ([]entity.Mapping, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, submission_id, guide_id, question_id, answer_text, confidence, needs_review, created_at
		FROM mappings
		WHERE submission_id = $1 AND guide_id = $2
		ORDER BY created_at, question_id`, submissionID, guideID)
	if err != nil {
		return nil, common.NewAppError("MAPPING_FIND", "query mappings", common.ErrDatabase)
	}
	defer rows.Close()

	var out []entity.Mapping
	for rows.Next() {
		var m entity.Mapping
		if err := rows.Scan(&m.ID, &m.SubmissionID, &m.GuideID, &m.QuestionID,
			&m.AnswerText, &m.Confidence, &m.NeedsReview, &m.CreatedAt); err != nil {
			return nil, common.WrapError(err, "scan mapping")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Results returns the pool-backed ResultRepository.
func (r *Postgres) Results() ResultRepository { return pgResults{r} }

type pgResults struct{ *Postgres }

func (r pgResults) Save(ctx context.Context, result *entity.GradingResult) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return common.WrapError(err, "marshal result")
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO grading_results (id, submission_id, guide_id, doc, graded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (submission_id) DO UPDATE SET
			id = EXCLUDED.id, guide_id = EXCLUDED.guide_id,
			doc = EXCLUDED.doc, graded_at = EXCLUDED.graded_at`,
		result.ID, result.SubmissionID, result.GuideID, doc, result.GradedAt)
	if err != nil {
		r.log.Error("result save failed", "submission_id", result.SubmissionID, "err", err)
		return common.NewAppError("RESULT_SAVE", "save result", common.ErrDatabase)
	}
	return nil
}

func (r pgResults) FindBySubmission(ctx context.Context, submissionID uuid.UUID) (*entity.GradingResult, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx,
		`SELECT doc FROM grading_results WHERE submission_id = $1`, submissionID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("RESULT_NOT_FOUND",
			"result for submission "+submissionID.String(), common.ErrNotFound)
	}
	if err != nil {
		return nil, common.NewAppError("RESULT_FIND", "find result", common.ErrDatabase)
	}
	var out entity.GradingResult
	if err := json.Unmarshal(doc, &out); err != nil {
		return nil, common.WrapError(err, "unmarshal result")
	}
	return &out, nil
}
