package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ayodeji-martins/gradeflow/internal/entity"
)

// The persistence surface is deliberately narrow: save, find by id, find by
// submission. There is NO guide-wide mapping lookup; mappings can only be
// read through a submission id, which structurally prevents one submission's
// answers from leaking into another's run.

type GuideRepository interface {
	Save(ctx context.Context, guide *entity.GuideSchema) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.GuideSchema, error)
}

type MappingRepository interface {
	// SaveForSubmission replaces the submission's mappings for a guide.
	SaveForSubmission(ctx context.Context, submissionID uuid.UUID, mappings []entity.Mapping) error
	// FindBySubmission returns only mappings belonging to submissionID.
	FindBySubmission(ctx context.Context, submissionID, guideID uuid.UUID) ([]entity.Mapping, error)
}

type ResultRepository interface {
	Save(ctx context.Context, result *entity.GradingResult) error
	FindBySubmission(ctx context.Context, submissionID uuid.UUID) (*entity.GradingResult, error)
}
