package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ayodeji-martins/gradeflow/internal/common"
	"github.com/ayodeji-martins/gradeflow/internal/entity"
)

// Memory is an in-memory implementation of every repository interface, used
// by tests and the batch CLI.
type Memory struct {
	mu       sync.RWMutex
	guides   map[uuid.UUID]*entity.GuideSchema
	mappings map[uuid.UUID][]entity.Mapping // keyed by submission id only
	results  map[uuid.UUID]*entity.GradingResult
}

func NewMemory() *Memory {
	return &Memory{
		guides:   make(map[uuid.UUID]*entity.GuideSchema),
		mappings: make(map[uuid.UUID][]entity.Mapping),
		results:  make(map[uuid.UUID]*entity.GradingResult),
	}
}

func (m *Memory) Save(ctx context.Context, guide *entity.GuideSchema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guides[guide.ID] = guide
	return nil
}

func (m *Memory) FindByID(_ context.Context, id uuid.UUID) (*entity.GuideSchema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.guides[id]
	if !ok {
		return nil, common.NewAppError("GUIDE_NOT_FOUND", "guide "+id.String(), common.ErrGuideNotFound)
	}
	return g, nil
}

func (m *Memory) SaveForSubmission(_ context.Context, submissionID uuid.UUID, mappings []entity.Mapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]entity.Mapping, len(mappings))
	copy(cp, mappings)
	m.mappings[submissionID] = cp
	return nil
}

func (m *Memory) FindBySubmission(_ context.Context, submissionID, guideID uuid.UUID) ([]entity.Mapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []entity.Mapping
	for _, mp := range m.mappings[submissionID] {
		if mp.GuideID == guideID {
			out = append(out, mp)
		}
	}
	return out, nil
}

func (m *Memory) SaveResult(_ context.Context, result *entity.GradingResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.SubmissionID] = result
	return nil
}

func (m *Memory) FindResultBySubmission(_ context.Context, submissionID uuid.UUID) (*entity.GradingResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[submissionID]
	if !ok {
		return nil, common.NewAppError("RESULT_NOT_FOUND", "result for submission "+submissionID.String(), common.ErrNotFound)
	}
	return r, nil
}

// Adapters so Memory satisfies the individual interfaces with the expected
// method names.

type memoryResults struct{ *Memory }

func (m memoryResults) Save(ctx context.Context, result *entity.GradingResult) error {
	return m.SaveResult(ctx, result)
}

func (m memoryResults) FindBySubmission(ctx context.Context, submissionID uuid.UUID) (*entity.GradingResult, error) {
	return m.FindResultBySubmission(ctx, submissionID)
}

// Results exposes the Memory store as a ResultRepository.
func (m *Memory) Results() ResultRepository { return memoryResults{m} }
