package recovery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ayodeji-martins/gradeflow/internal/common"
	"github.com/ayodeji-martins/gradeflow/internal/entity"
	"github.com/ayodeji-martins/gradeflow/internal/metrics"
)

// Decision is the outcome of handling one error.
type Decision struct {
	Action        Action
	Category      Category
	Severity      Severity
	CorrelationID string
	// UserMessage is safe to show outside the system; it never carries
	// internal detail.
	UserMessage string
}

type policyKey struct {
	cat Category
	sev Severity
}

// policyTable maps (category, severity) to an action. Missing entries fall
// back to surface.
var policyTable = map[policyKey]Action{
	{CategoryNetwork, SeverityLow}:    ActionRetry,
	{CategoryNetwork, SeverityMedium}: ActionRetry,
	{CategoryNetwork, SeverityHigh}:   ActionFallback,

	{CategoryTimeout, SeverityLow}:    ActionRetry,
	{CategoryTimeout, SeverityMedium}: ActionRetry,
	{CategoryTimeout, SeverityHigh}:   ActionFallback,

	{CategoryRateLimit, SeverityLow}:    ActionRetry,
	{CategoryRateLimit, SeverityMedium}: ActionRetry,
	{CategoryRateLimit, SeverityHigh}:   ActionFallback,

	// Retrying with bad credentials wastes calls; surface immediately.
	{CategoryAuthentication, SeverityMedium}:   ActionSurface,
	{CategoryAuthentication, SeverityHigh}:     ActionSurface,
	{CategoryAuthentication, SeverityCritical}: ActionSurface,

	// Validation failures are never retried; the input will not improve.
	{CategoryValidation, SeverityLow}:    ActionSurface,
	{CategoryValidation, SeverityMedium}: ActionSurface,
	{CategoryValidation, SeverityHigh}:   ActionSurface,

	{CategoryProcessing, SeverityLow}:    ActionFallback,
	{CategoryProcessing, SeverityMedium}: ActionFallback,
	{CategoryProcessing, SeverityHigh}:   ActionSurface,

	{CategoryStorage, SeverityMedium}: ActionRetry,
	{CategoryStorage, SeverityHigh}:   ActionSurface,
}

var userMessages = map[Category]string{
	CategoryNetwork:        "A temporary connection problem occurred. Please try again shortly.",
	CategoryValidation:     "The provided input could not be processed. Please check the document and try again.",
	CategoryAuthentication: "The grading service is not available right now. Please contact support.",
	CategoryRateLimit:      "The service is busy. Your request will be retried automatically.",
	CategoryTimeout:        "Processing took longer than expected. It will be retried automatically.",
	CategoryProcessing:     "The document could not be fully processed. A simplified result may be available.",
	CategoryStorage:        "A storage problem occurred while saving results. Please try again.",
}

// Service classifies failures and dispatches retry/fallback/surface decisions.
type Service struct {
	logger *slog.Logger

	mu      sync.Mutex
	records []entity.ErrorRecord
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// Handle classifies err, consults the policy table, and returns the decision.
// Every handled error gets a correlation id and a structured log line.
func (s *Service) Handle(ctx context.Context, err error, where string) Decision {
	cat, sev := Classify(err)
	action, ok := policyTable[policyKey{cat, sev}]
	if !ok {
		action = ActionSurface
	}

	cid := common.CorrelationIDFromContext(ctx)
	msg, ok := userMessages[cat]
	if !ok {
		msg = "An unexpected problem occurred. Please try again."
	}

	s.mu.Lock()
	s.records = append(s.records, entity.ErrorRecord{
		CorrelationID: cid,
		Category:      string(cat),
		Severity:      string(sev),
		Context:       where,
		Recoverable:   action != ActionSurface,
		Action:        string(action),
		OccurredAt:    time.Now().UTC(),
	})
	s.mu.Unlock()
	metrics.HandledErrors.WithLabelValues(string(cat), string(action)).Inc()

	s.logger.Error("recovery.handled",
		"correlation_id", cid,
		"where", where,
		"category", cat,
		"severity", sev,
		"action", action,
		"err", err,
	)

	return Decision{
		Action:        action,
		Category:      cat,
		Severity:      sev,
		CorrelationID: cid,
		UserMessage:   msg + " (ref: " + cid + ")",
	}
}

// Retryable adapts the taxonomy for coordinator.Do: an error is retryable
// when the policy table says retry.
func (s *Service) Retryable(err error) bool {
	cat, sev := Classify(err)
	return policyTable[policyKey{cat, sev}] == ActionRetry
}

// Records returns the append-only error log, most recent last.
func (s *Service) Records() []entity.ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.ErrorRecord, len(s.records))
	copy(out, s.records)
	return out
}
