package common

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyCorrelationID contextKey = "correlation_id"
	ContextKeySubmissionID  contextKey = "submission_id"
	ContextKeyJobID         contextKey = "job_id"
)

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationID, id)
}

// CorrelationIDFromContext extracts the correlation ID from context,
// minting a fresh one when absent.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyCorrelationID).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// WithSubmissionID adds a submission ID to the context
func WithSubmissionID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ContextKeySubmissionID, id)
}

// SubmissionIDFromContext extracts the submission ID from context
func SubmissionIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ContextKeySubmissionID).(uuid.UUID)
	return id, ok
}

// WithJobID adds a background job ID to the context
func WithJobID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ContextKeyJobID, id)
}

// JobIDFromContext extracts the job ID from context
func JobIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ContextKeyJobID).(uuid.UUID)
	return id, ok
}

// WithTimeout creates a context with the specified timeout
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
