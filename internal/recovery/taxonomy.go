package recovery

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/ayodeji-martins/gradeflow/internal/common"
)

// Category buckets a failure by its origin.
type Category string

const (
	CategoryNetwork        Category = "network"
	CategoryValidation     Category = "validation"
	CategoryAuthentication Category = "authentication"
	CategoryRateLimit      Category = "rate_limit"
	CategoryTimeout        Category = "timeout"
	CategoryProcessing     Category = "processing"
	CategoryStorage        Category = "storage"
)

// Severity grades how bad a failure is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Action is what the recovery service tells the caller to do next.
type Action string

const (
	ActionRetry    Action = "retry"
	ActionFallback Action = "fallback"
	ActionSurface  Action = "surface"
)

// Classify buckets an error into (category, severity).
func Classify(err error) (Category, Severity) {
	if err == nil {
		return CategoryProcessing, SeverityLow
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout, SeverityMedium
	}
	if errors.Is(err, common.ErrValidation) || errors.Is(err, common.ErrInvalidInput) {
		return CategoryValidation, SeverityMedium
	}
	if errors.Is(err, common.ErrUnauthorized) {
		return CategoryAuthentication, SeverityCritical
	}
	if errors.Is(err, common.ErrRateLimited) {
		return CategoryRateLimit, SeverityMedium
	}
	if errors.Is(err, common.ErrDatabase) {
		return CategoryStorage, SeverityHigh
	}
	if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrGuideNotFound) {
		return CategoryValidation, SeverityHigh
	}
	if errors.Is(err, common.ErrNoReadableText) {
		return CategoryProcessing, SeverityHigh
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout, SeverityMedium
		}
		return CategoryNetwork, SeverityMedium
	}

	// Last resort: status hints in wrapped transport errors.
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "429") || strings.Contains(s, "too many requests") || strings.Contains(s, "rate limit"):
		return CategoryRateLimit, SeverityMedium
	case strings.Contains(s, "401") || strings.Contains(s, "403") || strings.Contains(s, "unauthorized") || strings.Contains(s, "invalid api key"):
		return CategoryAuthentication, SeverityCritical
	case strings.Contains(s, "connection refused") || strings.Contains(s, "no such host") || strings.Contains(s, "eof"):
		return CategoryNetwork, SeverityMedium
	}
	return CategoryProcessing, SeverityMedium
}
