package recovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ayodeji-martins/gradeflow/internal/common"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantCat Category
		wantSev Severity
	}{
		{"deadline", context.DeadlineExceeded, CategoryTimeout, SeverityMedium},
		{"wrapped deadline", common.WrapError(context.DeadlineExceeded, "call"), CategoryTimeout, SeverityMedium},
		{"validation", common.NewAppError("X", "bad", common.ErrValidation), CategoryValidation, SeverityMedium},
		{"invalid input", common.ErrInvalidInput, CategoryValidation, SeverityMedium},
		{"auth sentinel", common.NewAppError("X", "denied", common.ErrUnauthorized), CategoryAuthentication, SeverityCritical},
		{"rate limit sentinel", common.ErrRateLimited, CategoryRateLimit, SeverityMedium},
		{"database", common.NewAppError("X", "down", common.ErrDatabase), CategoryStorage, SeverityHigh},
		{"guide missing", common.ErrGuideNotFound, CategoryValidation, SeverityHigh},
		{"no readable text", common.ErrNoReadableText, CategoryProcessing, SeverityHigh},
		{"429 hint", errors.New("llm call: 429 too many requests"), CategoryRateLimit, SeverityMedium},
		{"401 hint", errors.New("status 401: invalid api key"), CategoryAuthentication, SeverityCritical},
		{"refused hint", errors.New("dial tcp: connection refused"), CategoryNetwork, SeverityMedium},
		{"unknown", errors.New("something odd"), CategoryProcessing, SeverityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, sev := Classify(tt.err)
			if cat != tt.wantCat || sev != tt.wantSev {
				t.Errorf("Classify(%v) = (%s, %s), want (%s, %s)",
					tt.err, cat, sev, tt.wantCat, tt.wantSev)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	s := NewService(testLogger())
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network is retryable", errors.New("connection refused"), true},
		{"rate limit is retryable", common.ErrRateLimited, true},
		{"timeout is retryable", context.DeadlineExceeded, true},
		{"validation is never retryable", common.ErrValidation, false},
		{"auth is never retryable", common.ErrUnauthorized, false},
		{"guide missing is never retryable", common.ErrGuideNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHandleSurfacesAuthImmediately(t *testing.T) {
	s := NewService(testLogger())
	d := s.Handle(context.Background(), common.ErrUnauthorized, "llm.complete")

	if d.Action != ActionSurface {
		t.Fatalf("auth action = %s, want surface", d.Action)
	}
	if d.CorrelationID == "" {
		t.Fatal("missing correlation id")
	}
	if d.UserMessage == "" {
		t.Fatal("missing user message")
	}
}

func TestHandleKeepsCorrelationIDFromContext(t *testing.T) {
	s := NewService(testLogger())
	ctx := common.WithCorrelationID(context.Background(), "cid-123")
	d := s.Handle(ctx, errors.New("connection refused"), "llm.complete")
	if d.CorrelationID != "cid-123" {
		t.Fatalf("correlation id = %q, want cid-123", d.CorrelationID)
	}
}

func TestHandleRecordsEveryError(t *testing.T) {
	s := NewService(testLogger())
	s.Handle(context.Background(), context.DeadlineExceeded, "a")
	s.Handle(context.Background(), common.ErrValidation, "b")

	recs := s.Records()
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].Context != "a" || recs[1].Context != "b" {
		t.Fatalf("record contexts = %q, %q", recs[0].Context, recs[1].Context)
	}
	if !recs[0].Recoverable {
		t.Error("timeout should be recoverable")
	}
	if recs[1].Recoverable {
		t.Error("validation should not be recoverable")
	}
}

func TestProcessingDegradesToFallback(t *testing.T) {
	s := NewService(testLogger())
	d := s.Handle(context.Background(), errors.New("model returned garbage"), "parser.parse_guide")
	if d.Action != ActionFallback {
		t.Fatalf("processing/medium action = %s, want fallback", d.Action)
	}
}
