package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ayodeji-martins/gradeflow/constants"
	"github.com/ayodeji-martins/gradeflow/internal/coordinator"
	"github.com/ayodeji-martins/gradeflow/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCoordinator() *coordinator.Coordinator {
	return coordinator.New(coordinator.Config{
		DefaultTimeout: 5 * time.Second,
		MinTimeout:     time.Second,
		MaxTimeout:     30 * time.Second,
		InitialBackoff: time.Millisecond,
	}, testLogger())
}

// fakeMethod returns canned text or a canned error and counts invocations.
type fakeMethod struct {
	name  string
	text  string
	err   error
	calls int
}

func (m *fakeMethod) Name() string         { return m.name }
func (m *fakeMethod) Supports(string) bool { return true }
func (m *fakeMethod) Extract(_ context.Context, _ *entity.SourceDocument, _ Hints) (string, int, error) {
	m.calls++
	if m.err != nil {
		return "", 0, m.err
	}
	return m.text, 1, nil
}

func textDoc(t *testing.T, body string) *entity.SourceDocument {
	t.Helper()
	return &entity.SourceDocument{
		ID:    uuid.New(),
		Ext:   "txt",
		Bytes: []byte(body),
		Size:  int64(len(body)),
	}
}

const goodText = "The marking guide awards full credit for answers that name the capital city and explain the reasoning clearly. " +
	"Partial credit applies when the answer names the city without any supporting explanation at all."

func TestChainStopsEarlyOnHighConfidence(t *testing.T) {
	first := &fakeMethod{name: "first", text: goodText}
	second := &fakeMethod{name: "second", text: goodText}
	chain := NewChain([]Method{first, second},
		NewScorer(DefaultQualityConfig()), testCoordinator(), nil, testLogger())

	content, err := chain.Extract(context.Background(), textDoc(t, goodText))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content.Method != "first" {
		t.Fatalf("method = %q, want first", content.Method)
	}
	if second.calls != 0 {
		t.Fatalf("second method was called %d times after an early stop", second.calls)
	}
	if content.ValidationStatus != constants.ValidationValid {
		t.Fatalf("status = %s, want valid", content.ValidationStatus)
	}
}

func TestChainKeepsBestAttempt(t *testing.T) {
	noisy := &fakeMethod{name: "noisy", text: "@@ ## $$ %% !!"}
	clean := &fakeMethod{name: "clean", text: goodText}
	chain := NewChain([]Method{noisy, clean},
		NewScorer(DefaultQualityConfig()), testCoordinator(), nil, testLogger())

	content, err := chain.Extract(context.Background(), textDoc(t, goodText))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content.Method != "clean" {
		t.Fatalf("method = %q, want clean", content.Method)
	}
	if noisy.calls != 1 {
		t.Fatalf("noisy method calls = %d, want 1", noisy.calls)
	}
}

func TestChainFailureListsEveryAttempt(t *testing.T) {
	a := &fakeMethod{name: "a", err: errors.New("tool missing")}
	b := &fakeMethod{name: "b", err: errors.New("parse failed")}
	chain := NewChain([]Method{a, b},
		NewScorer(DefaultQualityConfig()), testCoordinator(), nil, testLogger())

	_, err := chain.Extract(context.Background(), textDoc(t, "anything"))
	var cf *ChainFailure
	if !errors.As(err, &cf) {
		t.Fatalf("error = %T, want *ChainFailure", err)
	}
	if len(cf.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(cf.Attempts))
	}
	if cf.Attempts[0].Method != "a" || cf.Attempts[1].Method != "b" {
		t.Fatalf("attempt order wrong: %+v", cf.Attempts)
	}
	for _, at := range cf.Attempts {
		if at.Error == "" {
			t.Errorf("attempt %s has no error detail", at.Method)
		}
	}
}

func TestChainFailsWhenBestAttemptIsInvalid(t *testing.T) {
	// Non-empty output that is still garbage must fail the chain, not come
	// back as a success labeled invalid.
	noise := &fakeMethod{name: "noise", text: strings.Repeat("0 1 ", 40)}
	chain := NewChain([]Method{noise},
		NewScorer(DefaultQualityConfig()), testCoordinator(), nil, testLogger())

	content, err := chain.Extract(context.Background(), textDoc(t, "anything"))
	if err == nil {
		t.Fatalf("expected failure, got content with status %s", content.ValidationStatus)
	}
	var cf *ChainFailure
	if !errors.As(err, &cf) {
		t.Fatalf("error = %T, want *ChainFailure", err)
	}
	if len(cf.Attempts) != 1 || cf.Attempts[0].Method != "noise" {
		t.Fatalf("unexpected attempts: %+v", cf.Attempts)
	}
	if !cf.Attempts[0].Success {
		t.Fatal("attempt should record that the method itself succeeded")
	}
}

func TestChainRejectsUnsupportedExtension(t *testing.T) {
	chain := NewChain([]Method{&fakeMethod{name: "m", text: goodText}},
		NewScorer(DefaultQualityConfig()), testCoordinator(), nil, testLogger())

	doc := textDoc(t, "x")
	doc.Ext = "zip"
	_, err := chain.Extract(context.Background(), doc)
	var cf *ChainFailure
	if !errors.As(err, &cf) {
		t.Fatalf("error = %T, want *ChainFailure", err)
	}
	if len(cf.Attempts) != 1 || cf.Attempts[0].Method != "format-check" {
		t.Fatalf("unexpected attempts: %+v", cf.Attempts)
	}
}

func TestChainReusesCachedExtraction(t *testing.T) {
	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"), testLogger())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	m := &fakeMethod{name: "m", text: goodText}
	chain := NewChain([]Method{m},
		NewScorer(DefaultQualityConfig()), testCoordinator(), cache, testLogger())

	doc := textDoc(t, goodText)
	first, err := chain.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("first extract: %v", err)
	}

	// Same bytes, different document: must hit the cache, not the method.
	again := textDoc(t, goodText)
	second, err := chain.Extract(context.Background(), again)
	if err != nil {
		t.Fatalf("second extract: %v", err)
	}
	if m.calls != 1 {
		t.Fatalf("method calls = %d, want 1 (second run should be cached)", m.calls)
	}
	if second.Text != first.Text || second.ContentHash != first.ContentHash {
		t.Fatal("cached content does not match original")
	}
}

func TestRawScanSalvagesPrintableRuns(t *testing.T) {
	m := &RawScanMethod{}
	doc := &entity.SourceDocument{
		Bytes: append([]byte{0x00, 0x01}, []byte("Question 1 deserves ten marks\x00\x02and this too")...),
	}
	text, _, err := m.Extract(context.Background(), doc, Hints{})
	if err != nil {
		t.Fatalf("raw scan: %v", err)
	}
	if !strings.Contains(text, "Question 1 deserves ten marks") {
		t.Fatalf("salvaged text missing expected run: %q", text)
	}
}
