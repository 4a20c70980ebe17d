package extract

import (
	"context"
	"fmt"

	"github.com/ayodeji-martins/gradeflow/internal/entity"
)

// Hints carries per-document context into a method: the on-disk copy of the
// bytes and the resolved format family.
type Hints struct {
	Path   string
	Format string
	Lang   string
}

// Method is one concrete technique for turning a document into text.
// Methods are tried in priority order by the chain.
type Method interface {
	Name() string
	Supports(format string) bool
	// Extract returns text and a page count (0 when unknown).
	Extract(ctx context.Context, doc *entity.SourceDocument, hints Hints) (string, int, error)
}

// ChainFailure is the typed result returned when every method fails or
// produces empty text. It carries the full attempt log for diagnostics.
type ChainFailure struct {
	DocumentID string
	Attempts   []entity.ExtractionAttempt
}

func (f *ChainFailure) Error() string {
	return fmt.Sprintf("extraction failed for document %s after %d attempts", f.DocumentID, len(f.Attempts))
}
