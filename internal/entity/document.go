package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/ayodeji-martins/gradeflow/constants"
)

// SourceDocument is a raw uploaded exam document. Immutable once received.
type SourceDocument struct {
	ID       uuid.UUID `json:"id"`
	Filename string    `json:"filename"`
	Ext      string    `json:"ext"`
	Size     int64     `json:"size"`
	Bytes    []byte    `json:"-"`

	// SourcePath is set when the bytes live on disk (batch ingestion).
	SourcePath string    `json:"source_path,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ContentHash returns the hex SHA-256 of the document bytes.
// Identical bytes always hash identically, enabling cache reuse.
func (d *SourceDocument) ContentHash() string {
	sum := sha256.Sum256(d.Bytes)
	return hex.EncodeToString(sum[:])
}

// ExtractionAttempt records one method's outcome. Append-only per document.
type ExtractionAttempt struct {
	Method   string        `json:"method"`
	Success  bool          `json:"success"`
	Text     string        `json:"text,omitempty"`
	Quality  float32       `json:"quality"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// ExtractedContent is the winning attempt's text, derived once per document.
type ExtractedContent struct {
	DocumentID       uuid.UUID                  `json:"document_id"`
	ContentHash      string                     `json:"content_hash"`
	Text             string                     `json:"text"`
	Method           string                     `json:"method"`
	Quality          float32                    `json:"quality"`
	ValidationStatus constants.ValidationStatus `json:"validation_status"`
	Pages            int                        `json:"pages,omitempty"`
	Version          int64                      `json:"version"`
	ExtractedAt      time.Time                  `json:"extracted_at"`
}
