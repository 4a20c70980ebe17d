package extract

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ayodeji-martins/gradeflow/constants"
	"github.com/ayodeji-martins/gradeflow/internal/entity"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS extraction_cache (
	content_hash TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL,
	text         TEXT NOT NULL,
	method       TEXT NOT NULL,
	quality      REAL NOT NULL,
	status       TEXT NOT NULL,
	pages        INTEGER NOT NULL DEFAULT 0,
	version      INTEGER NOT NULL,
	extracted_at TIMESTAMP NOT NULL
);`

// Cache is a durable content-hash keyed store of extraction results.
// Writes are last-writer-wins on version, so a stale failure replayed by a
// concurrent job cannot overwrite a newer success.
type Cache struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenCache opens (and if needed initializes) the sqlite-backed cache at path.
func OpenCache(path string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &Cache{db: db, logger: logger}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached content for a hash, if present.
func (c *Cache) Get(ctx context.Context, hash string) (*entity.ExtractedContent, bool, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT document_id, text, method, quality, status, pages, version, extracted_at
		FROM extraction_cache WHERE content_hash = ?`, hash)

	var (
		docID       string
		out         entity.ExtractedContent
		status      string
		extractedAt time.Time
	)
	err := row.Scan(&docID, &out.Text, &out.Method, &out.Quality, &status, &out.Pages, &out.Version, &extractedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	id, err := uuid.Parse(docID)
	if err != nil {
		return nil, false, err
	}
	out.DocumentID = id
	out.ContentHash = hash
	out.ValidationStatus = constants.ValidationStatus(status)
	out.ExtractedAt = extractedAt
	return &out, true, nil
}

// Put stores content, keeping the newest version when hashes collide.
func (c *Cache) Put(ctx context.Context, content *entity.ExtractedContent) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO extraction_cache
			(content_hash, document_id, text, method, quality, status, pages, version, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			document_id = excluded.document_id,
			text = excluded.text,
			method = excluded.method,
			quality = excluded.quality,
			status = excluded.status,
			pages = excluded.pages,
			version = excluded.version,
			extracted_at = excluded.extracted_at
		WHERE excluded.version >= extraction_cache.version`,
		content.ContentHash, content.DocumentID.String(), content.Text, content.Method,
		content.Quality, string(content.ValidationStatus), content.Pages,
		content.Version, content.ExtractedAt)
	return err
}
