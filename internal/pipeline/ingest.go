package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayodeji-martins/gradeflow/constants"
	"github.com/ayodeji-martins/gradeflow/internal/common"
	"github.com/ayodeji-martins/gradeflow/internal/entity"
)

// LoadDocument reads a file from disk into a SourceDocument. The original
// path is kept so exec-backed extractors can reuse it without a temp copy.
func LoadDocument(path string) (*entity.SourceDocument, error) {
	ext := constants.NormalizeExt(strings.TrimPrefix(filepath.Ext(path), "."))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return nil, common.NewAppError("DOC_UNSUPPORTED",
			"unsupported file type: "+ext, common.ErrInvalidInput)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.WrapError(err, "read document")
	}
	if len(data) == 0 {
		return nil, common.NewAppError("DOC_EMPTY", "empty file: "+path, common.ErrInvalidInput)
	}

	return &entity.SourceDocument{
		ID:         uuid.New(),
		Filename:   filepath.Base(path),
		Ext:        ext,
		Size:       int64(len(data)),
		Bytes:      data,
		SourcePath: path,
		UploadedAt: time.Now().UTC(),
	}, nil
}
