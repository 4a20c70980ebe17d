package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/ayodeji-martins/gradeflow/constants"
	"github.com/ayodeji-martins/gradeflow/internal/entity"
)

// MethodConfig holds the external tool configuration shared by the
// exec-backed methods.
type MethodConfig struct {
	Pdftotext string
	Pdftoppm  string
	Tesseract string
	Lang      string
	DPI       int
	MaxPages  int
}

func (c *MethodConfig) defaults() {
	if c.Pdftotext == "" {
		c.Pdftotext = "pdftotext"
	}
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Lang == "" {
		c.Lang = "eng"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
}

// DefaultMethods returns the chain's method order per format family:
// structured-text parsing first, OCR second, raw-byte heuristic last.
func DefaultMethods(cfg MethodConfig, logger *slog.Logger) []Method {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	r := newExecRunner(logger)
	return []Method{
		&PlainTextMethod{},
		&PDFTextMethod{cfg: cfg, runner: r, logger: logger},
		&PDFOCRMethod{cfg: cfg, runner: r, logger: logger},
		&ImageOCRMethod{cfg: cfg, runner: r, logger: logger},
		&RawScanMethod{},
	}
}

// PlainTextMethod decodes text-family documents directly.
type PlainTextMethod struct{}

func (m *PlainTextMethod) Name() string { return "plain-text" }

func (m *PlainTextMethod) Supports(format string) bool { return format == constants.TEXT }

func (m *PlainTextMethod) Extract(_ context.Context, doc *entity.SourceDocument, _ Hints) (string, int, error) {
	if !utf8.Valid(doc.Bytes) {
		return "", 0, fmt.Errorf("document is not valid UTF-8")
	}
	return string(doc.Bytes), 1, nil
}

// PDFTextMethod extracts the embedded text layer of a PDF via pdftotext.
// pdfcpu validates the file and supplies the page count up front, so corrupt
// uploads fail fast instead of hanging the external tool.
type PDFTextMethod struct {
	cfg    MethodConfig
	runner Runner
	logger *slog.Logger
}

func (m *PDFTextMethod) Name() string { return "pdf-text" }

func (m *PDFTextMethod) Supports(format string) bool { return format == constants.PDF }

func (m *PDFTextMethod) Extract(ctx context.Context, _ *entity.SourceDocument, hints Hints) (string, int, error) {
	pages, err := api.PageCountFile(hints.Path)
	if err != nil {
		return "", 0, fmt.Errorf("pdf validation: %w", err)
	}
	if m.cfg.MaxPages > 0 && pages > m.cfg.MaxPages {
		return "", pages, fmt.Errorf("pdf has %d pages, limit is %d", pages, m.cfg.MaxPages)
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := m.runner.Run(ctx, m.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", hints.Path, "-")
	if err != nil {
		return "", pages, fmt.Errorf("pdftotext: %w (%s)", err, truncate(string(errb), 256))
	}
	return string(out), pages, nil
}

// PDFOCRMethod rasterizes a PDF and runs OCR page by page. It is the fallback
// for scanned exams whose text layer is missing or garbage.
type PDFOCRMethod struct {
	cfg    MethodConfig
	runner Runner
	logger *slog.Logger
}

func (m *PDFOCRMethod) Name() string { return "pdf-ocr" }

func (m *PDFOCRMethod) Supports(format string) bool { return format == constants.PDF }

func (m *PDFOCRMethod) Extract(ctx context.Context, _ *entity.SourceDocument, hints Hints) (string, int, error) {
	tmpDir, err := os.MkdirTemp("", "gf-pp-*")
	if err != nil {
		return "", 0, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			m.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := m.runner.Run(ctx, m.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", m.cfg.DPI), "-png", hints.Path, prefix)
	if err != nil {
		return "", 0, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 256))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if m.cfg.MaxPages > 0 && len(matches) > m.cfg.MaxPages {
		matches = matches[:m.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, fmt.Errorf("pdftoppm produced no images")
	}

	var b strings.Builder
	for _, img := range matches {
		txt, err := tesseract(ctx, m.runner, m.cfg, img, hints.Lang)
		if err != nil {
			m.logger.Warn("page ocr failed", "image", img, "error", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)
	}
	return b.String(), len(matches), nil
}

// ImageOCRMethod runs OCR on a single image document.
type ImageOCRMethod struct {
	cfg    MethodConfig
	runner Runner
	logger *slog.Logger
}

func (m *ImageOCRMethod) Name() string { return "image-ocr" }

func (m *ImageOCRMethod) Supports(format string) bool { return format == constants.IMAGE }

func (m *ImageOCRMethod) Extract(ctx context.Context, _ *entity.SourceDocument, hints Hints) (string, int, error) {
	txt, err := tesseract(ctx, m.runner, m.cfg, hints.Path, hints.Lang)
	if err != nil {
		return "", 0, err
	}
	return txt, 1, nil
}

func tesseract(ctx context.Context, r Runner, cfg MethodConfig, path, lang string) (string, error) {
	if lang == "" {
		lang = cfg.Lang
	}
	// tesseract <file> stdout -l <lang>
	out, errb, err := r.Run(ctx, cfg.Tesseract, path, "stdout", "-l", lang)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 256))
	}
	return string(out), nil
}

// RawScanMethod is the last-resort heuristic: salvage printable runs from the
// raw bytes. It supports every format and almost always produces something,
// but rarely anything good.
type RawScanMethod struct{}

func (m *RawScanMethod) Name() string { return "raw-scan" }

func (m *RawScanMethod) Supports(string) bool { return true }

func (m *RawScanMethod) Extract(_ context.Context, doc *entity.SourceDocument, _ Hints) (string, int, error) {
	var b strings.Builder
	var run []byte
	flush := func() {
		// keep only runs long enough to look like words
		if len(run) >= 4 {
			b.Write(run)
			b.WriteByte(' ')
		}
		run = run[:0]
	}
	for _, c := range doc.Bytes {
		r := rune(c)
		if r < utf8.RuneSelf && (unicode.IsPrint(r) || r == '\n' || r == '\t') {
			run = append(run, c)
			continue
		}
		flush()
	}
	flush()
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", 0, fmt.Errorf("no printable runs found")
	}
	return text, 0, nil
}
