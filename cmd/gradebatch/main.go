package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/ayodeji-martins/gradeflow/constants"
	"github.com/ayodeji-martins/gradeflow/internal/common"
	"github.com/ayodeji-martins/gradeflow/internal/coordinator"
	"github.com/ayodeji-martins/gradeflow/internal/export"
	"github.com/ayodeji-martins/gradeflow/internal/extract"
	"github.com/ayodeji-martins/gradeflow/internal/grading"
	"github.com/ayodeji-martins/gradeflow/internal/llm/openai"
	"github.com/ayodeji-martins/gradeflow/internal/mapping"
	"github.com/ayodeji-martins/gradeflow/internal/parser"
	"github.com/ayodeji-martins/gradeflow/internal/pipeline"
	"github.com/ayodeji-martins/gradeflow/internal/recovery"
	"github.com/ayodeji-martins/gradeflow/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		guidePath   = flag.String("guide", "", "marking guide document (required)")
		dir         = flag.String("dir", "", "directory of student submissions (required)")
		out         = flag.String("out", "", "output directory for XLSX reports (defaults to --dir)")
		concurrency = flag.Int("concurrency", 4, "submissions graded in parallel")
	)
	flag.Parse()

	if *guidePath == "" || *dir == "" {
		printError("Error: --guide and --dir are required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = *dir
	}

	_ = godotenv.Load()
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()
	if cfg.LLM.APIKey == "" {
		printError("Error: OPENAI_API_KEY is required\n")
		os.Exit(1)
	}

	coord := coordinator.New(coordinator.Config{
		DefaultTimeout: cfg.Coordinator.DefaultTimeout,
		MinTimeout:     cfg.Coordinator.MinTimeout,
		MaxTimeout:     cfg.Coordinator.MaxTimeout,
		MaxAttempts:    cfg.Coordinator.MaxAttempts,
	}, logger)
	recov := recovery.NewService(logger)

	cache, err := extract.OpenCache(cfg.Extraction.CachePath, logger)
	if err != nil {
		logger.Warn("extraction cache unavailable, continuing without", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	chain := extract.NewChain(
		extract.DefaultMethods(extract.MethodConfig{
			Pdftotext: cfg.Extraction.Pdftotext,
			Pdftoppm:  cfg.Extraction.Pdftoppm,
			Tesseract: cfg.Extraction.Tesseract,
			Lang:      cfg.Extraction.TesseractLang,
			DPI:       cfg.Extraction.DPI,
			MaxPages:  cfg.Extraction.MaxPages,
		}, logger),
		extract.NewScorer(extract.DefaultQualityConfig()),
		coord, cache, logger,
	)

	completer := openai.NewClient(openai.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	}, logger)

	// Batch runs are self-contained; no database needed.
	store := repository.NewMemory()
	p := parser.New(parser.Config{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, completer, coord, recov, logger)
	mapper := mapping.NewEngine(mapping.DefaultConfig(), p, store, logger)
	grader := grading.NewEngine(grading.Config{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, completer, coord, recov, logger)
	processor := pipeline.NewProcessor(chain, p, mapper, grader, store, store.Results(), recov, logger)
	exporter := export.NewService(store, store.Results(), logger)

	// Parse the guide once up front.
	guideDoc, err := pipeline.LoadDocument(*guidePath)
	if err != nil {
		logger.Error("guide load failed", "path", *guidePath, "error", err)
		os.Exit(1)
	}
	guide, err := processor.ProcessGuide(ctx, guideDoc)
	if err != nil {
		logger.Error("guide processing failed", "error", err)
		os.Exit(1)
	}
	logger.Info("guide ready", "guide_id", guide.ID,
		"questions", len(guide.Questions), "total_marks", guide.TotalMarks)

	entries, err := os.ReadDir(*dir)
	if err != nil {
		logger.Error("read submissions directory failed", "dir", *dir, "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		logger.Error("create output directory failed", "dir", *out, "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)

	var processed int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := constants.NormalizeExt(filepath.Ext(e.Name()))
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			continue
		}
		name := e.Name()
		path := filepath.Join(*dir, name)
		processed++

		g.Go(func() error {
			submissionID := uuid.New()
			doc, err := pipeline.LoadDocument(path)
			if err != nil {
				logger.Error("submission load failed", "file", name, "error", err)
				return nil // one bad file should not stop the batch
			}
			result, err := processor.ProcessSubmission(gctx, doc, guide.ID, submissionID)
			if err != nil {
				logger.Error("grading failed", "file", name, "error", err)
				return nil
			}

			data, err := exporter.ExportResultXLSX(gctx, submissionID)
			if err != nil {
				logger.Error("export failed", "file", name, "error", err)
				return nil
			}
			base := strings.TrimSuffix(name, filepath.Ext(name))
			outPath := filepath.Join(*out, base+"-grades.xlsx")
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				logger.Error("write report failed", "path", outPath, "error", err)
				return nil
			}

			logger.Info("graded", "file", name,
				"percentage", fmt.Sprintf("%.1f", result.Percentage),
				"letter", result.LetterGrade, "report", outPath)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("batch aborted", "error", err)
		os.Exit(1)
	}
	logger.Info("batch complete", "submissions", processed)
}
