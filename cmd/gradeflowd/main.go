package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/ayodeji-martins/gradeflow/constants"
	"github.com/ayodeji-martins/gradeflow/internal/common"
	"github.com/ayodeji-martins/gradeflow/internal/coordinator"
	"github.com/ayodeji-martins/gradeflow/internal/executor"
	"github.com/ayodeji-martins/gradeflow/internal/extract"
	"github.com/ayodeji-martins/gradeflow/internal/grading"
	"github.com/ayodeji-martins/gradeflow/internal/llm/openai"
	"github.com/ayodeji-martins/gradeflow/internal/mapping"
	"github.com/ayodeji-martins/gradeflow/internal/parser"
	"github.com/ayodeji-martins/gradeflow/internal/pipeline"
	"github.com/ayodeji-martins/gradeflow/internal/recovery"
	"github.com/ayodeji-martins/gradeflow/internal/repository"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      parseLevel(os.Getenv("LOG_LEVEL")),
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := repository.HealthCheck(ctx, pool, 3*time.Second); err != nil {
		logger.Error("database health check failed", "error", err)
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
		logger.Error("extraction cache unavailable", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

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

	store := repository.NewPostgres(pool, logger)
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

	exec := executor.New(executor.Config{
		Workers:  cfg.Executor.Workers,
		QueueCap: cfg.Executor.QueueSize,
	}, logger)
	exec.Start()

	// Metrics endpoint
	metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		logger.Info("metrics listening", "addr", cfg.Server.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	// gRPC health + reflection
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("listen failed", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("grpc serving", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve failed", "error", err)
		}
	}()

	// Inbox scanner: submissions dropped into INBOX_DIR are graded against
	// GUIDE_ID as background jobs.
	if inbox := os.Getenv("INBOX_DIR"); inbox != "" {
		guideID, err := uuid.Parse(os.Getenv("GUIDE_ID"))
		if err != nil {
			logger.Error("GUIDE_ID required when INBOX_DIR is set", "error", err)
			os.Exit(1)
		}
		go scanInbox(ctx, inbox, guideID, processor, exec, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := exec.Shutdown(shutdownCtx); err != nil {
		logger.Warn("executor shutdown timed out", "error", err)
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("stopped")
}

// scanInbox polls the inbox directory and enqueues each new file once.
func scanInbox(ctx context.Context, dir string, guideID uuid.UUID, processor *pipeline.Processor, exec *executor.Executor, logger *slog.Logger) {
	seen := make(map[string]bool)
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Warn("inbox scan failed", "dir", dir, "error", err)
		}
		for _, e := range entries {
			if e.IsDir() || seen[e.Name()] {
				continue
			}
			ext := constants.NormalizeExt(filepath.Ext(e.Name()))
			if _, ok := constants.AllowedExtensions[ext]; !ok {
				continue
			}
			seen[e.Name()] = true
			path := filepath.Join(dir, e.Name())
			submissionID := uuid.New()

			jobID, err := exec.Submit("grade_submission", executor.PriorityNormal, func(jobCtx context.Context) error {
				doc, err := pipeline.LoadDocument(path)
				if err != nil {
					return err
				}
				_, err = processor.ProcessSubmission(jobCtx, doc, guideID, submissionID)
				return err
			})
			if err != nil {
				logger.Warn("inbox enqueue failed", "file", e.Name(), "error", err)
				delete(seen, e.Name())
				continue
			}
			logger.Info("inbox enqueued", "file", e.Name(), "job_id", jobID, "submission_id", submissionID)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
