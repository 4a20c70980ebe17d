package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database    DatabaseConfig
	Server      ServerConfig
	Extraction  ExtractionConfig
	LLM         LLMConfig
	Coordinator CoordinatorConfig
	Executor    ExecutorConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string
	MetricsAddr string
}

// ExtractionConfig holds extraction-chain configuration
type ExtractionConfig struct {
	Pdftotext     string
	Pdftoppm      string
	Tesseract     string
	TesseractLang string
	DPI           int
	MaxPages      int
	CachePath     string
}

// LLMConfig holds generative-AI endpoint configuration
type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
}

// CoordinatorConfig holds adaptive timeout/retry configuration
type CoordinatorConfig struct {
	DefaultTimeout time.Duration
	MinTimeout     time.Duration
	MaxTimeout     time.Duration
	MaxAttempts    int
}

// ExecutorConfig holds background executor configuration
type ExecutorConfig struct {
	Workers   int
	QueueSize int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			GRPCAddr:    getEnv("GRPC_ADDR", ":8080"),
			MetricsAddr: getEnv("METRICS_ADDR", ":9091"),
		},
		Extraction: ExtractionConfig{
			Pdftotext:     getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 0),
			CachePath:     getEnv("EXTRACT_CACHE_PATH", "./gradeflow-cache.db"),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			MaxTokens:   getEnvAsInt("OPENAI_MAX_TOKENS", 4096),
		},
		Coordinator: CoordinatorConfig{
			DefaultTimeout: getEnvAsDuration("COORD_DEFAULT_TIMEOUT", 30*time.Second),
			MinTimeout:     getEnvAsDuration("COORD_MIN_TIMEOUT", 2*time.Second),
			MaxTimeout:     getEnvAsDuration("COORD_MAX_TIMEOUT", 120*time.Second),
			MaxAttempts:    getEnvAsInt("COORD_MAX_ATTEMPTS", 3),
		},
		Executor: ExecutorConfig{
			Workers:   getEnvAsInt("EXECUTOR_WORKERS", 4),
			QueueSize: getEnvAsInt("EXECUTOR_QUEUE_SIZE", 256),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Coordinator.MinTimeout > c.Coordinator.MaxTimeout {
		return NewAppError("CONFIG_ERROR", "COORD_MIN_TIMEOUT exceeds COORD_MAX_TIMEOUT", ErrInvalidInput)
	}
	if c.Executor.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "EXECUTOR_WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
