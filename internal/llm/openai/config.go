package openai

import (
	"log/slog"
	"net/http"
	"os"
)

// Config for the OpenAI-compatible chat completions client.
type Config struct {
	APIKey  string // if empty, falls back to env OPENAI_API_KEY
	BaseURL string // default https://api.openai.com/v1
	Model   string // e.g., "gpt-4o-mini"
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

// NewClient builds a client. Per-call deadlines come from the context, so the
// underlying http.Client carries no timeout of its own.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{},
		log:  logger,
	}
}
