package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayodeji-martins/gradeflow/internal/common"
	"github.com/ayodeji-martins/gradeflow/internal/llm"
)

// Complete implements llm.Completer against an OpenAI-compatible
// chat/completions endpoint.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Debug("llm.complete.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", req.Temperature,
		"system_len", len(req.SystemPrompt),
		"user_len", len(req.UserPrompt),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     req.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": req.SystemPrompt},
			{"role": "user", "content": req.UserPrompt},
		},
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("llm.complete.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)

	c.log.Debug("llm.complete.ok",
		"req_id", rid,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm http error: %w", err)
	}
	defer func(rc io.ReadCloser) {
		if err := rc.Close(); err != nil {
			c.log.Warn("llm response body close error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, common.NewAppError("LLM_AUTH", fmt.Sprintf("llm status %d", resp.StatusCode), common.ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, common.NewAppError("LLM_RATE_LIMIT", "llm status 429", common.ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("llm status %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}
	return raw, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
