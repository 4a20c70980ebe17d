package llm

import "context"

// CompletionRequest is one generative-AI call. The timeout comes from the
// coordinator via the caller's context deadline, never from the client.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

// Completer is the narrow interface the pipeline depends on for every
// generative-AI call.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
