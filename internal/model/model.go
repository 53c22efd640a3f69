package model

import (
	"context"

	"github.com/sherlockbot/sherlock/internal/chat"
)

// Result is the common response model for model providers.
type Result struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	Model            string
}

// TotalTokens is the combined prompt and completion token count.
func (r Result) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// Provider is the model provider abstraction used by the orchestrator.
type Provider interface {
	Complete(ctx context.Context, messages []chat.Message) (Result, error)
}
