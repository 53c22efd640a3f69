package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sherlockbot/sherlock/internal/chat"
	"github.com/sherlockbot/sherlock/internal/model"
)

// DefaultBaseURL is the OpenRouter OpenAI-compatible API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Client is a minimal OpenRouter chat completions client.
type Client struct {
	apiKey     string
	url        string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates an OpenRouter client. timeout is the hard wall-clock
// bound applied to every completion call.
func NewClient(apiKey, baseURL, modelName string, timeout time.Duration) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		url:        base + "/chat/completions",
		model:      modelName,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chat.Message `json:"messages"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *usage `json:"usage"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Complete sends a chat completion request. Failures are classified into the
// model package's taxonomy: 429 is model.ErrRateLimited, transport failures
// are model.ErrConnection, deadline hits are model.ErrTimeout, and an empty
// choice list is model.ErrEmptyResponse. Empty content in a non-empty choice
// is valid and returned as-is.
func (c *Client) Complete(ctx context.Context, messages []chat.Message) (model.Result, error) {
	reqBody := chatRequest{Model: c.model, Messages: messages}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return model.Result{}, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return model.Result{}, fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return model.Result{}, fmt.Errorf("%w after %s", model.ErrTimeout, c.timeout)
		}
		return model.Result{}, fmt.Errorf("%w: %v", model.ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return model.Result{}, fmt.Errorf("%w after %s", model.ErrTimeout, c.timeout)
		}
		return model.Result{}, fmt.Errorf("%w: failed reading response: %v", model.ErrConnection, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return model.Result{}, fmt.Errorf("%w: status=429 body=%s", model.ErrRateLimited, truncate(string(body), 400))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.Result{}, fmt.Errorf("completion non-success status=%d body=%s", resp.StatusCode, truncate(string(body), 400))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.Result{}, fmt.Errorf("failed to parse completion response: %s", truncate(string(body), 400))
	}
	if len(parsed.Choices) == 0 {
		return model.Result{}, fmt.Errorf("%w: no choices", model.ErrEmptyResponse)
	}

	result := model.Result{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
	}
	if parsed.Usage != nil {
		result.PromptTokens = parsed.Usage.PromptTokens
		result.CompletionTokens = parsed.Usage.CompletionTokens
	}
	return result, nil
}

// Retryable reports whether a completion failure is transient: rate limits
// and connection drops are retried, timeouts and empty responses are not.
func Retryable(err error) bool {
	return errors.Is(err, model.ErrRateLimited) || errors.Is(err, model.ErrConnection)
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
