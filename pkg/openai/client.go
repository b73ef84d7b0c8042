// Package openai is a minimal chat-completions client for the OpenAI API.
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

	"github.com/sethvargo/go-retry"

	"github.com/commitforge/commitforge-backend/pkg/config"
)

// Doer is the HTTP surface the client needs; satisfied by *http.Client.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client calls the chat-completions endpoint with retry on transient failures.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	maxTokens  int
	maxTries   uint64
	httpClient Doer
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest captures the caller-controllable knobs for one completion.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Completion is the trimmed response callers consume.
type Completion struct {
	Content          string
	PromptTokens     int64
	CompletionTokens int64
	FinishReason     string
}

// TotalTokens reports prompt plus completion usage.
func (c Completion) TotalTokens() int64 {
	return c.PromptTokens + c.CompletionTokens
}

// New builds a Client from config. The returned client is safe for concurrent use.
func New(cfg config.OpenAIConfig) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4-turbo-preview"
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	maxTries := cfg.MaxTries
	if maxTries == 0 {
		maxTries = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		maxTokens:  cfg.MaxTokens,
		maxTries:   maxTries,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type chatChoice struct {
	Message struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

// Complete runs one chat completion, retrying rate-limit and 5xx responses
// with exponential backoff.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("openai: at least one message is required")
	}

	chatReq := chatRequest{
		Model:     c.model,
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
	}
	if chatReq.MaxTokens == 0 {
		chatReq.MaxTokens = c.maxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = &req.Temperature
	}

	var resp *chatResponse
	backoff := retry.WithMaxRetries(c.maxTries-1, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var attemptErr error
		resp, attemptErr = c.doRequest(ctx, chatReq)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices in response")
	}
	choice := resp.Choices[0]
	content := ""
	if choice.Message.Content != nil {
		content = strings.TrimSpace(*choice.Message.Content)
	}
	if content == "" {
		return nil, fmt.Errorf("openai: empty completion content")
	}

	return &Completion{
		Content:          content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		FinishReason:     choice.FinishReason,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, req chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("openai: request failed: %w", err))
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("openai: read response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("openai: API error (status %d): %s", httpResp.StatusCode, string(respBody))
		if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
			return nil, retry.RetryableError(apiErr)
		}
		return nil, apiErr
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("openai: parse response: %w", err)
	}
	return &chatResp, nil
}
