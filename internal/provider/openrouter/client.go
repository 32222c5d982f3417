// Package openrouter implements the OpenRouter LLM provider.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/quillway/quillway/internal/provider"
	"github.com/quillway/quillway/internal/types"
	"github.com/quillway/quillway/internal/wire"
)

const baseURL = "https://openrouter.ai/api/v1/chat/completions"

const defaultMaxTokens = 8192

var defaultModels = []string{
	"anthropic/claude-sonnet-4",
	"deepseek/deepseek-chat-v3-0324",
}

// Client implements provider.Provider against the OpenRouter streaming API.
type Client struct {
	apiKey string
	client *http.Client
	logger *slog.Logger
	models []string
}

// New creates an OpenRouter client.
func New(apiKey string, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		client: &http.Client{
			// DisableCompression required for streaming
			Transport: &http.Transport{DisableCompression: true},
		},
		logger: logger,
		models: defaultModels,
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return "openrouter"
}

// Models returns the models this client serves, in preference order.
func (c *Client) Models() []string {
	return c.models
}

type chatRequest struct {
	Model         string          `json:"model"`
	Messages      []types.Message `json:"messages"`
	MaxTokens     int             `json:"max_tokens,omitempty"`
	Temperature   float64         `json:"temperature,omitempty"`
	Stream        bool            `json:"stream"`
	StreamOptions *streamOptions  `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

func buildMessages(req *types.CompletionRequest) []types.Message {
	msgs := make([]types.Message, 0, len(req.History)+2)
	if req.SystemDirective != "" {
		msgs = append(msgs, types.Message{Role: types.RoleSystem, Content: req.SystemDirective})
	}
	msgs = append(msgs, req.History...)
	msgs = append(msgs, types.Message{Role: types.RoleUser, Content: req.PromptText})
	return msgs
}

// Stream issues one streaming attempt and forwards canonical events to
// onEvent as they arrive.
func (c *Client) Stream(ctx context.Context, req *types.CompletionRequest, model string, onEvent func(types.StreamEvent) error) error {
	if c.apiKey == "" {
		return provider.ErrNoAPIKey
	}

	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	body := chatRequest{
		Model:         model,
		Messages:      buildMessages(req),
		MaxTokens:     maxTokens,
		Temperature:   req.Temperature,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("HTTP-Referer", "https://github.com/quillway/quillway")
	httpReq.Header.Set("X-Title", "Quillway")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("openrouter request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &provider.UpstreamError{
			Provider: c.Name(),
			Status:   resp.StatusCode,
			Body:     string(raw),
		}
	}

	parser := wire.NewStreamParser(wire.ProviderOpenRouter, c.logger)
	return provider.ForwardSSE(resp.Body, parser, onEvent)
}
