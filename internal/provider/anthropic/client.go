// Package anthropic implements the Anthropic Messages API provider.
package anthropic

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

const (
	baseURL    = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"

	defaultMaxTokens = 8192
)

// Default model order: primary first, cheaper fallback second.
var defaultModels = []string{
	"claude-sonnet-4-20250514",
	"claude-3-5-haiku-20241022",
}

// Client implements provider.Provider against the Anthropic streaming API.
type Client struct {
	apiKey string
	client *http.Client
	logger *slog.Logger
	models []string
}

// New creates an Anthropic client. The API key is validated at config load;
// an empty key here fails every attempt with ErrNoAPIKey.
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
	return "anthropic"
}

// Models returns the models this client serves, in preference order.
func (c *Client) Models() []string {
	return c.models
}

type messagesRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Messages    []types.Message `json:"messages"`
	System      string          `json:"system,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	Stream      bool            `json:"stream"`
}

func buildMessages(req *types.CompletionRequest) []types.Message {
	msgs := make([]types.Message, 0, len(req.History)+1)
	for _, m := range req.History {
		// The Messages API only accepts user/assistant roles in the list.
		if m.Role == types.RoleUser || m.Role == types.RoleAssistant {
			msgs = append(msgs, m)
		}
	}
	msgs = append(msgs, types.Message{Role: types.RoleUser, Content: req.PromptText})
	return msgs
}

// Stream issues one streaming attempt and forwards canonical events to
// onEvent. No buffering: deltas reach the caller as they arrive.
func (c *Client) Stream(ctx context.Context, req *types.CompletionRequest, model string, onEvent func(types.StreamEvent) error) error {
	if c.apiKey == "" {
		return provider.ErrNoAPIKey
	}

	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	body := messagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Messages:    buildMessages(req),
		System:      req.SystemDirective,
		Temperature: req.Temperature,
		Stream:      true,
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
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("anthropic request: %w", err)
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

	parser := wire.NewStreamParser(wire.ProviderAnthropic, c.logger)
	return provider.ForwardSSE(resp.Body, parser, onEvent)
}
