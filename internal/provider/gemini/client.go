// Package gemini implements the Google Gemini streaming provider.
package gemini

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

const baseURL = "https://generativelanguage.googleapis.com/v1beta/models"

const defaultMaxTokens = 8192

var defaultModels = []string{
	"gemini-2.5-pro",
	"gemini-2.5-flash",
}

// Client implements provider.Provider against the Gemini streaming API.
type Client struct {
	apiKey string
	client *http.Client
	logger *slog.Logger
	models []string
}

// New creates a Gemini client.
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
	return "gemini"
}

// Models returns the models this client serves, in preference order.
func (c *Client) Models() []string {
	return c.models
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

func buildContents(req *types.CompletionRequest) []content {
	out := make([]content, 0, len(req.History)+1)
	for _, m := range req.History {
		role := "user"
		if m.Role == types.RoleAssistant {
			role = "model"
		}
		out = append(out, content{Role: role, Parts: []part{{Text: m.Content}}})
	}
	out = append(out, content{Role: "user", Parts: []part{{Text: req.PromptText}}})
	return out
}

// Stream issues one streaming attempt against streamGenerateContent. The
// dialect ends at transport EOF with no terminator frame; the parser
// synthesizes the terminal event.
func (c *Client) Stream(ctx context.Context, req *types.CompletionRequest, model string, onEvent func(types.StreamEvent) error) error {
	if c.apiKey == "" {
		return provider.ErrNoAPIKey
	}

	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	body := generateRequest{
		Contents: buildContents(req),
		GenerationConfig: &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: maxTokens,
		},
	}
	if req.SystemDirective != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.SystemDirective}}}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse", baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("gemini request: %w", err)
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

	parser := wire.NewStreamParser(wire.ProviderGemini, c.logger)
	return provider.ForwardSSE(resp.Body, parser, onEvent)
}
