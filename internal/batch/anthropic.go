package batch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/quillway/quillway/internal/types"
)

const (
	batchesURL = "https://api.anthropic.com/v1/messages/batches"
	apiVersion = "2023-06-01"
)

// AnthropicClient implements Client against the Anthropic Message Batches
// API.
type AnthropicClient struct {
	apiKey string
	client *http.Client
	logger *slog.Logger
}

// NewAnthropicClient creates a batch client for the Anthropic API.
func NewAnthropicClient(apiKey string, logger *slog.Logger) *AnthropicClient {
	return &AnthropicClient{
		apiKey: apiKey,
		client: &http.Client{},
		logger: logger,
	}
}

type batchRequestItem struct {
	CustomID string      `json:"custom_id"`
	Params   batchParams `json:"params"`
}

type batchParams struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []types.Message `json:"messages"`
}

type batchResponse struct {
	ID               string `json:"id"`
	ProcessingStatus string `json:"processing_status"`
	RequestCounts    struct {
		Processing int `json:"processing"`
		Succeeded  int `json:"succeeded"`
		Errored    int `json:"errored"`
		Canceled   int `json:"canceled"`
		Expired    int `json:"expired"`
	} `json:"request_counts"`
	ResultsURL string `json:"results_url"`
}

func (c *AnthropicClient) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("batch API returned HTTP %d: %s", resp.StatusCode, raw)
	}
	return resp, nil
}

// Submit creates the batch upstream and returns its provider id.
func (c *AnthropicClient) Submit(ctx context.Context, prompts []types.BatchPrompt) (string, error) {
	items := make([]batchRequestItem, 0, len(prompts))
	for _, p := range prompts {
		items = append(items, batchRequestItem{
			CustomID: p.CustomID,
			Params: batchParams{
				Model:     p.Model,
				MaxTokens: p.MaxTokens,
				Messages:  p.Messages,
			},
		})
	}
	payload, err := json.Marshal(map[string]any{"requests": items})
	if err != nil {
		return "", fmt.Errorf("encode batch: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, batchesURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode batch response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("batch response carried no id")
	}
	c.logger.Info("batch submitted", "provider_batch_id", out.ID, "requests", len(prompts))
	return out.ID, nil
}

// Status fetches the processing state of a batch.
func (c *AnthropicClient) Status(ctx context.Context, providerBatchID string) (*Status, error) {
	resp, err := c.do(ctx, http.MethodGet, batchesURL+"/"+providerBatchID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode batch status: %w", err)
	}
	return &Status{
		ProcessingStatus: out.ProcessingStatus,
		Succeeded:        out.RequestCounts.Succeeded,
		Errored:          out.RequestCounts.Errored,
		Canceled:         out.RequestCounts.Canceled,
		Expired:          out.RequestCounts.Expired,
		Processing:       out.RequestCounts.Processing,
		ResultsURL:       out.ResultsURL,
	}, nil
}

// Results downloads and splits the JSONL results of an ended batch. Lines
// that cannot be decoded at the outer level are skipped with a log entry;
// per-item envelope problems are the reconciler's concern.
func (c *AnthropicClient) Results(ctx context.Context, providerBatchID string) ([]RawResult, error) {
	resp, err := c.do(ctx, http.MethodGet, batchesURL+"/"+providerBatchID+"/results", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out []RawResult
	scanner := bufio.NewScanner(resp.Body)
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var outer struct {
			CustomID string `json:"custom_id"`
		}
		if err := json.Unmarshal(line, &outer); err != nil || outer.CustomID == "" {
			c.logger.Warn("skipping undecodable batch result line",
				"provider_batch_id", providerBatchID,
				"line_prefix", truncate(line, 200))
			continue
		}
		out = append(out, RawResult{
			CustomID: outer.CustomID,
			Result:   json.RawMessage(append([]byte(nil), line...)),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batch results: %w", err)
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
