// ABOUTME: LLM-assisted code suggestion boundary
// ABOUTME: Defines the Suggester interface and an HTTP completion-endpoint client

package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Request describes a modification a chat user wants suggested.
type Request struct {
	FilePath    string `json:"file_path"`
	Description string `json:"description"`
	FileContent string `json:"file_content"`
}

// Suggestion is the model's proposed replacement content for the file.
type Suggestion struct {
	FilePath    string `json:"file_path"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// Suggester produces a modification suggestion for a file.
type Suggester interface {
	Suggest(ctx context.Context, req *Request) (*Suggestion, error)
}

// Client calls an external completion endpoint. The endpoint receives
// the file content and the requested change and returns the full
// proposed file content.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a suggestion client for the configured endpoint.
func NewClient(endpoint, apiKey, model string) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     slog.Default().With("component", "suggest"),
	}
}

type completionRequest struct {
	Model       string `json:"model,omitempty"`
	FilePath    string `json:"file_path"`
	Description string `json:"description"`
	FileContent string `json:"file_content"`
}

type completionResponse struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Suggest posts the request to the completion endpoint and returns the
// proposed file content.
func (c *Client) Suggest(ctx context.Context, req *Request) (*Suggestion, error) {
	body, err := json.Marshal(completionRequest{
		Model:       c.model,
		FilePath:    req.FilePath,
		Description: req.Description,
		FileContent: req.FileContent,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling suggestion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building suggestion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling suggestion endpoint: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading suggestion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("suggestion endpoint error", "status", resp.StatusCode)
		return nil, fmt.Errorf("suggestion endpoint returned %d", resp.StatusCode)
	}

	var completion completionResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return nil, fmt.Errorf("decoding suggestion response: %w", err)
	}
	if completion.Error != "" {
		return nil, fmt.Errorf("suggestion endpoint: %s", completion.Error)
	}

	return &Suggestion{
		FilePath:    req.FilePath,
		Description: req.Description,
		Content:     completion.Content,
	}, nil
}
