// ABOUTME: HTTP client for the relay's signed and encrypted request protocol
// ABOUTME: Encrypts payloads, signs body||timestamp, and decrypts response envelopes

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2389/repo-relay/internal/auth"
	"github.com/2389/repo-relay/internal/codec"
)

const maxResponseBytes = 8 << 20

// APIError is a non-2xx response from the relay.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay returned %d: %s", e.Status, e.Message)
}

// Client talks to a relay server. Every request body is an encrypted
// envelope carrying the payload, signed with the shared API key. Safe
// for concurrent use.
type Client struct {
	baseURL    string
	signer     *auth.Signer
	apiKey     string
	codec      *codec.Codec
	httpClient *http.Client
}

// New builds a Client for the relay at baseURL.
func New(baseURL, apiKey string, c *codec.Codec) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signer:     auth.NewSigner(apiKey),
		apiKey:     apiKey,
		codec:      c,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Call sends one signed request and returns the decrypted response
// payload. Non-2xx responses come back as *APIError with the server's
// error message when one was given.
func (c *Client) Call(ctx context.Context, method, path string, payload map[string]any) (map[string]any, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}
	token, err := c.codec.Encrypt(string(plaintext))
	if err != nil {
		return nil, fmt.Errorf("encrypting payload: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	body, err := json.Marshal(map[string]string{
		"encrypted_data": token,
		"timestamp":      timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderAPIKey, c.apiKey)
	req.Header.Set(auth.HeaderTimestamp, timestamp)
	req.Header.Set(auth.HeaderSignature, c.signer.Sign(body, timestamp))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	var envelope struct {
		EncryptedData *string `json:"encrypted_data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding response envelope: %w", err)
	}
	if envelope.EncryptedData == nil {
		return map[string]any{}, nil
	}

	decrypted, err := c.codec.Decrypt(*envelope.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("decrypting response: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal([]byte(decrypted), &out); err != nil {
		return nil, fmt.Errorf("decoding response payload: %w", err)
	}
	return out, nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}

// Health checks the unauthenticated health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending health check: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Message: "health check failed"}
	}
	return nil
}
