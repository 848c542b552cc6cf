package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPConfig configures the remote embedding providers.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// Dimensions 0 means probe the provider with one request.
	Dimensions int
	Normalize  bool
	Timeout    time.Duration
	HTTPClient *http.Client
}

func (c HTTPConfig) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// postJSON sends body to url and decodes a 200 response into out. Other
// statuses become *APIError with the provider's message when it sent one.
func postJSON(ctx context.Context, client *http.Client, provider, url, apiKey string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &APIError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{Provider: provider, StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {"error":{"message"}} or {"error":"..."} bodies.
func errorMessage(body []byte, status string) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Error != "" {
		return flat.Error
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return status
}

// probeDimensions embeds a fixed text once to learn the provider's output size.
func probeDimensions(ctx context.Context, e Embedder) (int, error) {
	v, err := e.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("probe embedding dimension: %w", err)
	}
	if len(v) == 0 {
		return 0, fmt.Errorf("probe embedding dimension: provider returned an empty vector")
	}
	return len(v), nil
}
