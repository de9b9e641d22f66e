// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the default assistant API endpoint
	DefaultBaseURL = "https://api.openai.com"

	// DefaultBetaHeader selects the assistants API surface
	DefaultBetaHeader = "assistants=v2"

	// DefaultTimeout is the default HTTP timeout per call
	DefaultTimeout = 30 * time.Second
)

// HTTPClient is an interface for HTTP client operations (enables testing)
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a thin HTTP client for the assistant threads/runs API
type Client struct {
	apiKey      string
	assistantID string
	baseURL     string
	betaHeader  string
	client      HTTPClient
	healthy     bool
	mu          sync.RWMutex
}

// Config contains configuration for the assistant client
type Config struct {
	APIKey      string        // Required: assistant service API key
	AssistantID string        // Required: target assistant
	BaseURL     string        // Optional: API base URL
	BetaHeader  string        // Optional: assistants beta header value
	Timeout     time.Duration // Optional: HTTP timeout (default 30s)
	HTTPClient  HTTPClient    // Optional: injected client for tests
}

// NewClient creates a new assistant API client
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("assistant API key is required")
	}
	if cfg.AssistantID == "" {
		return nil, fmt.Errorf("assistant ID is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.BetaHeader == "" {
		cfg.BetaHeader = DefaultBetaHeader
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		apiKey:      cfg.APIKey,
		assistantID: cfg.AssistantID,
		baseURL:     cfg.BaseURL,
		betaHeader:  cfg.BetaHeader,
		client:      httpClient,
		healthy:     true,
	}, nil
}

// IsHealthy reports whether the last API interaction succeeded
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

func (c *Client) setHealthy(healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = healthy
}

type threadResponse struct {
	ID string `json:"id"`
}

type runResponse struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Model  string `json:"model"`
	Usage  *Usage `json:"usage"`
}

type messageListResponse struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateThread creates a remote conversation seeded with the given messages
func (c *Client) CreateThread(ctx context.Context, messages []Message) (string, error) {
	body := map[string]interface{}{"messages": messages}

	var resp threadResponse
	if err := c.do(ctx, http.MethodPost, "/v1/threads", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// CreateRun starts a run of the configured assistant on the thread, with
// automatic tool selection
func (c *Client) CreateRun(ctx context.Context, threadID string) (string, error) {
	body := map[string]interface{}{
		"assistant_id": c.assistantID,
		"tool_choice":  "auto",
	}

	var resp runResponse
	path := fmt.Sprintf("/v1/threads/%s/runs", threadID)
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// GetRun fetches the run's status, model and token usage
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (Status, string, Usage, error) {
	var resp runResponse
	path := fmt.Sprintf("/v1/threads/%s/runs/%s", threadID, runID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", "", Usage{}, err
	}

	usage := Usage{}
	if resp.Usage != nil {
		usage = *resp.Usage
	}
	return resp.Status, resp.Model, usage, nil
}

// LatestAssistantText returns the text of the most recent assistant message
// on the thread
func (c *Client) LatestAssistantText(ctx context.Context, threadID string) (string, error) {
	var resp messageListResponse
	path := fmt.Sprintf("/v1/threads/%s/messages?order=desc&limit=5", threadID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}

	for _, msg := range resp.Data {
		if msg.Role != "assistant" {
			continue
		}
		for _, block := range msg.Content {
			if block.Type == "text" {
				return block.Text.Value, nil
			}
		}
	}
	return "", ErrEmptyResponse
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", c.betaHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		c.setHealthy(false)
		return fmt.Errorf("assistant API request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			c.setHealthy(false)
		}
		return c.parseAPIError(resp.StatusCode, raw)
	}

	c.setHealthy(true)
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) parseAPIError(statusCode int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &APIError{
			StatusCode: statusCode,
			Type:       apiErr.Error.Type,
			Message:    apiErr.Error.Message,
		}
	}
	return &APIError{
		StatusCode: statusCode,
		Message:    string(body),
	}
}
