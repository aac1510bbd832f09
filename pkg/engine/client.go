// Package engine provides the HTTP client for the external workflow execution
// engine.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/intelogroup/clixen/pkg/models"
)

const (
	apiKeyHeader = "X-N8N-API-KEY"

	defaultRequestTimeout = 30 * time.Second
	healthProbeTimeout    = 5 * time.Second

	maxErrorBodyBytes = 2048
)

// ErrEngineUnavailable indicates the engine could not be reached at all.
var ErrEngineUnavailable = errors.New("execution engine unavailable")

// DeployPayload is the engine's create-workflow request body.
type DeployPayload struct {
	Name        string                           `json:"name"`
	Nodes       []*models.Node                   `json:"nodes"`
	Connections map[string][][]models.Connection `json:"connections"`
	Settings    map[string]any                   `json:"settings,omitempty"`
	Active      bool                             `json:"active"`
}

// Workflow is the engine's view of a deployed workflow.
type Workflow struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

// APIError is a non-2xx response from the engine. The body may or may not be
// JSON; both are preserved for diagnostics.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("engine returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the execution engine over HTTP with an API-key header.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an engine client for the given base URL.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		logger: logger.With("module", "engine"),
	}
}

// BaseURL returns the engine endpoint the client targets; deployment and
// webhook URLs are derived from it.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateWorkflow pushes a workflow definition to the engine and returns the
// engine-assigned workflow.
func (c *Client) CreateWorkflow(ctx context.Context, payload *DeployPayload) (*Workflow, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deploy payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/workflows", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build engine request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.apiError(resp)
	}

	workflow := &Workflow{}
	if err := json.NewDecoder(resp.Body).Decode(workflow); err != nil {
		return nil, fmt.Errorf("failed to decode engine response: %w", err)
	}

	if workflow.ID == "" {
		return nil, errors.New("engine response is missing the workflow id")
	}

	return workflow, nil
}

// DeleteWorkflow removes a workflow from the engine. Deleting an unknown id is
// treated as success so rollback stays idempotent.
func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/v1/workflows/"+id, nil)
	if err != nil {
		return fmt.Errorf("failed to build engine request: %w", err)
	}

	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(resp)
	}

	return nil
}

// Health probes the engine's health endpoint with a bounded timeout. A
// timeout counts as a failure, not as unknown.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(resp)
	}

	return nil
}

// apiError extracts a diagnostic message from a non-2xx response whose body
// may or may not be JSON.
func (c *Client) apiError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		raw = nil
	}

	message := strings.TrimSpace(string(raw))

	parsed := struct {
		Message string `json:"message"`
	}{}
	if json.Unmarshal(raw, &parsed) == nil && parsed.Message != "" {
		message = parsed.Message
	}

	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}
