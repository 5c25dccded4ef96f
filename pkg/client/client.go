// Package client talks to a running swarm-defense job service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/picogrid/swarm-defense/pkg/logger"
	"github.com/picogrid/swarm-defense/pkg/models"
)

// Client is the main client for the job service API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config holds the configuration for the client
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// APIError is returned for any response with a 4xx or 5xx status
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a new client with the given configuration
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// New creates a client for baseURL with the default timeout
func New(baseURL, apiKey string) (*Client, error) {
	return NewClient(Config{BaseURL: baseURL, APIKey: apiKey})
}

// GetAPIKey reads an API key from the named environment variable
func GetAPIKey(envVarName string) string {
	if envVarName == "" {
		return ""
	}
	return os.Getenv(envVarName)
}

// BaseURL returns the service root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request and turns error statuses into *APIError
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	fullURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer closeBody(resp.Body)
		bodyBytes, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(bodyBytes))
		var apiErr models.ErrorResponse
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	return resp, nil
}

// decodeResponse decodes a JSON response into the provided interface
func decodeResponse(resp *http.Response, v interface{}) error {
	defer closeBody(resp.Body)

	if v == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logger.Errorf("failed to close response body: %v", err)
	}
}

// queryParam is one optional query parameter; nil values are left out
type queryParam struct {
	name  string
	value interface{}
}

// encodeQuery form-styles the non-nil parameters into a query string
func encodeQuery(params ...queryParam) (string, error) {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.value == nil {
			continue
		}
		styled, err := runtime.StyleParamWithLocation("form", true, p.name, runtime.ParamLocationQuery, p.value)
		if err != nil {
			return "", fmt.Errorf("failed to encode %s: %w", p.name, err)
		}
		parts = append(parts, styled)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "?" + strings.Join(parts, "&"), nil
}
