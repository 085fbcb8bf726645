package heroku

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Client talks to the Heroku Platform API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a Heroku Platform API client
func NewClient(baseURL, token string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With().Str("component", "heroku-client").Logger(),
	}
}

// CreateAppSetup starts provisioning a new app from a source tarball
func (c *Client) CreateAppSetup(ctx context.Context, req *AppSetupRequest) (*AppSetup, error) {
	var setup AppSetup
	if err := c.do(ctx, http.MethodPost, "/app-setups", req, &setup); err != nil {
		return nil, fmt.Errorf("failed to create Heroku app: %w", err)
	}
	return &setup, nil
}

// GetAppSetup returns the current state of an app setup
func (c *Client) GetAppSetup(ctx context.Context, id string) (*AppSetup, error) {
	var setup AppSetup
	if err := c.do(ctx, http.MethodGet, "/app-setups/"+url.PathEscape(id), nil, &setup); err != nil {
		return nil, fmt.Errorf("failed to check status of app creation: %w", err)
	}
	return &setup, nil
}

// GetBuild returns a build of an app
func (c *Client) GetBuild(ctx context.Context, app, buildID string) (*Build, error) {
	var build Build
	path := fmt.Sprintf("/apps/%s/builds/%s", url.PathEscape(app), url.PathEscape(buildID))
	if err := c.do(ctx, http.MethodGet, path, nil, &build); err != nil {
		return nil, fmt.Errorf("failed to get build: %w", err)
	}
	return &build, nil
}

// BatchUpdateFormation scales and/or resizes several process types at once
func (c *Client) BatchUpdateFormation(ctx context.Context, app string, updates []FormationUpdate) ([]Formation, error) {
	body := struct {
		Updates []FormationUpdate `json:"updates"`
	}{updates}

	var formation []Formation
	if err := c.do(ctx, http.MethodPatch, "/apps/"+url.PathEscape(app)+"/formation", body, &formation); err != nil {
		return nil, fmt.Errorf("failed to update formation: %w", err)
	}
	return formation, nil
}

// StreamOutput copies a build output stream to w until it ends
func (c *Client) StreamOutput(ctx context.Context, streamURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	// Streams outlive the client timeout
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("failed to open build output stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode}
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read build output stream: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.heroku+json; version=3")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Request-Id", uuid.New().String())
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("Heroku API request")

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil {
			// Proxies and routers answer with plain text
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
