package api

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

// Filter holds list query parameters; empty values are dropped
type Filter map[string]string

func (f Filter) values() url.Values {
	v := url.Values{}
	for key, val := range f {
		if val != "" {
			v.Set(key, val)
		}
	}
	return v
}

// Client talks to a MetaCI site's REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a MetaCI API client for the site at baseURL
func NewClient(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "api-client").Logger(),
	}
}

// BaseURL returns the site URL the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Schema fetches the site's API schema document. It doubles as a
// connectivity and credential check.
func (c *Client) Schema(ctx context.Context) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := c.send(ctx, http.MethodGet, "/api/schema", nil, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// do executes one action. id is used only by detail actions.
func (c *Client) do(ctx context.Context, action Action, id int, filter Filter, body, out interface{}) error {
	method, path, err := action.path(id)
	if err != nil {
		return err
	}
	return c.send(ctx, method, path, filter.values(), body, out)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().
			Err(err).
			Str("method", method).
			Str("path", path).
			Str("request_id", requestID).
			Msg("Request failed")
		return &ConnectionError{URL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("query", query.Encode()).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("request_id", requestID).
		Msg("MetaCI API request")

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ConnectionError{URL: c.baseURL, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Resource: "resource", Identifier: path}
	case resp.StatusCode == http.StatusBadRequest:
		return &ValidationError{Message: validationMessage(data)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
