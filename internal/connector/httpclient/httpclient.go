package httpclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is an HTTP client with Bearer auth, base URL, and retry logic.
type Client struct {
	baseURL       string
	authorization string
	headers       map[string]string
	httpClient    *http.Client
}

// APIError represents a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string // internal: Retry-After header value for 429s
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithBasicAuth switches the Authorization header to HTTP basic auth,
// as the Jira REST API expects for email/API-token pairs.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		creds := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		c.authorization = "Basic " + creds
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// New creates a Client with Bearer auth and a base URL. An empty token
// leaves requests unauthenticated.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		headers: make(map[string]string),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	if token != "" {
		c.authorization = "Bearer " + token
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const maxRetries = 3

// GetJSON sends a GET request and unmarshals the JSON response into dest.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, dest any) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	body, err := c.do(ctx, http.MethodGet, fullURL, "", nil, "")
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(body, dest)
}

// PostJSON sends a JSON-encoded POST request, unmarshalling any response
// into dest when dest is non-nil.
func (c *Client) PostJSON(ctx context.Context, path string, payload any, dest any) error {
	return c.writeJSON(ctx, http.MethodPost, path, payload, dest)
}

// PutJSON sends a JSON-encoded PUT request.
func (c *Client) PutJSON(ctx context.Context, path string, payload any, dest any) error {
	return c.writeJSON(ctx, http.MethodPut, path, payload, dest)
}

// PatchJSON sends a JSON-encoded PATCH request.
func (c *Client) PatchJSON(ctx context.Context, path string, payload any, dest any) error {
	return c.writeJSON(ctx, http.MethodPatch, path, payload, dest)
}

func (c *Client) writeJSON(ctx context.Context, method, path string, payload, dest any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}
	body, err := c.do(ctx, method, c.baseURL+path, "application/json", encoded, "")
	if err != nil {
		return err
	}
	if dest == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, dest)
}

// GetText fetches a URL and returns the body verbatim. rawURL may be a
// path under the base URL or an absolute URL (raw diff endpoints live on
// a different host than the API).
func (c *Client) GetText(ctx context.Context, rawURL, accept string) (string, error) {
	fullURL := rawURL
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		fullURL = c.baseURL + rawURL
	}
	body, err := c.do(ctx, http.MethodGet, fullURL, "", nil, accept)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// PostFile uploads content as a multipart form file under the "file" field.
func (c *Client) PostFile(ctx context.Context, path, filename string, content []byte, dest any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+path, writer.FormDataContentType(), buf.Bytes(), "")
	if err != nil {
		return err
	}
	if dest == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, dest)
}

// do sends the request, returning the response body. Returns *APIError for
// non-2xx responses. Retries on 429 (with Retry-After) and 5xx (with
// exponential backoff: 1s, 2s, 4s). Max 3 retries.
func (c *Client) do(ctx context.Context, method, fullURL, contentType string, payload []byte, accept string) ([]byte, error) {
	var lastErr *APIError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffDelay(attempt, lastErr)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
		if err != nil {
			return nil, err
		}
		if c.authorization != "" {
			req.Header.Set("Authorization", c.authorization)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		for key, value := range c.headers {
			req.Header.Set(key, value)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		bodyStr := string(body)
		if len(bodyStr) > 512 {
			bodyStr = bodyStr[:512]
		}

		apiErr := &APIError{StatusCode: resp.StatusCode, Body: bodyStr}

		if resp.StatusCode == 429 {
			apiErr.retryAfter = resp.Header.Get("Retry-After")
			lastErr = apiErr
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = apiErr
			continue
		}

		return nil, apiErr
	}

	return nil, lastErr
}

// backoffDelay returns the wait duration before a retry attempt.
func backoffDelay(attempt int, lastErr *APIError) time.Duration {
	if lastErr != nil && lastErr.StatusCode == 429 && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	// Exponential backoff: 1s, 2s, 4s
	return time.Duration(1<<(attempt-1)) * time.Second
}
