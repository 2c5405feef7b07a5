// Package chatwoot is a typed client for the Chatwoot account-scoped REST API.
//
// Different Chatwoot versions wrap the same resources under different response
// envelopes, so every operation unwraps the payload by trying an ordered list
// of known field paths rather than binding to a single shape.
package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	apiKeyHeader     = "api_access_token"
	defaultTimeout   = 15 * time.Second
	maxErrorBodySize = 2048
)

// Client performs create/update/search operations against Chatwoot contacts,
// conversations, and messages. It is safe for concurrent use; the underlying
// connection pool is shared across all forwarding activity.
type Client struct {
	baseURL   string
	accountID int
	apiKey    string
	http      *http.Client
	logger    *slog.Logger
}

// NewClient creates a Client for one Chatwoot account. A non-positive timeout
// falls back to the default.
func NewClient(log *slog.Logger, baseURL string, accountID int, apiKey string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		accountID: accountID,
		apiKey:    apiKey,
		http:      &http.Client{Timeout: timeout},
		logger:    log.With(slog.String("component", "chatwoot")),
	}
}

// do issues one API request and returns the raw response body. Timeouts map to
// ErrTimeout and non-2xx statuses to RejectedError so callers can pick a retry
// policy per kind.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/api/v1/accounts/%d%s", c.baseURL, c.accountID, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeoutErr(err) {
			return nil, fmt.Errorf("%w: %s %s", ErrTimeout, method, path)
		}
		return nil, fmt.Errorf("chatwoot request %s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RejectedError{Status: resp.StatusCode, Body: truncateBody(payload)}
	}
	return payload, nil
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncateBody(payload []byte) string {
	body := strings.TrimSpace(string(payload))
	if len(body) > maxErrorBodySize {
		body = body[:maxErrorBodySize]
	}
	return body
}

// unwrapObject walks the candidate field paths in priority order and returns
// the first JSON object found. An empty path selects the body itself.
func unwrapObject(payload []byte, paths [][]string) (json.RawMessage, error) {
	for _, path := range paths {
		raw, ok := navigate(payload, path)
		if !ok {
			continue
		}
		if isJSONObject(raw) {
			return raw, nil
		}
	}
	return nil, ErrUnrecognizedResponse
}

// unwrapList is the array counterpart of unwrapObject. An empty array is a
// valid match: it marks the end of a paginated list.
func unwrapList(payload []byte, paths [][]string) (json.RawMessage, error) {
	for _, path := range paths {
		raw, ok := navigate(payload, path)
		if !ok {
			continue
		}
		if isJSONArray(raw) {
			return raw, nil
		}
	}
	return nil, ErrUnrecognizedResponse
}

func navigate(payload []byte, path []string) (json.RawMessage, bool) {
	current := json.RawMessage(payload)
	for _, field := range path {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(current, &obj); err != nil {
			return nil, false
		}
		next, ok := obj[field]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
