package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBytes   = 1 << 20
)

// jsonClient posts JSON to PSP endpoints with a per-call deadline.
type jsonClient struct {
	http     *http.Client
	timeout  time.Duration
	username string
	password string
}

func newJSONClient(client *http.Client, timeout time.Duration) jsonClient {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return jsonClient{http: client, timeout: timeout}
}

func (c jsonClient) withBasicAuth(username, password string) jsonClient {
	c.username = username
	c.password = password
	return c
}

// statusError reports a non-2xx response. The body is kept for logging.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// post sends body as JSON and decodes a JSON response into out. Transport failures
// and deadlines wrap ErrProviderUnavailable; 4xx responses wrap ErrProviderRejected.
// A non-nil out is still decoded for 4xx so callers can read the PSP message.
func (c jsonClient) post(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, endpoint, payload, out)
}

func (c jsonClient) get(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

func (c jsonClient) do(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrProviderUnavailable, err)
	}

	var statusErr error
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, &statusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 256)})
	case resp.StatusCode >= 400:
		statusErr = fmt.Errorf("%w: %w", ErrProviderRejected, &statusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 256)})
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil && statusErr == nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return statusErr
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
