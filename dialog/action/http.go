// Package action provides dialog.ActionHandler adapters: an HTTP-backed
// handler for calling external services from an action step, and a
// deterministic mock handler for tests.
package action

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPHandler calls a fixed external HTTP endpoint from an action step.
// Input/output mapping happens in the flow definition (input_mapping /
// output_mapping); HTTPHandler only knows about the wire shape of one
// request/response pair.
//
// Input Parameters:
//   - method: HTTP method ("GET" or "POST", defaults to "GET")
//   - url: target URL (required)
//   - headers: optional map of request headers
//   - body: optional request body (sent with either method)
//
// Output:
//   - status_code: HTTP status code
//   - headers: response headers
//   - body: response body as a string
type HTTPHandler struct {
	name   string
	client *http.Client
}

// NewHTTPHandler constructs an HTTPHandler registered under name.
func NewHTTPHandler(name string) *HTTPHandler {
	return &HTTPHandler{name: name, client: &http.Client{}}
}

// Name implements dialog.ActionHandler.
func (h *HTTPHandler) Name() string { return h.name }

// Call implements dialog.ActionHandler. A 5xx response or a transport
// failure is returned as a retryableError so the engine's retry policy
// can ride out transient blips; a 4xx response is terminal.
func (h *HTTPHandler) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	urlStr, ok := input["url"].(string)
	if !ok || urlStr == "" {
		return nil, fmt.Errorf("url parameter required (string)")
	}

	method := "GET"
	if m, ok := input["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if method != "GET" && method != "POST" {
		return nil, fmt.Errorf("unsupported HTTP method: %s (supported: GET, POST)", method)
	}

	var body io.Reader
	if bodyStr, ok := input["body"].(string); ok && bodyStr != "" {
		body = bytes.NewBufferString(bodyStr)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if headers, ok := input["headers"].(map[string]any); ok {
		for key, value := range headers {
			if valueStr, ok := value.(string); ok {
				req.Header.Set(key, valueStr)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, retryableError{cause: fmt.Errorf("execute request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryableError{cause: fmt.Errorf("read response body: %w", err)}
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) == 1 {
			respHeaders[key] = values[0]
		} else {
			respHeaders[key] = values
		}
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"body":        string(respBody),
	}

	if resp.StatusCode >= 500 {
		return result, retryableError{cause: fmt.Errorf("server returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return result, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return result, nil
}

// retryableError marks its cause as worth retrying via dialog.Retryable
// without reaching into the dialog package's concrete error type — a
// handler is ordinary user code and only needs to satisfy the marker
// interface structurally.
type retryableError struct{ cause error }

func (e retryableError) Error() string  { return e.cause.Error() }
func (e retryableError) Unwrap() error  { return e.cause }
func (e retryableError) Retryable() bool { return true }
