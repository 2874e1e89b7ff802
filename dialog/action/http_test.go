package action

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPHandlerGETSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	h := NewHTTPHandler("fetch")
	out, err := h.Call(context.Background(), map[string]any{"url": srv.URL})
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if out["status_code"] != http.StatusOK {
		t.Fatalf("status_code = %v, want 200", out["status_code"])
	}
	if out["body"] != `{"ok":true}` {
		t.Fatalf("body = %v, want the echoed JSON", out["body"])
	}
}

func TestHTTPHandlerMissingURL(t *testing.T) {
	h := NewHTTPHandler("fetch")
	if _, err := h.Call(context.Background(), map[string]any{}); err == nil {
		t.Fatalf("expected an error when url is missing")
	}
}

func TestHTTPHandlerUnsupportedMethod(t *testing.T) {
	h := NewHTTPHandler("fetch")
	_, err := h.Call(context.Background(), map[string]any{"url": "http://example.com", "method": "DELETE"})
	if err == nil {
		t.Fatalf("expected an error for an unsupported method")
	}
}

func TestHTTPHandler5xxIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := NewHTTPHandler("fetch")
	_, err := h.Call(context.Background(), map[string]any{"url": srv.URL})
	if err == nil {
		t.Fatalf("expected an error for a 503 response")
	}
	retryable, ok := err.(interface{ Retryable() bool })
	if !ok || !retryable.Retryable() {
		t.Fatalf("expected a 5xx response to be retryable")
	}
}

func TestHTTPHandler4xxIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	h := NewHTTPHandler("fetch")
	_, err := h.Call(context.Background(), map[string]any{"url": srv.URL})
	if err == nil {
		t.Fatalf("expected an error for a 400 response")
	}
	if retryable, ok := err.(interface{ Retryable() bool }); ok && retryable.Retryable() {
		t.Fatalf("expected a 4xx response to be terminal, not retryable")
	}
}

func TestHTTPHandlerSendsCustomHeaders(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Test")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := NewHTTPHandler("fetch")
	_, err := h.Call(context.Background(), map[string]any{
		"url":     srv.URL,
		"headers": map[string]any{"X-Test": "hello"},
	})
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if seen != "hello" {
		t.Fatalf("X-Test header = %q, want %q", seen, "hello")
	}
}
