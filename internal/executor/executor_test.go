package executor_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mpetrov/ratesweep/internal/executor"
	"github.com/mpetrov/ratesweep/internal/httpclient"
	"github.com/mpetrov/ratesweep/internal/metrics"
)

const testPrompt = "explain elasticity"

func newExecutor(t *testing.T, target string, timeout time.Duration) *executor.Executor {
	t.Helper()
	exec, err := executor.New(httpclient.New(timeout, 8), target, testPrompt, 10)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return exec
}

func TestDoSuccess(t *testing.T) {
	var gotBody map[string]string
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"ok","timing":0.125}`))
	}))
	defer srv.Close()

	rec := newExecutor(t, srv.URL, 5*time.Second).Do(context.Background())

	if rec.Outcome != metrics.OutcomeSuccess {
		t.Fatalf("Outcome = %q, want success (error: %s)", rec.Outcome, rec.Error)
	}
	if rec.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", rec.StatusCode)
	}
	if rec.Latency <= 0 {
		t.Errorf("Latency = %v, want > 0", rec.Latency)
	}
	if rec.Bytes == 0 {
		t.Error("Bytes = 0, want response size")
	}
	if rec.ServerTiming != 0.125 {
		t.Errorf("ServerTiming = %v, want 0.125", rec.ServerTiming)
	}
	if gotContentType != "application/json" {
		t.Errorf("request Content-Type = %q", gotContentType)
	}
	if gotBody["prompt"] != testPrompt {
		t.Errorf("request prompt = %q, want %q", gotBody["prompt"], testPrompt)
	}
}

func TestDoHTTPErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec := newExecutor(t, srv.URL, 5*time.Second).Do(context.Background())

	if rec.Outcome != metrics.OutcomeHTTPError {
		t.Fatalf("Outcome = %q, want http_error", rec.Outcome)
	}
	if rec.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", rec.StatusCode)
	}
	if rec.Error == "" {
		t.Error("Error is empty, want a failure description")
	}
}

func TestDoHTTPErrorOnMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	rec := newExecutor(t, srv.URL, 5*time.Second).Do(context.Background())

	if rec.Outcome != metrics.OutcomeHTTPError {
		t.Fatalf("Outcome = %q, want http_error for 2xx with invalid JSON", rec.Outcome)
	}
	if rec.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", rec.StatusCode)
	}
}

func TestDoTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	rec := newExecutor(t, srv.URL, 50*time.Millisecond).Do(context.Background())

	if rec.Outcome != metrics.OutcomeTimeout {
		t.Fatalf("Outcome = %q, want timeout (error: %s)", rec.Outcome, rec.Error)
	}
	if rec.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 on timeout", rec.StatusCode)
	}
}

func TestDoConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	rec := newExecutor(t, target, 5*time.Second).Do(context.Background())

	if rec.Outcome != metrics.OutcomeConnectionError {
		t.Fatalf("Outcome = %q, want connection_error (error: %s)", rec.Outcome, rec.Error)
	}
	if rec.Error == "" {
		t.Error("Error is empty, want dial failure text")
	}
}

func TestDoContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	rec := newExecutor(t, srv.URL, 5*time.Second).Do(ctx)

	if rec.Outcome != metrics.OutcomeTimeout {
		t.Fatalf("Outcome = %q, want timeout on context deadline", rec.Outcome)
	}
}
