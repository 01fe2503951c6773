// Package executor issues single measured requests against the target
// endpoint and classifies their outcomes.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpetrov/ratesweep/internal/metrics"
	"github.com/mpetrov/ratesweep/internal/tracing"

	"github.com/tidwall/gjson"
)

const maxBodyReadSize = 1024 * 1024

// Executor performs one POST per Do call against a fixed target with a fixed
// payload. It is safe for concurrent use; all mutable state is per-call.
type Executor struct {
	client    *http.Client
	target    string
	body      []byte
	rate      float64
	tracer    trace.Tracer
	propagate bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithTracing attaches a tracer so each request carries a client span.
// When propagate is set, W3C trace context headers are injected so the
// target service can join the trace.
func WithTracing(tracer trace.Tracer, propagate bool) Option {
	return func(e *Executor) {
		e.tracer = tracer
		e.propagate = propagate
	}
}

// New builds an Executor that POSTs {"prompt": prompt} to target. The JSON
// body is marshaled once here so the dispatch path does no encoding work.
func New(client *http.Client, target, prompt string, rate float64, opts ...Option) (*Executor, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, err
	}
	e := &Executor{
		client: client,
		target: target,
		body:   body,
		rate:   rate,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Do issues one request and returns a fully classified record. It never
// panics and never returns early without a record; every failure mode maps
// to one of the outcome classes.
func (e *Executor) Do(ctx context.Context) metrics.Record {
	rec := metrics.Record{DispatchedAt: time.Now()}

	var span trace.Span
	if e.tracer != nil {
		ctx, span = tracing.StartRequestSpan(ctx, e.tracer, e.target, e.rate)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.target, bytes.NewReader(e.body))
	if err != nil {
		rec = e.finish(rec, metrics.OutcomeConnectionError, 0, 0, 0, err)
		e.endSpan(span, rec, err)
		return rec
	}
	req.Header.Set("Content-Type", "application/json")
	if span != nil && e.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		rec = e.finish(rec, classifyTransportError(err), 0, 0, 0, err)
		e.endSpan(span, rec, err)
		return rec
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadSize))
	if readErr != nil {
		rec = e.finish(rec, classifyTransportError(readErr), resp.StatusCode, int64(len(body)), 0, readErr)
		e.endSpan(span, rec, readErr)
		return rec
	}

	outcome := metrics.OutcomeSuccess
	var cause error
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		outcome = metrics.OutcomeHTTPError
		cause = &HTTPError{StatusCode: resp.StatusCode}
	} else if !gjson.ValidBytes(body) {
		// 2xx with an unparseable body counts against the service, not
		// the network.
		outcome = metrics.OutcomeHTTPError
		cause = errors.New("response body is not valid JSON")
	}

	var serverTiming float64
	if outcome == metrics.OutcomeSuccess {
		if timing := gjson.GetBytes(body, "timing"); timing.Exists() {
			serverTiming = timing.Float()
		}
	}

	rec = e.finish(rec, outcome, resp.StatusCode, int64(len(body)), serverTiming, cause)
	e.endSpan(span, rec, cause)
	return rec
}

func (e *Executor) finish(rec metrics.Record, outcome metrics.Outcome, status int, bytes int64, serverTiming float64, err error) metrics.Record {
	rec.CompletedAt = time.Now()
	rec.Latency = rec.CompletedAt.Sub(rec.DispatchedAt)
	rec.Outcome = outcome
	rec.StatusCode = status
	rec.Bytes = bytes
	rec.ServerTiming = serverTiming
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

func (e *Executor) endSpan(span trace.Span, rec metrics.Record, err error) {
	if span == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ratesweep.outcome", string(rec.Outcome)),
		attribute.Int64("http.response.body.size", rec.Bytes),
	}
	if rec.StatusCode > 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", rec.StatusCode))
	}
	tracing.EndSpan(span, err, attrs...)
}

// classifyTransportError maps a transport failure to timeout or
// connection_error. Deadline expiry in any layer counts as a timeout; all
// other transport failures mean the request may never have reached the
// server.
func classifyTransportError(err error) metrics.Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return metrics.OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeConnectionError
}
