// Package threshold parses and evaluates performance assertions against
// rate point results.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mpetrov/ratesweep/internal/metrics"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "latency", "failed"
	Aggregate string  // e.g., "p99", "avg", "rate"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // the value to compare against
	Raw       string  // original threshold string for display
}

// Result represents the outcome of evaluating a threshold against one
// rate point.
type Result struct {
	Threshold Threshold
	Rate      float64
	Actual    float64
	Pass      bool
	Message   string
}

// Evaluator evaluates thresholds against rate point results.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate checks all thresholds against one rate point's result.
func (e *Evaluator) Evaluate(res metrics.RatePointResult) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, evaluateOne(t, res))
	}
	return results
}

func evaluateOne(t Threshold, res metrics.RatePointResult) Result {
	actual, err := extractMetricValue(t, res)
	if err != nil {
		return Result{
			Threshold: t,
			Rate:      res.Rate,
			Pass:      false,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	return Result{
		Threshold: t,
		Rate:      res.Rate,
		Actual:    actual,
		Pass:      pass,
		Message: fmt.Sprintf("%s [%s rps] %s: %.2f %s %.2f",
			status, metrics.FormatRate(res.Rate), t.Raw, actual, t.Operator, t.Value),
	}
}

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
//   - "latency:p99 < 500"      (latency percentile in ms)
//   - "latency:avg < 200"      (average latency in ms)
//   - "failed:rate < 0.01"     (failure rate as decimal, abandoned included)
//   - "failed:count < 10"      (failure count)
//   - "requests:rate > 100"    (achieved throughput in rps)
//   - "skew:p99 < 50"          (dispatch skew in ms)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	pattern := regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)
	matches := pattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected metric:aggregate operator value, e.g. 'latency:p99 < 500')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]

	value, err := strconv.ParseFloat(matches[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", matches[4], err)
	}

	if !isValidMetric(metric) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: latency, failed, requests, skew)", metric)
	}
	if !isValidAggregate(aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: p50, p90, p95, p99, avg, min, max, rate, count)", aggregate)
	}
	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings, collecting every error.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errs []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errs = append(errs, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errs, "; "))
	}
	return result, nil
}

func isValidMetric(metric string) bool {
	switch metric {
	case "latency", "failed", "requests", "skew":
		return true
	}
	return false
}

func isValidAggregate(aggregate string) bool {
	switch aggregate {
	case "p50", "p90", "p95", "p99", "avg", "min", "max", "rate", "count":
		return true
	}
	return false
}

func isValidOperator(operator string) bool {
	switch operator {
	case "<", "<=", ">", ">=", "==":
		return true
	}
	return false
}

func extractMetricValue(t Threshold, res metrics.RatePointResult) (float64, error) {
	switch t.Metric {
	case "latency":
		return extractLatencyMetric(t.Aggregate, res)
	case "failed":
		return extractFailureMetric(t.Aggregate, res)
	case "requests":
		return extractRequestMetric(t.Aggregate, res)
	case "skew":
		return extractSkewMetric(t.Aggregate, res)
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractLatencyMetric(aggregate string, res metrics.RatePointResult) (float64, error) {
	switch aggregate {
	case "p50":
		return millis(res.LatencyP50), nil
	case "p90":
		return millis(res.LatencyP90), nil
	case "p95":
		return millis(res.LatencyP95), nil
	case "p99":
		return millis(res.LatencyP99), nil
	case "avg":
		return millis(res.LatencyMean), nil
	case "min":
		return millis(res.LatencyMin), nil
	case "max":
		return millis(res.LatencyMax), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for latency", aggregate)
	}
}

func extractFailureMetric(aggregate string, res metrics.RatePointResult) (float64, error) {
	switch aggregate {
	case "count":
		return float64(res.Failed()), nil
	case "rate":
		return res.FailureRate(), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for failed (use 'count' or 'rate')", aggregate)
	}
}

func extractRequestMetric(aggregate string, res metrics.RatePointResult) (float64, error) {
	switch aggregate {
	case "count":
		return float64(res.Completed), nil
	case "rate":
		return res.Throughput, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for requests (use 'count' or 'rate')", aggregate)
	}
}

func extractSkewMetric(aggregate string, res metrics.RatePointResult) (float64, error) {
	switch aggregate {
	case "p99":
		return millis(res.SkewP99), nil
	case "max":
		return millis(res.SkewMax), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for skew (use 'p99' or 'max')", aggregate)
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func compareValues(actual float64, operator string, expected float64) bool {
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
