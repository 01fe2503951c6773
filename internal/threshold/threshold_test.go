package threshold

import (
	"strings"
	"testing"
	"time"

	"github.com/mpetrov/ratesweep/internal/metrics"
)

func testResult() metrics.RatePointResult {
	return metrics.RatePointResult{
		Rate:            100,
		Issued:          1000,
		Completed:       980,
		Success:         950,
		HTTPError:       30,
		Timeout:         8,
		ConnectionError: 2,
		Abandoned:       10,
		LatencyP50:      40 * time.Millisecond,
		LatencyP90:      120 * time.Millisecond,
		LatencyP95:      180 * time.Millisecond,
		LatencyP99:      380 * time.Millisecond,
		LatencyMean:     55 * time.Millisecond,
		LatencyMin:      10 * time.Millisecond,
		LatencyMax:      900 * time.Millisecond,
		SkewP99:         5 * time.Millisecond,
		SkewMax:         22 * time.Millisecond,
		Throughput:      98.5,
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input     string
		metric    string
		aggregate string
		operator  string
		value     float64
	}{
		{"latency:p99 < 500", "latency", "p99", "<", 500},
		{"latency:avg<=200", "latency", "avg", "<=", 200},
		{"failed:rate < 0.01", "failed", "rate", "<", 0.01},
		{"requests:rate > 90", "requests", "rate", ">", 90},
		{"skew:p99 < 50", "skew", "p99", "<", 50},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q) error = %v", tt.input, err)
			continue
		}
		if got.Metric != tt.metric || got.Aggregate != tt.aggregate || got.Operator != tt.operator || got.Value != tt.value {
			t.Errorf("Parse(%q) = %+v", tt.input, got)
		}
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	invalid := []string{
		"",
		"latency < 500",
		"latency:p99",
		"bogus:p99 < 500",
		"latency:p42 < 500",
		"latency:p99 ~ 500",
		"latency:p99 < abc",
	}
	for _, s := range invalid {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) = nil error, want failure", s)
		}
	}
}

func TestParseMultipleCollectsErrors(t *testing.T) {
	_, err := ParseMultiple([]string{"latency:p99 < 500", "nope", "also:bad x 1"})
	if err == nil {
		t.Fatal("ParseMultiple() = nil error")
	}
	if !strings.Contains(err.Error(), "threshold[1]") || !strings.Contains(err.Error(), "threshold[2]") {
		t.Errorf("error does not name each bad entry: %v", err)
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		threshold string
		pass      bool
		actual    float64
	}{
		{"latency:p99 < 500", true, 380},
		{"latency:p99 < 100", false, 380},
		{"latency:p95 < 300", true, 180},
		{"latency:avg <= 55", true, 55},
		{"failed:count < 100", true, 50},   // 30+8+2+10
		{"failed:rate < 0.01", false, 0.05},
		{"requests:rate > 90", true, 98.5},
		{"requests:count == 980", true, 980},
		{"skew:p99 < 50", true, 5},
		{"skew:max > 10", true, 22},
	}

	for _, tt := range tests {
		th, err := Parse(tt.threshold)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", tt.threshold, err)
		}
		results := NewEvaluator([]Threshold{th}).Evaluate(testResult())
		if len(results) != 1 {
			t.Fatalf("Evaluate() returned %d results", len(results))
		}
		r := results[0]
		if r.Pass != tt.pass {
			t.Errorf("%q pass = %v, want %v (actual %v)", tt.threshold, r.Pass, tt.pass, r.Actual)
		}
		if r.Actual != tt.actual {
			t.Errorf("%q actual = %v, want %v", tt.threshold, r.Actual, tt.actual)
		}
		if r.Rate != 100 {
			t.Errorf("%q rate = %v, want 100", tt.threshold, r.Rate)
		}
	}
}

func TestEvaluateEmpty(t *testing.T) {
	if got := NewEvaluator(nil).Evaluate(testResult()); got != nil {
		t.Errorf("Evaluate() with no thresholds = %v, want nil", got)
	}
}
