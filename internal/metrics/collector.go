package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector accumulates Records for a single rate point in a thread-safe
// manner. It is finalized exactly once, after the drain phase; records
// arriving later (completions of abandoned requests) are dropped.
type Collector struct {
	mu          sync.Mutex
	lat         *hdrhistogram.Histogram
	skew        *hdrhistogram.Histogram
	counts      map[Outcome]int64
	statusCodes map[int]int64
	minLatency  time.Duration
	maxLatency  time.Duration
	sumLatency  time.Duration
	measured    int64 // records contributing to latency stats (success + http_error)
	records     []Record
	keepRecords bool
	finalized   bool
}

// NewCollector creates a Collector. When keepRecords is true every Record is
// retained in arrival order so the reporter can flush raw per-request rows.
func NewCollector(keepRecords bool) *Collector {
	// Latency and skew tracked from 1µs to 10min with 3 significant figures,
	// comfortably above the default 300s request timeout.
	return &Collector{
		lat:         hdrhistogram.New(1, 600_000_000, 3),
		skew:        hdrhistogram.New(1, 600_000_000, 3),
		counts:      make(map[Outcome]int64),
		statusCodes: make(map[int]int64),
		keepRecords: keepRecords,
	}
}

// Record appends one completed request. Safe for concurrent use.
func (c *Collector) Record(rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finalized {
		return
	}

	c.counts[rec.Outcome]++
	if rec.StatusCode != 0 {
		c.statusCodes[rec.StatusCode]++
	}

	// Percentiles cover only records that carried a real response
	// (success and http_error); timeouts and connection failures would
	// otherwise skew the latency distribution toward the timeout bound.
	if rec.Outcome == OutcomeSuccess || rec.Outcome == OutcomeHTTPError {
		_ = c.lat.RecordValue(clampMicros(c.lat, rec.Latency.Microseconds()))
		c.sumLatency += rec.Latency
		if c.measured == 0 || rec.Latency < c.minLatency {
			c.minLatency = rec.Latency
		}
		if rec.Latency > c.maxLatency {
			c.maxLatency = rec.Latency
		}
		c.measured++
	}

	if rec.Skew > 0 {
		_ = c.skew.RecordValue(clampMicros(c.skew, rec.Skew.Microseconds()))
	}

	if c.keepRecords {
		c.records = append(c.records, rec)
	}
}

// Counts returns a progress snapshot: requests that received an HTTP
// response, successes, and failures of any kind recorded so far. Transport
// failures count as failed but never as completed.
func (c *Collector) Counts() (completed, success, failed int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for outcome, n := range c.counts {
		switch outcome {
		case OutcomeSuccess:
			completed += n
			success += n
		case OutcomeHTTPError:
			completed += n
			failed += n
		default:
			failed += n
		}
	}
	return completed, success, failed
}

// Records returns the retained raw records. Call after Finalize.
func (c *Collector) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Finalize computes the RatePointResult from everything recorded so far and
// seals the collector. Requests issued but never recorded are counted as
// abandoned. The result is deterministic regardless of record arrival order.
func (c *Collector) Finalize(rate float64, duration time.Duration, issued int64) RatePointResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.finalized = true

	var recorded int64
	for _, n := range c.counts {
		recorded += n
	}
	abandoned := c.counts[OutcomeAbandoned] + issued - recorded
	if abandoned < 0 {
		abandoned = 0
	}

	// Completed means the request received an HTTP response. Timeouts,
	// connection failures and abandoned requests are not completions, so a
	// fully refusing target reports completed = 0 and zero throughput.
	completed := c.counts[OutcomeSuccess] + c.counts[OutcomeHTTPError]

	res := RatePointResult{
		Rate:            rate,
		Duration:        duration,
		Issued:          issued,
		Completed:       completed,
		Success:         c.counts[OutcomeSuccess],
		HTTPError:       c.counts[OutcomeHTTPError],
		Timeout:         c.counts[OutcomeTimeout],
		ConnectionError: c.counts[OutcomeConnectionError],
		Abandoned:       abandoned,
		LatencyMin:      c.minLatency,
		LatencyMax:      c.maxLatency,
		StatusCodes:     make(map[int]int64, len(c.statusCodes)),
	}
	for code, n := range c.statusCodes {
		res.StatusCodes[code] = n
	}

	if c.measured > 0 {
		res.LatencyMean = time.Duration(int64(c.sumLatency) / c.measured)
	}
	if c.lat.TotalCount() > 0 {
		res.LatencyP50 = time.Duration(c.lat.ValueAtQuantile(50)) * time.Microsecond
		res.LatencyP90 = time.Duration(c.lat.ValueAtQuantile(90)) * time.Microsecond
		res.LatencyP95 = time.Duration(c.lat.ValueAtQuantile(95)) * time.Microsecond
		res.LatencyP99 = time.Duration(c.lat.ValueAtQuantile(99)) * time.Microsecond
	}
	if c.skew.TotalCount() > 0 {
		res.SkewP99 = time.Duration(c.skew.ValueAtQuantile(99)) * time.Microsecond
		res.SkewMax = time.Duration(c.skew.Max()) * time.Microsecond
	}
	if duration > 0 {
		res.Throughput = float64(completed) / duration.Seconds()
	}

	return res
}

func clampMicros(h *hdrhistogram.Histogram, us int64) int64 {
	if us < h.LowestTrackableValue() {
		return h.LowestTrackableValue()
	}
	if us > h.HighestTrackableValue() {
		return h.HighestTrackableValue()
	}
	return us
}
