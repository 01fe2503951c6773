package metrics

import (
	"sort"
	"strconv"
	"time"
)

// RatePointResult is the aggregate for one fixed-duration run at a single
// target rate. Produced once by Collector.Finalize and read-only afterwards,
// except for ScheduleNotHonored which the orchestrator sets when dispatch
// skew exceeded the configured bound.
type RatePointResult struct {
	Rate     float64
	Duration time.Duration
	Issued   int64
	// Completed counts requests that received an HTTP response, whatever
	// the status; transport failures and abandoned requests are excluded.
	Completed       int64
	Success         int64
	HTTPError       int64
	Timeout         int64
	ConnectionError int64
	Abandoned       int64

	LatencyMin  time.Duration
	LatencyMean time.Duration
	LatencyP50  time.Duration
	LatencyP90  time.Duration
	LatencyP95  time.Duration
	LatencyP99  time.Duration
	LatencyMax  time.Duration

	SkewP99 time.Duration
	SkewMax time.Duration

	// Throughput is completed requests divided by the measured duration.
	Throughput float64

	StatusCodes map[int]int64

	ScheduleNotHonored bool
}

// Failed counts every issued request that did not end in a 2xx response.
func (r RatePointResult) Failed() int64 {
	return r.HTTPError + r.Timeout + r.ConnectionError + r.Abandoned
}

// FailureRate is Failed over Issued, 0 when nothing was issued.
func (r RatePointResult) FailureRate() float64 {
	if r.Issued == 0 {
		return 0
	}
	return float64(r.Failed()) / float64(r.Issued)
}

// StatusBucket is one status code with its observed count.
type StatusBucket struct {
	Code  int
	Count int64
}

// StatusBuckets returns the status code counts sorted by descending count,
// then ascending code for stability.
func (r RatePointResult) StatusBuckets() []StatusBucket {
	if len(r.StatusCodes) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0, len(r.StatusCodes))
	for code, count := range r.StatusCodes {
		rows = append(rows, StatusBucket{Code: code, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

// FormatRate renders a rate without trailing zeros, for filenames and labels.
func FormatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}
