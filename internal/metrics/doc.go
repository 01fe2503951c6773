// Package metrics collects per-request records during a rate point and
// aggregates them into a RatePointResult.
//
// The central [Collector] type receives one [Record] per finished request
// from concurrent executor goroutines:
//
//	collector := metrics.NewCollector(true)
//	collector.Record(rec)
//
// Once the drain phase ends, the orchestrator calls [Collector.Finalize]
// exactly once. Requests issued but never recorded are counted as abandoned,
// and any record arriving after finalization is discarded. A request counts
// as completed only when the server produced an HTTP response; transport
// failures stay in their own outcome buckets.
//
// # Thread Safety
//
// Record, Counts and Records are safe for concurrent use. The critical
// section is a single mutex kept deliberately small so completions never
// back-pressure the pacing loop.
//
// # Percentiles
//
// Latency percentiles are backed by an HdrHistogram and cover only records
// that carried a real HTTP response (success and http_error outcomes).
// Dispatch skew is tracked in a second histogram.
package metrics
