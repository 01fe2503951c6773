// Package runner executes a single rate point of an open-loop sweep.
//
// The runner materializes a dispatch schedule up front (uniform or Poisson
// spacing), then walks it on the wall clock: each tick acquires a slot from
// the concurrency bound and fires a request goroutine without waiting for
// any earlier request to finish. The gap between a tick's scheduled instant
// and its actual dispatch is recorded as skew, which is the primary signal
// that the generator could not honor the offered rate.
//
// A run moves through four phases:
//
//	Scheduling  -> offsets computed, nothing sent
//	Dispatching -> the measured window; warmup traffic precedes it
//	Draining    -> dispatch done, waiting out in-flight requests
//	Finalized   -> collector sealed, result available
//
// Requests still in flight when the drain grace expires are abandoned and
// counted as such in the result.
package runner
