// Package schedule computes open-loop dispatch plans: the ideal offset of
// every request in a fixed-duration run at a target rate, independent of how
// long earlier requests take to complete.
package schedule

import (
	"math"
	"time"
)

// Plan is the materialized dispatch schedule for one rate point. Offsets are
// monotonically non-decreasing, measured from the start of the measured
// window, with len(Offsets) == round(rate * duration) and at least one tick.
type Plan struct {
	Offsets []time.Duration
}

// Ticks returns the number of requests a plan for the given rate and
// duration contains. A product below one still yields a single request.
func Ticks(rate float64, duration time.Duration) int {
	n := int(math.Round(rate * duration.Seconds()))
	if n < 1 {
		n = 1
	}
	return n
}

// Uniform builds a plan with ticks evenly spaced at 1/rate starting at zero.
func Uniform(rate float64, duration time.Duration) Plan {
	n := Ticks(rate, duration)
	interval := float64(time.Second) / rate
	offsets := make([]time.Duration, n)
	for i := 0; i < n; i++ {
		offsets[i] = time.Duration(float64(i) * interval)
	}
	return Plan{Offsets: offsets}
}

// Poisson builds a plan whose inter-arrival gaps are exponentially
// distributed with mean 1/rate, approximating a Poisson arrival process.
// The tick count matches Uniform so issued totals stay comparable across
// arrival models. sample must return Exp(1) variates.
func Poisson(rate float64, duration time.Duration, sample func() float64) Plan {
	n := Ticks(rate, duration)
	offsets := make([]time.Duration, n)
	var cursor float64
	for i := 0; i < n; i++ {
		offsets[i] = time.Duration(cursor)
		gap := float64(time.Second) * sample() / rate
		if gap > math.MaxInt64-cursor {
			gap = math.MaxInt64 - cursor
		}
		cursor += gap
	}
	return Plan{Offsets: offsets}
}
