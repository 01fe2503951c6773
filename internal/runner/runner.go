package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/mpetrov/ratesweep/internal/config"
	"github.com/mpetrov/ratesweep/internal/metrics"
	"github.com/mpetrov/ratesweep/internal/schedule"
)

// Phase is the lifecycle state of a rate point run. Transitions are strictly
// forward: Scheduling, Dispatching, Draining, Finalized.
type Phase int32

const (
	PhaseScheduling Phase = iota
	PhaseDispatching
	PhaseDraining
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseScheduling:
		return "scheduling"
	case PhaseDispatching:
		return "dispatching"
	case PhaseDraining:
		return "draining"
	case PhaseFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Runner drives one rate point: it materializes the dispatch schedule, fires
// requests open-loop at the scheduled instants, then drains and finalizes.
// A Runner is single-use.
type Runner struct {
	opt    Options
	phase  atomic.Int32
	issued atomic.Int64
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// Phase reports the current lifecycle state. Safe to call from other
// goroutines while Run is in progress.
func (r *Runner) Phase() Phase {
	return Phase(r.phase.Load())
}

// Issued reports how many measured requests have been dispatched so far.
func (r *Runner) Issued() int64 {
	return r.issued.Load()
}

// Run executes the rate point to completion and returns the aggregated
// result. Completions never gate the dispatch schedule: a slow target makes
// requests pile up against the concurrency bound instead of slowing the
// clock. Cancelling ctx stops dispatch and drain early; whatever was
// collected so far is still finalized.
func (r *Runner) Run(ctx context.Context) metrics.RatePointResult {
	plan := r.buildPlan()
	sem := newSemaphore(r.opt.Concurrency)

	if r.opt.Warmup > 0 {
		r.warm(ctx, sem)
	}

	var wg sync.WaitGroup
	r.phase.Store(int32(PhaseDispatching))
	start := time.Now()

	for _, offset := range plan.Offsets {
		if ctx.Err() != nil {
			break
		}
		ideal := start.Add(offset)
		sleepUntil(ctx, ideal)
		if err := sem.acquire(ctx); err != nil {
			break
		}
		// Skew includes any wait on the concurrency bound; a saturated
		// target shows up here, not as a stretched schedule.
		skew := time.Since(ideal)
		if skew < 0 {
			skew = 0
		}
		r.issued.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.release()
			rec := r.opt.Executor.Do(ctx)
			rec.Skew = skew
			r.opt.Collector.Record(rec)
		}()
	}

	r.phase.Store(int32(PhaseDraining))
	r.drain(ctx, &wg)

	result := r.opt.Collector.Finalize(r.opt.Rate, r.opt.Duration, r.issued.Load())
	r.phase.Store(int32(PhaseFinalized))
	return result
}

func (r *Runner) buildPlan() schedule.Plan {
	if r.opt.Arrival == config.ArrivalModelPoisson {
		return schedule.Poisson(r.opt.Rate, r.opt.Duration, r.opt.PoissonSampler)
	}
	return schedule.Uniform(r.opt.Rate, r.opt.Duration)
}

// warm sends discarded traffic at the target rate so connection pools and
// server caches are primed before measurement starts. Warmup requests share
// the concurrency bound but are never recorded, counted or waited on.
func (r *Runner) warm(ctx context.Context, sem *semaphore) {
	limiter := rate.NewLimiter(rate.Limit(r.opt.Rate), 1)
	deadline := time.Now().Add(r.opt.Warmup)
	for time.Now().Before(deadline) {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if err := sem.acquire(ctx); err != nil {
			return
		}
		go func() {
			defer sem.release()
			r.opt.Executor.Do(ctx)
		}()
	}
}

// drain waits for in-flight requests, up to the grace period. Requests still
// running when the grace expires are abandoned; their late records are
// dropped by the sealed collector.
func (r *Runner) drain(ctx context.Context, wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	if r.opt.DrainGrace <= 0 {
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	timer := time.NewTimer(r.opt.DrainGrace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
	}
}

func sleepUntil(ctx context.Context, t time.Time) {
	d := time.Until(t)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
