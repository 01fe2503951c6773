package runner

import (
	"context"
	"math/rand"
	"time"

	"github.com/mpetrov/ratesweep/internal/config"
	"github.com/mpetrov/ratesweep/internal/metrics"
)

// Executor abstracts issuing a single request. Implementations classify the
// outcome themselves; the runner never inspects responses.
type Executor interface {
	Do(ctx context.Context) metrics.Record
}

// Options configure one rate point run.
type Options struct {
	Rate        float64             // offered requests per second (required, > 0)
	Duration    time.Duration       // measured dispatch window (required, > 0)
	Warmup      time.Duration       // pre-measurement traffic, discarded
	Concurrency int                 // max in-flight requests
	DrainGrace  time.Duration       // max wait for in-flight requests after the window
	Executor    Executor            // request executor (required)
	Collector   *metrics.Collector  // sink for measured records (required)
	Arrival     config.ArrivalModel // tick spacing model, defaults to uniform

	// PoissonSampler overrides the exponential gap source, for tests.
	PoissonSampler func() float64
	RandomSeed     int64
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Warmup < 0 {
		o.Warmup = 0
	}
	if o.DrainGrace < 0 {
		o.DrainGrace = 0
	}
	if o.Arrival == "" {
		o.Arrival = config.ArrivalModelUniform
	}
	if o.PoissonSampler == nil {
		seed := o.RandomSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		seeded := rand.New(rand.NewSource(seed))
		o.PoissonSampler = seeded.ExpFloat64
	}
}
