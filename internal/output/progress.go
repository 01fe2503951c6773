package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/mpetrov/ratesweep/internal/metrics"
)

// ProgressReporter displays live progress for the rate point in flight.
type ProgressReporter struct {
	collector *metrics.Collector
	rate      float64
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	start     time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(collector *metrics.Collector, rate float64, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		rate:      rate,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
		start:     time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and clears the progress line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprint(p.writer, "\r")
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			completed, success, failed := p.collector.Counts()
			elapsed := time.Since(p.start).Seconds()
			achieved := 0.0
			if elapsed > 0 {
				achieved = float64(completed) / elapsed
			}
			fmt.Fprintf(p.writer, "\r[%s rps] Completed: %d | Success: %d | Failed: %d | Achieved: %.1f rps",
				metrics.FormatRate(p.rate), completed, success, failed, achieved)
		case <-p.done:
			return
		}
	}
}
