package runner

import "context"

// semaphore bounds the number of in-flight requests. Slots are acquired on
// the dispatch path and released by the request goroutine when it finishes,
// so a saturated limiter shows up as dispatch skew rather than extra load.
type semaphore struct {
	slots chan struct{}
}

func newSemaphore(n int) *semaphore {
	if n < 1 {
		n = 1
	}
	return &semaphore{slots: make(chan struct{}, n)}
}

func (s *semaphore) acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *semaphore) release() {
	select {
	case <-s.slots:
	default:
	}
}

func (s *semaphore) inFlight() int {
	return len(s.slots)
}
