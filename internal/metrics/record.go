package metrics

import "time"

// Outcome is the closed set of terminal states for one scheduled request.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeHTTPError       Outcome = "http_error"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeConnectionError Outcome = "connection_error"
	OutcomeAbandoned       Outcome = "abandoned"
)

// Record captures everything measured about a single request. It is created
// by the executor and never mutated after being handed to the Collector.
type Record struct {
	DispatchedAt time.Time
	CompletedAt  time.Time
	Latency      time.Duration
	Outcome      Outcome
	StatusCode   int           // zero unless the server produced a response
	Bytes        int64         // response body size
	Skew         time.Duration // actual dispatch time minus ideal scheduled offset
	ServerTiming float64       // seconds, taken from the response "timing" field when present
	Error        string        // transport error text for timeout/connection_error outcomes
}

// Failed reports whether the record represents anything other than a 2xx response.
func (r Record) Failed() bool {
	return r.Outcome != OutcomeSuccess
}
