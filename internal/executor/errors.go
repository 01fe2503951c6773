package executor

import "fmt"

// HTTPError represents a response whose status code falls outside 2xx.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}
