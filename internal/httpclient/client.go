// Package httpclient builds the shared *http.Client used by every request in
// a sweep. The transport is tuned for sustained load against a single host.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// New returns a client with a per-request timeout and a connection pool
// sized so idle-connection churn does not distort latency at high rates.
// maxConns should match the sweep's concurrency bound; values below the
// default keep the default.
func New(timeout time.Duration, maxConns int) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	idlePerHost := 64
	if maxConns > idlePerHost {
		idlePerHost = maxConns
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          idlePerHost * 2,
		MaxIdleConnsPerHost:   idlePerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
