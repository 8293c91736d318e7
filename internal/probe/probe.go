// Package probe implements the independent network checks performed against a
// single host (and optionally port): DNS resolution, TCP connect, HTTP
// liveness, TLS certificate retrieval and ICMP echo. Each prober is stateless
// and returns a structured result; failures are reported as data, never as
// panics, so that one probe can never take down its siblings.
package probe

import (
	"fmt"
	"time"
)

// ErrorKind classifies why a probe failed. Kinds are carried inside results
// and never propagate as Go errors past the probe boundary.
type ErrorKind string

const (
	KindDNSResolution          ErrorKind = "dns_resolution"
	KindConnectionRefused      ErrorKind = "connection_refused"
	KindConnectionTimeout      ErrorKind = "connection_timeout"
	KindCertificateUnavailable ErrorKind = "certificate_unavailable"
	KindCertificateParse       ErrorKind = "certificate_parse"
	KindSubprocessUnavailable  ErrorKind = "subprocess_unavailable"
	KindUnexpected             ErrorKind = "unexpected"
)

// Result carries the fields shared by every probe kind.
//
// Invariant: Success==true implies Error is empty, Success==false implies
// Error is non-empty. Use ok/fail helpers instead of filling fields by hand.
type Result struct {
	Success        bool      `json:"success"`
	ResponseTimeMS float64   `json:"response_time_ms"`
	Error          string    `json:"error,omitempty"`
	ErrorKind      ErrorKind `json:"error_kind,omitempty"`
}

func ok(elapsed time.Duration) Result {
	return Result{Success: true, ResponseTimeMS: millis(elapsed)}
}

func fail(kind ErrorKind, elapsed time.Duration, format string, args ...interface{}) Result {
	return Result{
		Success:        false,
		ResponseTimeMS: millis(elapsed),
		Error:          fmt.Sprintf(format, args...),
		ErrorKind:      kind,
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Config is the shared client configuration handed to every prober. It is
// constructed once per orchestrator run and passed down explicitly; probers
// hold no hidden lazily-initialized state.
type Config struct {
	Timeout   time.Duration
	UserAgent string
}

// DefaultTimeout is used when Config.Timeout is zero.
const DefaultTimeout = 5 * time.Second

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c Config) userAgent() string {
	if c.UserAgent == "" {
		return "netprobe/1.0 (network reachability prober)"
	}
	return c.UserAgent
}
