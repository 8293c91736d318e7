package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"
)

// TCPStatus classifies the outcome of a connect attempt. The distinction
// matters operationally: refused means something answered (service down),
// timeout usually means a firewall or an unreachable network.
type TCPStatus string

const (
	TCPOpen     TCPStatus = "open"
	TCPRefused  TCPStatus = "refused"
	TCPTimeout  TCPStatus = "timeout"
	TCPDNSError TCPStatus = "dns_error"
	TCPError    TCPStatus = "error"
)

// TCPResult is the outcome of a single TCP connect test.
type TCPResult struct {
	Result
	Host   string    `json:"host"`
	Port   uint16    `json:"port"`
	Status TCPStatus `json:"status"`
}

// TCPProber attempts TCP connections and classifies failures.
type TCPProber struct {
	Config
}

// Check dials host:port once. The dial is cancelled, not abandoned, when the
// timeout fires.
func (t *TCPProber) Check(ctx context.Context, host string, port uint16) *TCPResult {
	result := &TCPResult{Host: host, Port: port}

	dialer := &net.Dialer{Timeout: t.timeout()}
	address := net.JoinHostPort(host, strconv.Itoa(int(port)))

	dialCtx, cancel := context.WithTimeout(ctx, t.timeout())
	defer cancel()

	start := time.Now()
	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	elapsed := time.Since(start)

	if err != nil {
		status, kind, message := classifyDialError(err, t.timeout())
		result.Status = status
		result.Result = fail(kind, elapsed, "%s", message)
		return result
	}
	_ = conn.Close()

	result.Status = TCPOpen
	result.Result = ok(elapsed)
	return result
}

func classifyDialError(err error, timeout time.Duration) (TCPStatus, ErrorKind, string) {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return TCPDNSError, KindDNSResolution, fmt.Sprintf("DNS resolution failed: %v", dnsErr)
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return TCPRefused, KindConnectionRefused, "connection refused"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TCPTimeout, KindConnectionTimeout, fmt.Sprintf("connection timeout after %s", timeout)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return TCPTimeout, KindConnectionTimeout, fmt.Sprintf("connection timeout after %s", timeout)
	}

	return TCPError, KindUnexpected, err.Error()
}
