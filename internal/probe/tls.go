package probe

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"
)

// TLSResult is the outcome of a TLS handshake plus certificate analysis.
type TLSResult struct {
	Result
	Host        string               `json:"host"`
	Port        uint16               `json:"port"`
	TLSVersion  string               `json:"tls_version,omitempty"`
	CipherSuite string               `json:"cipher_suite,omitempty"`
	Certificate *CertificateAnalysis `json:"certificate,omitempty"`
	Score       *SecurityScore       `json:"security_score,omitempty"`
}

// TLSProber opens a TLS connection and grades the peer certificate.
//
// The handshake deliberately skips chain verification: trust decisions belong
// to the analyzer's own rules (hostname match, validity window, transport
// strength), not to whatever happens to be in the platform trust store.
type TLSProber struct {
	Config
}

// Check performs the handshake against host:port and runs the certificate
// analyzer over the leaf certificate.
func (t *TLSProber) Check(ctx context.Context, host string, port uint16) *TLSResult {
	result := &TLSResult{Host: host, Port: port}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: t.timeout()},
		Config: &tls.Config{
			InsecureSkipVerify: true, // analyzer applies its own rules
			ServerName:         host,
		},
	}
	address := net.JoinHostPort(host, strconv.Itoa(int(port)))

	dialCtx, cancel := context.WithTimeout(ctx, t.timeout())
	defer cancel()

	start := time.Now()
	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	elapsed := time.Since(start)

	if err != nil {
		if dialCtx.Err() == context.DeadlineExceeded {
			result.Result = fail(KindConnectionTimeout, elapsed, "TLS handshake timeout after %s", t.timeout())
		} else {
			result.Result = fail(KindCertificateUnavailable, elapsed, "TLS handshake failed: %v", err)
		}
		return result
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		result.Result = fail(KindCertificateUnavailable, elapsed, "server presented no certificate")
		return result
	}

	result.Result = ok(elapsed)
	result.TLSVersion = TLSVersionName(state.Version)
	result.CipherSuite = tls.CipherSuiteName(state.CipherSuite)

	analysis := AnalyzeCertificate(state.PeerCertificates[0], host, time.Now())
	result.Certificate = &analysis

	score := ScoreCertificate(analysis, &ConnectionInfo{
		Version:     state.Version,
		CipherSuite: state.CipherSuite,
	})
	result.Score = &score

	return result
}

// TLSVersionName renders a protocol version constant for humans.
func TLSVersionName(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return "unknown (0x" + strconv.FormatUint(uint64(version), 16) + ")"
	}
}
