package probe

import (
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math"
	"strings"
	"time"
)

// expiresSoonWindow is the renewal window: a certificate inside it is still
// valid but costs score.
const expiresSoonWindowDays = 30

// dnAbbreviations maps distinguished-name component abbreviations to the long
// names used in results.
var dnAbbreviations = map[string]string{
	"CN": "Common Name",
	"O":  "Organization",
	"OU": "Organizational Unit",
	"L":  "Locality",
	"ST": "State/Province",
	"C":  "Country",
}

// CertificateAnalysis is the parsed, graded view of a peer certificate.
// It is produced by pure functions with no I/O.
type CertificateAnalysis struct {
	Subject         map[string]string `json:"subject"`
	Issuer          map[string]string `json:"issuer"`
	CommonName      string            `json:"common_name,omitempty"`
	SerialNumber    string            `json:"serial_number,omitempty"`
	Version         int               `json:"version,omitempty"`
	NotBefore       time.Time         `json:"not_before"`
	NotAfter        time.Time         `json:"not_after"`
	DaysUntilExpiry int               `json:"days_until_expiry"`
	IsExpired       bool              `json:"is_expired"`
	ExpiresSoon     bool              `json:"expires_soon"`
	HostnameMatch   bool              `json:"hostname_match"`
	SANs            []string          `json:"san_list,omitempty"`
}

// SecurityScore summarizes weighted certificate and transport signals as a
// number and a letter grade.
type SecurityScore struct {
	Score  int      `json:"score"`
	Grade  string   `json:"grade"`
	Issues []string `json:"issues"`
}

// ConnectionInfo carries the transport signals folded into the score when a
// live handshake was performed. Nil means certificate-only scoring.
type ConnectionInfo struct {
	Version     uint16
	CipherSuite uint16
}

// AnalyzeCertificate extracts and evaluates the fields of a leaf certificate
// against the hostname the caller asked for. The reference time is a
// parameter so results are deterministic under test.
func AnalyzeCertificate(cert *x509.Certificate, hostname string, now time.Time) CertificateAnalysis {
	// floor, not truncate: a certificate expired by half a day is -1, not 0
	days := int(math.Floor(cert.NotAfter.Sub(now).Hours() / 24))

	analysis := CertificateAnalysis{
		Subject:         dnComponents(cert.Subject),
		Issuer:          dnComponents(cert.Issuer),
		CommonName:      cert.Subject.CommonName,
		SerialNumber:    cert.SerialNumber.String(),
		Version:         cert.Version,
		NotBefore:       cert.NotBefore,
		NotAfter:        cert.NotAfter,
		DaysUntilExpiry: days,
		IsExpired:       days < 0,
		ExpiresSoon:     days >= 0 && days <= expiresSoonWindowDays,
		SANs:            append([]string(nil), cert.DNSNames...),
	}
	analysis.HostnameMatch = HostnameMatches(hostname, cert.Subject.CommonName, cert.DNSNames)
	return analysis
}

// ParseDistinguishedName parses a "CN=example.com, O=Example" style string
// into a component map keyed by long names.
func ParseDistinguishedName(dn string) map[string]string {
	components := make(map[string]string)
	for _, part := range strings.Split(dn, ",") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if long, known := dnAbbreviations[key]; known {
			key = long
		}
		if key != "" && value != "" {
			components[key] = value
		}
	}
	return components
}

func dnComponents(name pkix.Name) map[string]string {
	return ParseDistinguishedName(name.String())
}

// HostnameMatches reports whether the requested hostname is covered by the
// certificate's Common Name or any SAN entry.
func HostnameMatches(hostname, commonName string, sans []string) bool {
	if hostname == "" {
		return false
	}
	if commonName != "" && matchPattern(hostname, commonName) {
		return true
	}
	for _, san := range sans {
		if matchPattern(hostname, san) {
			return true
		}
	}
	return false
}

// matchPattern matches a hostname against one certificate name. A wildcard
// "*.example.com" covers one additional label under example.com, and also the
// bare example.com itself. The bare-domain fallback is a deliberate quirk
// kept from earlier behavior, looser than RFC 6125.
func matchPattern(hostname, pattern string) bool {
	hostname = strings.ToLower(strings.TrimSuffix(hostname, "."))
	pattern = strings.ToLower(strings.TrimSuffix(pattern, "."))

	if hostname == pattern {
		return true
	}

	domain, isWildcard := strings.CutPrefix(pattern, "*.")
	if !isWildcard {
		return false
	}
	if hostname == domain {
		return true
	}
	prefix, rest, found := strings.Cut(hostname, ".")
	return found && prefix != "" && rest == domain
}

// ScoreCertificate derives the security score from weighted deductions.
//
// Policy: start at 100; an expired certificate costs 50, one expiring within
// 30 days costs 10; a hostname mismatch costs 20. When transport signals are
// available, a protocol below TLS 1.2 costs 15 and a known-weak cipher suite
// costs 10. The score is clamped at 0.
func ScoreCertificate(analysis CertificateAnalysis, conn *ConnectionInfo) SecurityScore {
	score := 100
	issues := []string{}

	if analysis.IsExpired {
		score -= 50
		issues = append(issues, "Certificate expired")
	} else if analysis.ExpiresSoon {
		score -= 10
		issues = append(issues, "Certificate expires soon")
	}

	if !analysis.HostnameMatch {
		score -= 20
		issues = append(issues, "Hostname mismatch")
	}

	if conn != nil {
		if conn.Version < tls.VersionTLS12 {
			score -= 15
			issues = append(issues, "Insecure TLS version ("+TLSVersionName(conn.Version)+")")
		}
		if name, weak := weakCipherSuites[conn.CipherSuite]; weak {
			score -= 10
			issues = append(issues, "Weak cipher suite ("+name+")")
		}
	}

	if score < 0 {
		score = 0
	}

	return SecurityScore{
		Score:  score,
		Grade:  gradeForScore(score),
		Issues: issues,
	}
}

// weakCipherSuites lists negotiable suites without AEAD or with broken
// primitives.
var weakCipherSuites = map[uint16]string{
	tls.TLS_RSA_WITH_RC4_128_SHA:            "TLS_RSA_WITH_RC4_128_SHA",
	tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA:       "TLS_RSA_WITH_3DES_EDE_CBC_SHA",
	tls.TLS_RSA_WITH_AES_128_CBC_SHA:        "TLS_RSA_WITH_AES_128_CBC_SHA",
	tls.TLS_RSA_WITH_AES_256_CBC_SHA:        "TLS_RSA_WITH_AES_256_CBC_SHA",
	tls.TLS_ECDHE_ECDSA_WITH_RC4_128_SHA:    "TLS_ECDHE_ECDSA_WITH_RC4_128_SHA",
	tls.TLS_ECDHE_RSA_WITH_RC4_128_SHA:      "TLS_ECDHE_RSA_WITH_RC4_128_SHA",
	tls.TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA: "TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA",
}

func gradeForScore(score int) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 85:
		return "A"
	case score >= 80:
		return "A-"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}
