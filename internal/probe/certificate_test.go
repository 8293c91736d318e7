package probe

import (
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var analysisReference = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func testCert(cn string, sans []string, notAfter time.Time) *x509.Certificate {
	return &x509.Certificate{
		Subject:      pkix.Name{CommonName: cn, Organization: []string{"Example Org"}},
		Issuer:       pkix.Name{CommonName: "Example CA", Country: []string{"DE"}},
		SerialNumber: big.NewInt(424242),
		Version:      3,
		NotBefore:    analysisReference.AddDate(-1, 0, 0),
		NotAfter:     notAfter,
		DNSNames:     sans,
	}
}

func TestAnalyzeCertificateValid(t *testing.T) {
	cert := testCert("example.com", []string{"example.com", "www.example.com"},
		analysisReference.AddDate(0, 0, 90))

	analysis := AnalyzeCertificate(cert, "example.com", analysisReference)

	assert.Equal(t, "example.com", analysis.CommonName)
	assert.Equal(t, "424242", analysis.SerialNumber)
	assert.Equal(t, 90, analysis.DaysUntilExpiry)
	assert.False(t, analysis.IsExpired)
	assert.False(t, analysis.ExpiresSoon)
	assert.True(t, analysis.HostnameMatch)
	assert.Equal(t, "Example Org", analysis.Subject["Organization"])
	assert.Equal(t, "Example CA", analysis.Issuer["Common Name"])
}

func TestAnalyzeCertificateExpiryWindows(t *testing.T) {
	tests := []struct {
		name        string
		notAfter    time.Time
		wantDays    int
		wantExpired bool
		wantSoon    bool
	}{
		{"long valid", analysisReference.AddDate(0, 0, 90), 90, false, false},
		{"inside renewal window", analysisReference.AddDate(0, 0, 15), 15, false, true},
		{"window edge", analysisReference.AddDate(0, 0, 30), 30, false, true},
		{"expires today", analysisReference.Add(6 * time.Hour), 0, false, true},
		{"expired half a day ago", analysisReference.Add(-12 * time.Hour), -1, true, false},
		{"long expired", analysisReference.AddDate(0, 0, -40), -40, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert := testCert("example.com", nil, tt.notAfter)
			analysis := AnalyzeCertificate(cert, "example.com", analysisReference)
			assert.Equal(t, tt.wantDays, analysis.DaysUntilExpiry)
			assert.Equal(t, tt.wantExpired, analysis.IsExpired)
			assert.Equal(t, tt.wantSoon, analysis.ExpiresSoon)
		})
	}
}

func TestParseDistinguishedName(t *testing.T) {
	dn := "CN=example.com, O=Example Org, OU=Web, L=Berlin, ST=Berlin, C=DE"
	components := ParseDistinguishedName(dn)

	assert.Equal(t, map[string]string{
		"Common Name":         "example.com",
		"Organization":        "Example Org",
		"Organizational Unit": "Web",
		"Locality":            "Berlin",
		"State/Province":      "Berlin",
		"Country":             "DE",
	}, components)
}

func TestParseDistinguishedNameSkipsMalformedParts(t *testing.T) {
	components := ParseDistinguishedName("CN=ok, garbage, =novalue, EMPTYVAL=")
	assert.Equal(t, map[string]string{"Common Name": "ok"}, components)
}

func TestHostnameMatching(t *testing.T) {
	tests := []struct {
		name     string
		hostname string
		pattern  string
		want     bool
	}{
		{"exact", "example.com", "example.com", true},
		{"case insensitive", "Example.COM", "example.com", true},
		{"trailing dot", "example.com.", "example.com", true},
		{"mismatch", "other.com", "example.com", false},
		{"wildcard one label", "www.example.com", "*.example.com", true},
		{"wildcard bare domain", "example.com", "*.example.com", true},
		{"wildcard two labels rejected", "a.b.example.com", "*.example.com", false},
		{"wildcard wrong domain", "www.other.com", "*.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchPattern(tt.hostname, tt.pattern))
		})
	}
}

func TestHostnameMatchesAgainstSANs(t *testing.T) {
	assert.True(t, HostnameMatches("api.example.com", "example.com", []string{"*.example.com"}))
	assert.False(t, HostnameMatches("api.example.com", "example.com", []string{"www.example.com"}))
	assert.False(t, HostnameMatches("", "example.com", nil))
}

func TestScoreCertificateDeterminism(t *testing.T) {
	valid := AnalyzeCertificate(
		testCert("example.com", []string{"example.com"}, analysisReference.AddDate(0, 0, 90)),
		"example.com", analysisReference)
	score := ScoreCertificate(valid, nil)
	assert.Equal(t, 100, score.Score)
	assert.Equal(t, "A+", score.Grade)
	assert.Empty(t, score.Issues)

	expired := AnalyzeCertificate(
		testCert("example.com", []string{"example.com"}, analysisReference.AddDate(0, 0, -10)),
		"example.com", analysisReference)
	score = ScoreCertificate(expired, nil)
	assert.Equal(t, 50, score.Score)
	assert.Equal(t, "D", score.Grade)
	assert.Contains(t, score.Issues, "Certificate expired")
}

func TestScoreCertificateDeductions(t *testing.T) {
	base := CertificateAnalysis{HostnameMatch: true}

	tests := []struct {
		name      string
		analysis  CertificateAnalysis
		conn      *ConnectionInfo
		wantScore int
		wantGrade string
	}{
		{"perfect", base, nil, 100, "A+"},
		{"expiring soon", CertificateAnalysis{ExpiresSoon: true, HostnameMatch: true}, nil, 90, "A+"},
		{"mismatch", CertificateAnalysis{}, nil, 80, "A-"},
		{"expired and mismatched", CertificateAnalysis{IsExpired: true}, nil, 30, "F"},
		{"old protocol", base, &ConnectionInfo{Version: tls.VersionTLS10, CipherSuite: tls.TLS_AES_128_GCM_SHA256}, 85, "A"},
		{"weak cipher", base, &ConnectionInfo{Version: tls.VersionTLS12, CipherSuite: tls.TLS_RSA_WITH_RC4_128_SHA}, 90, "A+"},
		{"old protocol and weak cipher", base, &ConnectionInfo{Version: tls.VersionTLS10, CipherSuite: tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA}, 75, "B"},
		{
			"every deduction at once",
			CertificateAnalysis{IsExpired: true},
			&ConnectionInfo{Version: tls.VersionTLS10, CipherSuite: tls.TLS_RSA_WITH_RC4_128_SHA},
			5, "F",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := ScoreCertificate(tt.analysis, tt.conn)
			assert.Equal(t, tt.wantScore, score.Score)
			assert.Equal(t, tt.wantGrade, score.Grade)
		})
	}
}

func TestScoreClampsAtZero(t *testing.T) {
	// not reachable with current weights singly, but the clamp is contract
	score := ScoreCertificate(CertificateAnalysis{IsExpired: true}, &ConnectionInfo{
		Version:     tls.VersionTLS10,
		CipherSuite: tls.TLS_RSA_WITH_RC4_128_SHA,
	})
	require.GreaterOrEqual(t, score.Score, 0)
}

func TestGradeScale(t *testing.T) {
	tests := []struct {
		score int
		grade string
	}{
		{100, "A+"}, {90, "A+"}, {89, "A"}, {85, "A"}, {84, "A-"}, {80, "A-"},
		{79, "B"}, {70, "B"}, {69, "C"}, {60, "C"}, {59, "D"}, {50, "D"},
		{49, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.grade, gradeForScore(tt.score), "score %d", tt.score)
	}
}
