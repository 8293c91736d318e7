package probe

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTLSProberHandshake(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	host, portStr, err := net.SplitHostPort(server.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	prober := &TLSProber{Config: Config{Timeout: 2 * time.Second}}
	result := prober.Check(context.Background(), host, uint16(port))

	require.True(t, result.Success, result.Error)
	assert.NotEmpty(t, result.TLSVersion)
	assert.NotEmpty(t, result.CipherSuite)

	require.NotNil(t, result.Certificate)
	assert.False(t, result.Certificate.IsExpired)

	require.NotNil(t, result.Score)
	assert.GreaterOrEqual(t, result.Score.Score, 0)
	assert.LessOrEqual(t, result.Score.Score, 100)
	assert.NotEmpty(t, result.Score.Grade)
}

func TestTLSProberNoServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, portStr, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	require.NoError(t, listener.Close())
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	prober := &TLSProber{Config: Config{Timeout: time.Second}}
	result := prober.Check(context.Background(), "127.0.0.1", uint16(port))

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Nil(t, result.Certificate)
}

func TestTLSVersionName(t *testing.T) {
	assert.Equal(t, "TLS 1.2", TLSVersionName(tls.VersionTLS12))
	assert.Equal(t, "TLS 1.3", TLSVersionName(tls.VersionTLS13))
	assert.Contains(t, TLSVersionName(0x0300), "unknown")
}
