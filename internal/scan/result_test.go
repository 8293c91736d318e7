package scan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvquang/netprobe/internal/probe"
)

func sampleResult(host string, ports ...uint16) *HostScanResult {
	r := NewHostScanResult(host, ports)
	r.DNS = &probe.DNSResult{
		Hostname: host,
		IPv4:     probe.FamilyResult{Result: probe.Result{Success: true}, Addresses: []string{"192.0.2.1"}, Count: 1},
	}
	for _, port := range ports {
		r.TCP[port] = &probe.TCPResult{
			Result: probe.Result{Success: true},
			Host:   host, Port: port, Status: probe.TCPOpen,
		}
	}
	r.finish()
	return r
}

func TestReachable(t *testing.T) {
	r := NewHostScanResult("down.example", nil)
	assert.False(t, r.Reachable())

	r.ICMP = &probe.ICMPResult{Result: probe.Result{Success: true}}
	assert.True(t, r.Reachable())

	r = sampleResult("up.example", 80)
	assert.True(t, r.Reachable())

	r.DNS.IPv4.Success = false
	assert.False(t, r.Reachable())
}

func TestOpenPortsPreservesRequestOrder(t *testing.T) {
	r := NewHostScanResult("h", []uint16{443, 80, 22})
	for _, port := range []uint16{22, 443} {
		r.TCP[port] = &probe.TCPResult{Result: probe.Result{Success: true}, Port: port, Status: probe.TCPOpen}
	}
	r.TCP[80] = &probe.TCPResult{Port: 80, Status: probe.TCPRefused}

	assert.Equal(t, []uint16{443, 22}, r.OpenPorts())
}

func TestSinglePort(t *testing.T) {
	_, ok := NewHostScanResult("h", []uint16{80, 443}).SinglePort()
	assert.False(t, ok)

	port, ok := NewHostScanResult("h", []uint16{8080}).SinglePort()
	require.True(t, ok)
	assert.Equal(t, uint16(8080), port)
}

func TestExportMultiPort(t *testing.T) {
	r := sampleResult("example.com", 80, 443)
	out := r.Export()

	assert.Equal(t, "example.com", out["host"])
	assert.Contains(t, out, "dns")
	assert.Contains(t, out, "tcp")
	assert.NotContains(t, out, "port")
	assert.NotContains(t, out, "tcp_single")

	tcp, ok := out["tcp"].(map[string]*probe.TCPResult)
	require.True(t, ok)
	assert.Len(t, tcp, 2)
	assert.Contains(t, tcp, "80")
	assert.Contains(t, tcp, "443")
}

func TestExportSinglePortBackCompat(t *testing.T) {
	r := sampleResult("example.com", 443)
	out := r.Export()

	assert.Equal(t, uint16(443), out["port"])
	require.Contains(t, out, "tcp_single")
	assert.Equal(t, r.TCP[443], out["tcp_single"])
	assert.Contains(t, out, "tcp")
}

func TestExportDegradedHost(t *testing.T) {
	r := sampleResult("broken.example", 80)
	r.Err = "unexpected scan failure: boom"
	out := r.Export()

	assert.Equal(t, "unexpected scan failure: boom", out["error"])
	assert.NotContains(t, out, "dns")
	assert.NotContains(t, out, "tcp")
}

func TestBatchExportKeepsDuplicateHosts(t *testing.T) {
	batch := &BatchResult{
		TotalHosts: 3,
		Results: []*HostScanResult{
			sampleResult("dup.example", 80),
			sampleResult("other.example", 80),
			sampleResult("dup.example", 443),
		},
	}

	results := batch.Export()["results"].(map[string]interface{})
	require.Len(t, results, 3)
	assert.Contains(t, results, "dup.example")
	assert.Contains(t, results, "dup.example#2")
	assert.Contains(t, results, "other.example")

	second := results["dup.example#2"].(map[string]interface{})
	assert.Equal(t, "dup.example", second["host"])
	assert.Equal(t, []uint16{443}, second["ports"])
}

func TestExportRoundTripsThroughJSON(t *testing.T) {
	batch := &BatchResult{
		TotalHosts:      1,
		SuccessfulHosts: 1,
		Results:         []*HostScanResult{sampleResult("example.com", 80)},
	}

	raw, err := json.Marshal(batch.Export())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	results, ok := decoded["results"].(map[string]interface{})
	require.True(t, ok)
	host, ok := results["example.com"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "example.com", host["host"])
	assert.Contains(t, host, "duration_ms")
}
