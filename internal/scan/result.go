package scan

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nvquang/netprobe/internal/probe"
)

// HostScanResult aggregates every probe outcome for one host. The maps are
// keyed by port for lookup; Ports remains the authority on iteration order,
// which always matches the order the caller requested.
//
// The orchestrator owns a result until the scan's end time is set; after that
// it is handed to the caller and never mutated again.
type HostScanResult struct {
	Host  string   `json:"host"`
	Ports []uint16 `json:"ports"`

	DNS  *probe.DNSResult  `json:"dns,omitempty"`
	ICMP *probe.ICMPResult `json:"icmp,omitempty"`

	TCP  map[uint16]*probe.TCPResult  `json:"-"`
	HTTP map[uint16]*probe.HTTPResult `json:"-"`
	TLS  map[uint16]*probe.TLSResult  `json:"-"`

	// Err is set only when the whole host scan degraded (orchestrator
	// catch-all); the probe fields are then absent.
	Err string `json:"error,omitempty"`

	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	DurationMS float64   `json:"duration_ms"`
}

// NewHostScanResult creates an empty aggregate for a scan that is starting now.
func NewHostScanResult(host string, ports []uint16) *HostScanResult {
	return &HostScanResult{
		Host:      host,
		Ports:     append([]uint16(nil), ports...),
		TCP:       make(map[uint16]*probe.TCPResult, len(ports)),
		HTTP:      make(map[uint16]*probe.HTTPResult),
		TLS:       make(map[uint16]*probe.TLSResult),
		StartTime: time.Now(),
	}
}

func (r *HostScanResult) finish() {
	r.EndTime = time.Now()
	r.DurationMS = float64(r.EndTime.Sub(r.StartTime)) / float64(time.Millisecond)
}

// SinglePort returns the sole requested port when exactly one was requested.
// It is the back-compat projection for callers that predate multi-port scans;
// the multi-port maps stay the primary representation.
func (r *HostScanResult) SinglePort() (uint16, bool) {
	if len(r.Ports) != 1 {
		return 0, false
	}
	return r.Ports[0], true
}

// Reachable reports whether the host answered any host-level probe.
func (r *HostScanResult) Reachable() bool {
	if r.DNS != nil && (r.DNS.IPv4.Success || r.DNS.IPv6.Success) {
		return true
	}
	return r.ICMP != nil && r.ICMP.Success
}

// OpenPorts lists the ports whose TCP probe succeeded, in request order.
func (r *HostScanResult) OpenPorts() []uint16 {
	open := make([]uint16, 0, len(r.Ports))
	for _, port := range r.Ports {
		if tcp := r.TCP[port]; tcp != nil && tcp.Success {
			open = append(open, port)
		}
	}
	return open
}

// Export flattens the aggregate into the serializable shape shared by the
// JSON, CSV and Prometheus adapters:
//
//	{host, ports, dns:{ipv4,ipv6}, tcp:{port→..}, http:{port→..},
//	 ssl:{port→..}, icmp:{..}, duration_ms}
//
// Field names and nesting are a compatibility contract; renderers iterate
// Ports for deterministic ordering since JSON objects are unordered.
func (r *HostScanResult) Export() map[string]interface{} {
	out := map[string]interface{}{
		"host":        r.Host,
		"ports":       r.Ports,
		"duration_ms": r.DurationMS,
	}

	if r.Err != "" {
		out["error"] = r.Err
		return out
	}

	if r.DNS != nil {
		out["dns"] = r.DNS
	}
	if r.ICMP != nil {
		out["icmp"] = r.ICMP
	}
	if len(r.TCP) > 0 {
		out["tcp"] = portMap(r.Ports, r.TCP)
	}
	if len(r.HTTP) > 0 {
		out["http"] = portMap(r.Ports, r.HTTP)
	}
	if len(r.TLS) > 0 {
		out["ssl"] = portMap(r.Ports, r.TLS)
	}

	if port, single := r.SinglePort(); single {
		out["port"] = port
		if tcp := r.TCP[port]; tcp != nil {
			out["tcp_single"] = tcp
		}
		if httpResult := r.HTTP[port]; httpResult != nil {
			out["http_single"] = httpResult
		}
		if tlsResult := r.TLS[port]; tlsResult != nil {
			out["ssl_single"] = tlsResult
		}
	}

	return out
}

func portMap[T any](ports []uint16, results map[uint16]*T) map[string]*T {
	out := make(map[string]*T, len(results))
	for _, port := range ports {
		if result, present := results[port]; present {
			out[strconv.Itoa(int(port))] = result
		}
	}
	return out
}

// BatchResult wraps a multi-host run with its summary counters.
type BatchResult struct {
	ScanTimestamp   time.Time         `json:"scan_timestamp"`
	TotalHosts      int               `json:"total_hosts"`
	SuccessfulHosts int               `json:"successful_hosts"`
	TotalDurationMS float64           `json:"total_duration_ms"`
	Results         []*HostScanResult `json:"-"`
}

// Export produces the batch's serializable form, results keyed by host.
// A host scanned more than once keeps its first entry under the plain key;
// repeats get a #n suffix so no result is silently dropped.
func (b *BatchResult) Export() map[string]interface{} {
	results := make(map[string]interface{}, len(b.Results))
	occurrences := make(map[string]int, len(b.Results))
	for _, r := range b.Results {
		key := r.Host
		occurrences[r.Host]++
		if n := occurrences[r.Host]; n > 1 {
			key = fmt.Sprintf("%s#%d", r.Host, n)
		}
		results[key] = r.Export()
	}
	return map[string]interface{}{
		"scan_timestamp":    b.ScanTimestamp.UTC().Format(time.RFC3339),
		"total_hosts":       b.TotalHosts,
		"successful_hosts":  b.SuccessfulHosts,
		"total_duration_ms": b.TotalDurationMS,
		"results":           results,
	}
}
