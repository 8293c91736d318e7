package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/nvquang/netprobe/internal/scan"
)

// writeJSON emits the batch in the flat export form, indented for humans and
// stable for machines.
func writeJSON(w io.Writer, batch *scan.BatchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(batch.Export())
}

var csvHeader = []string{
	"host", "port", "service",
	"dns_ipv4", "dns_ipv6",
	"tcp_status", "tcp_time_ms",
	"http_status_code", "http_time_ms",
	"ssl_grade", "ssl_score", "ssl_days_until_expiry",
	"icmp_success", "icmp_time_ms",
	"scan_duration_ms", "error",
}

// writeCSV emits one row per (host, port). Host-level results (DNS, ICMP,
// duration) repeat on every row of that host; a degraded host produces a
// single row with the error column set.
func writeCSV(w io.Writer, batch *scan.BatchResult) error {
	out := csv.NewWriter(w)
	if err := out.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range batch.Results {
		if r.Err != "" {
			row := emptyCSVRow(r.Host)
			row[len(row)-1] = r.Err
			if err := out.Write(row); err != nil {
				return err
			}
			continue
		}
		for _, port := range r.Ports {
			if err := out.Write(csvRow(r, port)); err != nil {
				return err
			}
		}
	}

	out.Flush()
	return out.Error()
}

func emptyCSVRow(host string) []string {
	row := make([]string, len(csvHeader))
	row[0] = host
	return row
}

func csvRow(r *scan.HostScanResult, port uint16) []string {
	row := emptyCSVRow(r.Host)
	row[1] = strconv.Itoa(int(port))
	row[2] = scan.ServiceName(port)

	if r.DNS != nil {
		row[3] = strconv.FormatBool(r.DNS.IPv4.Success)
		row[4] = strconv.FormatBool(r.DNS.IPv6.Success)
	}
	if tcp := r.TCP[port]; tcp != nil {
		row[5] = string(tcp.Status)
		row[6] = formatMS(tcp.ResponseTimeMS)
	}
	if h := r.HTTP[port]; h != nil && h.Success {
		row[7] = strconv.Itoa(h.StatusCode)
		row[8] = formatMS(h.ResponseTimeMS)
	}
	if t := r.TLS[port]; t != nil && t.Success {
		if t.Score != nil {
			row[9] = t.Score.Grade
			row[10] = strconv.Itoa(t.Score.Score)
		}
		if t.Certificate != nil {
			row[11] = strconv.Itoa(t.Certificate.DaysUntilExpiry)
		}
	}
	if r.ICMP != nil {
		row[12] = strconv.FormatBool(r.ICMP.Success)
		row[13] = formatMS(r.ICMP.ResponseTimeMS)
	}
	row[14] = formatMS(r.DurationMS)
	return row
}

func formatMS(ms float64) string {
	return strconv.FormatFloat(ms, 'f', 1, 64)
}

// writePrometheus emits the batch in the Prometheus text exposition format,
// gauges only, suitable for the node-exporter textfile collector.
func writePrometheus(w io.Writer, batch *scan.BatchResult) error {
	p := promWriter{w: w}

	p.header("netprobe_dns_success", "Whether DNS resolution succeeded for the address family")
	for _, r := range batch.Results {
		if r.DNS == nil {
			continue
		}
		p.gauge("netprobe_dns_success", labels{"host": r.Host, "family": "ipv4"}, boolValue(r.DNS.IPv4.Success))
		p.gauge("netprobe_dns_success", labels{"host": r.Host, "family": "ipv6"}, boolValue(r.DNS.IPv6.Success))
	}

	p.header("netprobe_icmp_success", "Whether the host answered an ICMP echo")
	p.header("netprobe_icmp_rtt_ms", "ICMP round-trip time in milliseconds")
	for _, r := range batch.Results {
		if r.ICMP == nil {
			continue
		}
		p.gauge("netprobe_icmp_success", labels{"host": r.Host}, boolValue(r.ICMP.Success))
		if r.ICMP.Success {
			p.gauge("netprobe_icmp_rtt_ms", labels{"host": r.Host}, r.ICMP.ResponseTimeMS)
		}
	}

	p.header("netprobe_tcp_open", "Whether the TCP port accepted a connection")
	p.header("netprobe_tcp_response_ms", "TCP connect time in milliseconds")
	for _, r := range batch.Results {
		for _, port := range r.Ports {
			tcp := r.TCP[port]
			if tcp == nil {
				continue
			}
			l := labels{"host": r.Host, "port": strconv.Itoa(int(port))}
			p.gauge("netprobe_tcp_open", l, boolValue(tcp.Success))
			p.gauge("netprobe_tcp_response_ms", l, tcp.ResponseTimeMS)
		}
	}

	p.header("netprobe_http_status_code", "HTTP status code returned by the port")
	for _, r := range batch.Results {
		for _, port := range r.Ports {
			if h := r.HTTP[port]; h != nil && h.Success {
				p.gauge("netprobe_http_status_code",
					labels{"host": r.Host, "port": strconv.Itoa(int(port))}, float64(h.StatusCode))
			}
		}
	}

	p.header("netprobe_ssl_score", "Certificate security score 0-100")
	p.header("netprobe_ssl_days_until_expiry", "Days until certificate expiry (negative when expired)")
	for _, r := range batch.Results {
		for _, port := range r.Ports {
			t := r.TLS[port]
			if t == nil || !t.Success {
				continue
			}
			l := labels{"host": r.Host, "port": strconv.Itoa(int(port))}
			if t.Score != nil {
				p.gauge("netprobe_ssl_score", l, float64(t.Score.Score))
			}
			if t.Certificate != nil {
				p.gauge("netprobe_ssl_days_until_expiry", l, float64(t.Certificate.DaysUntilExpiry))
			}
		}
	}

	p.header("netprobe_scan_duration_ms", "Wall-clock duration of the host scan in milliseconds")
	for _, r := range batch.Results {
		p.gauge("netprobe_scan_duration_ms", labels{"host": r.Host}, r.DurationMS)
	}

	return p.err
}

type labels map[string]string

type promWriter struct {
	w   io.Writer
	err error
}

func (p *promWriter) header(name, help string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "# HELP %s %s\n# TYPE %s gauge\n", name, help, name)
}

func (p *promWriter) gauge(name string, l labels, value float64) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s{%s} %s\n", name, formatLabels(l), strconv.FormatFloat(value, 'g', -1, 64))
}

// formatLabels renders label pairs in a fixed order so output is diffable.
func formatLabels(l labels) string {
	ordered := []string{"host", "port", "family"}
	out := ""
	for _, key := range ordered {
		if value, present := l[key]; present {
			if out != "" {
				out += ","
			}
			out += key + `="` + value + `"`
		}
	}
	return out
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
