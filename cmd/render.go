package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/nvquang/netprobe/internal/scan"
)

// renderBatch writes the human-readable report: one detailed section per host
// in scan order, then a summary table when more than one host was scanned.
func renderBatch(w io.Writer, batch *scan.BatchResult, tlsEnabled bool) {
	for _, result := range batch.Results {
		renderHost(w, result, tlsEnabled)
	}
	if batch.TotalHosts > 1 {
		renderSummary(w, batch)
	}
}

func renderHost(w io.Writer, r *scan.HostScanResult, tlsEnabled bool) {
	fmt.Fprintf(w, "%s\n", colorBold("═══ "+r.Host+" ═══"))

	if r.Err != "" {
		fmt.Fprintf(w, "  %s %s\n\n", colorError("scan failed:"), r.Err)
		return
	}

	renderDNS(w, r)
	renderPorts(w, r)
	renderHTTP(w, r)
	if tlsEnabled {
		renderTLS(w, r)
	}
	renderICMP(w, r)

	fmt.Fprintf(w, "  completed in %.1fms\n\n", r.DurationMS)
}

func renderDNS(w io.Writer, r *scan.HostScanResult) {
	if r.DNS == nil {
		return
	}
	fmt.Fprintf(w, "  %s\n", colorInfo("DNS"))
	printFamily := func(label string, success bool, addresses []string, errMsg string) {
		if success {
			fmt.Fprintf(w, "    %-5s %s %s\n", label, formatCheck(true), strings.Join(addresses, ", "))
		} else {
			fmt.Fprintf(w, "    %-5s %s %s\n", label, formatCheck(false), errMsg)
		}
	}
	printFamily("IPv4", r.DNS.IPv4.Success, r.DNS.IPv4.Addresses, r.DNS.IPv4.Error)
	printFamily("IPv6", r.DNS.IPv6.Success, r.DNS.IPv6.Addresses, r.DNS.IPv6.Error)
}

func renderPorts(w io.Writer, r *scan.HostScanResult) {
	if len(r.TCP) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s\n", colorInfo("Ports"))
	fmt.Fprintf(w, "    %-7s %-14s %-9s %s\n", "PORT", "SERVICE", "STATUS", "TIME")
	for _, port := range r.Ports {
		tcp := r.TCP[port]
		if tcp == nil {
			continue
		}
		fmt.Fprintf(w, "    %-7d %-14s %-18s %.1fms\n",
			port, scan.ServiceName(port), formatTCPStatus(tcp.Status), tcp.ResponseTimeMS)
	}
}

func renderHTTP(w io.Writer, r *scan.HostScanResult) {
	if len(r.HTTP) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s\n", colorInfo("HTTP"))
	for _, port := range r.Ports {
		h := r.HTTP[port]
		if h == nil {
			continue
		}
		if !h.Success {
			fmt.Fprintf(w, "    :%-6d %s %s\n", port, formatCheck(false), h.Error)
			continue
		}
		line := fmt.Sprintf("    :%-6d %s %d %s", port, formatCheck(true), h.StatusCode, h.ReasonPhrase)
		if h.Server != "" {
			line += "  server=" + h.Server
		}
		if h.IsRedirect {
			line += "  → " + h.RedirectURL
		}
		fmt.Fprintf(w, "%s  security headers %d/6\n", line, h.SecurityHeaders.PresentCount)
	}
}

func renderTLS(w io.Writer, r *scan.HostScanResult) {
	if len(r.TLS) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s\n", colorInfo("TLS"))
	for _, port := range r.Ports {
		t := r.TLS[port]
		if t == nil {
			continue
		}
		if !t.Success {
			fmt.Fprintf(w, "    :%-6d %s %s\n", port, formatCheck(false), t.Error)
			continue
		}
		fmt.Fprintf(w, "    :%-6d %s %s, %s\n", port, formatCheck(true), t.TLSVersion, t.CipherSuite)
		if cert := t.Certificate; cert != nil {
			expiry := fmt.Sprintf("expires %s (%d days)", cert.NotAfter.Format("2006-01-02"), cert.DaysUntilExpiry)
			if cert.IsExpired {
				expiry = colorError(fmt.Sprintf("EXPIRED %s", cert.NotAfter.Format("2006-01-02")))
			} else if cert.ExpiresSoon {
				expiry = colorWarn(expiry)
			}
			fmt.Fprintf(w, "            CN=%s  %s  hostname match %s\n",
				cert.CommonName, expiry, formatCheck(cert.HostnameMatch))
		}
		if score := t.Score; score != nil {
			fmt.Fprintf(w, "            grade %s (%d/100)", formatGrade(score.Grade), score.Score)
			if len(score.Issues) > 0 {
				fmt.Fprintf(w, "  issues: %s", strings.Join(score.Issues, "; "))
			}
			fmt.Fprintln(w)
		}
	}
}

func renderICMP(w io.Writer, r *scan.HostScanResult) {
	if r.ICMP == nil {
		return
	}
	fmt.Fprintf(w, "  %s\n", colorInfo("ICMP"))
	if r.ICMP.Success {
		fmt.Fprintf(w, "    %s %.1fms via %s\n", formatCheck(true), r.ICMP.ResponseTimeMS, r.ICMP.Method)
	} else {
		fmt.Fprintf(w, "    %s %s\n", formatCheck(false), r.ICMP.Error)
	}
}

func renderSummary(w io.Writer, batch *scan.BatchResult) {
	fmt.Fprintf(w, "%s\n", colorBold("═══ Summary ═══"))
	fmt.Fprintf(w, "  %-30s %-5s %-5s %-6s %s\n", "HOST", "DNS", "ICMP", "OPEN", "TIME")
	for _, r := range batch.Results {
		if r.Err != "" {
			fmt.Fprintf(w, "  %-30s %s\n", r.Host, colorError("scan failed"))
			continue
		}
		dnsOK := r.DNS != nil && (r.DNS.IPv4.Success || r.DNS.IPv6.Success)
		icmpOK := r.ICMP != nil && r.ICMP.Success
		fmt.Fprintf(w, "  %-30s %-14s %-14s %-6d %.1fms\n",
			r.Host, formatCheck(dnsOK), formatCheck(icmpOK), len(r.OpenPorts()), r.DurationMS)
	}
	fmt.Fprintf(w, "  %d/%d hosts reachable, %.1fms total\n\n",
		batch.SuccessfulHosts, batch.TotalHosts, batch.TotalDurationMS)
}

// renderMonitorSummary prints the end-of-session uptime report.
func renderMonitorSummary(w io.Writer, summaries []scan.HostSummary) {
	fmt.Fprintf(w, "\n%s\n", colorBold("═══ Monitoring summary ═══"))
	fmt.Fprintf(w, "  %-30s %-8s %-8s %s\n", "HOST", "CHECKS", "UP", "UPTIME")
	for _, s := range summaries {
		fmt.Fprintf(w, "  %-30s %-8d %-8d %s\n",
			s.Host, s.Checks, s.Successful, formatUptime(s.UptimePercent))
	}
}

func formatPercent(percent float64) string {
	return fmt.Sprintf("%.1f%%", percent)
}
