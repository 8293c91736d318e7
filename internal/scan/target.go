// Package scan contains the orchestration core: targets, the bounded
// fan-out/fan-in engine that runs probes against them, the per-host aggregate
// result model, and the continuous monitor loop.
package scan

import (
	"fmt"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MaxPortsPerHost bounds a single target's port set; larger requests are a
// configuration error, not something to silently truncate.
const MaxPortsPerHost = 1000

// Target is one host plus the ports requested for it. Port order is
// preserved: it drives result ordering all the way to the renderers.
type Target struct {
	Host  string   `json:"host"`
	Ports []uint16 `json:"ports"`
}

// PortRangeError reports a range whose start exceeds its end.
type PortRangeError struct {
	Spec string
}

func (e *PortRangeError) Error() string {
	return fmt.Sprintf("invalid port range %q: start greater than end", e.Spec)
}

// PortCountError reports a range or set exceeding MaxPortsPerHost.
type PortCountError struct {
	Spec  string
	Count int
}

func (e *PortCountError) Error() string {
	return fmt.Sprintf("port spec %q covers %d ports (max %d)", e.Spec, e.Count, MaxPortsPerHost)
}

// ParsePorts parses a port specification into a sorted, deduplicated set.
// Supported forms: "80", "80,443", "8000-8010", and mixes thereof.
func ParsePorts(spec string) ([]uint16, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	seen := make(map[int]struct{})
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			if err := parseRange(part, seen); err != nil {
				return nil, err
			}
		} else {
			value, err := parsePort(part)
			if err != nil {
				return nil, err
			}
			seen[value] = struct{}{}
		}
		if len(seen) > MaxPortsPerHost {
			return nil, &PortCountError{Spec: spec, Count: len(seen)}
		}
	}

	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)

	out := make([]uint16, len(ports))
	for i, p := range ports {
		out[i] = uint16(p)
	}
	return out, nil
}

func parseRange(spec string, seen map[int]struct{}) error {
	startStr, endStr, _ := strings.Cut(spec, "-")
	start, err := parsePort(startStr)
	if err != nil {
		return err
	}
	end, err := parsePort(endStr)
	if err != nil {
		return err
	}
	if start > end {
		return &PortRangeError{Spec: spec}
	}
	if end-start+1 > MaxPortsPerHost {
		return &PortCountError{Spec: spec, Count: end - start + 1}
	}
	for p := start; p <= end; p++ {
		seen[p] = struct{}{}
	}
	return nil
}

func parsePort(s string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port number %q", strings.TrimSpace(s))
	}
	if value < 1 || value > 65535 {
		return 0, fmt.Errorf("port %d out of range 1..65535", value)
	}
	return value, nil
}

// ParseHostPort splits "host:port" (including bracketed IPv6 like
// "[::1]:8080") into its components. Port is 0 when absent.
func ParseHostPort(input string) (string, uint16, error) {
	if strings.HasPrefix(input, "[") {
		end := strings.Index(input, "]")
		if end < 0 {
			return "", 0, fmt.Errorf("invalid IPv6 literal %q: missing closing bracket", input)
		}
		host := input[1:end]
		rest := input[end+1:]
		if rest == "" {
			return host, 0, nil
		}
		if !strings.HasPrefix(rest, ":") {
			return "", 0, fmt.Errorf("invalid input %q after IPv6 literal", input)
		}
		port, err := parsePort(rest[1:])
		if err != nil {
			return "", 0, err
		}
		return host, uint16(port), nil
	}

	host, portStr, found := strings.Cut(input, ":")
	if !found || strings.Contains(portStr, ":") {
		// no port, or an unbracketed IPv6 literal
		return input, 0, nil
	}
	port, err := parsePort(portStr)
	if err != nil {
		// "host:garbage" is treated as a plain hostname, matching the
		// forgiving behavior of the CLI input layer
		return input, 0, nil
	}
	return host, uint16(port), nil
}

var hostnameLabel = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

// IsValidIP reports whether s is a literal IPv4 or IPv6 address.
func IsValidIP(s string) bool {
	return net.ParseIP(s) != nil
}

// IsValidHostname reports whether s is an RFC-1123 hostname or an IP literal.
// The CLI enforces this before building targets; the core assumes it.
func IsValidHostname(s string) bool {
	if s == "" || len(s) > 253 {
		return false
	}
	if IsValidIP(s) {
		return true
	}
	s = strings.TrimSuffix(s, ".")
	for _, label := range strings.Split(s, ".") {
		if label == "" || len(label) > 63 || !hostnameLabel.MatchString(label) {
			return false
		}
	}
	return true
}

// CommonPorts is the default sweep set used by --common-ports.
func CommonPorts() []uint16 {
	return []uint16{
		21, 22, 23, 25, 53, 80, 110, 111, 135, 139, 143, 161, 389, 443, 445,
		465, 500, 554, 587, 636, 873, 990, 993, 995, 1080, 1194, 1433, 1521,
		1723, 1935, 2049, 2375, 2376, 3000, 3268, 3306, 3389, 4000, 5000,
		5060, 5432, 5601, 5900, 5984, 6000, 6379, 6667, 7001, 8000, 8008,
		8080, 8081, 8086, 8090, 8181, 8443, 8554, 8888, 9000, 9090, 9091,
		9093, 9200, 9300, 9443, 9999, 10000, 25565, 27015, 27017, 50000,
	}
}

// serviceNames maps well-known ports to display names for table rendering.
var serviceNames = map[uint16]string{
	21: "FTP", 22: "SSH", 23: "Telnet", 25: "SMTP", 53: "DNS", 80: "HTTP",
	110: "POP3", 111: "RPC", 135: "RPC", 139: "NetBIOS", 143: "IMAP",
	161: "SNMP", 389: "LDAP", 443: "HTTPS", 445: "SMB", 465: "SMTPS",
	500: "IPSec", 554: "RTSP", 587: "SMTP-Submit", 636: "LDAPS", 873: "rsync",
	990: "FTPS", 993: "IMAPS", 995: "POP3S", 1080: "SOCKS", 1194: "OpenVPN",
	1433: "MSSQL", 1521: "Oracle", 1723: "PPTP", 1935: "RTMP", 2049: "NFS",
	2375: "Docker", 2376: "Docker-TLS", 3268: "LDAP-GC", 3306: "MySQL",
	3389: "RDP", 5060: "SIP", 5432: "PostgreSQL", 5601: "Kibana", 5900: "VNC",
	5984: "CouchDB", 6379: "Redis", 6667: "IRC", 7001: "Cassandra",
	8080: "HTTP-Proxy", 8443: "HTTPS-Alt", 8888: "HTTP-Alt",
	9090: "Prometheus", 9200: "Elasticsearch", 10000: "Webmin",
	25565: "Minecraft", 27015: "Steam", 27017: "MongoDB", 50000: "SAP",
}

// ServiceName returns a human-readable service label for a port.
func ServiceName(port uint16) string {
	if name, known := serviceNames[port]; known {
		return name
	}
	return "unknown"
}
