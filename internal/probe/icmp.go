package probe

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"
)

// ICMPResult is the outcome of an echo test, tagged with the strategy that
// produced it.
type ICMPResult struct {
	Result
	Host   string `json:"host"`
	Method string `json:"method"`
}

const (
	MethodSystemCommand = "system_command"
	MethodRawSocket     = "raw_socket"
	methodNone          = "none"
)

// PingStrategy is a single way of performing an echo test.
type PingStrategy interface {
	Name() string
	Attempt(ctx context.Context, host string, timeout time.Duration) *ICMPResult
}

// ICMPProber runs its strategies in order and returns the first success. If
// every strategy fails, the result carries the last encountered error.
type ICMPProber struct {
	Config
	Strategies []PingStrategy
}

// NewICMPProber builds a prober with the default strategy chain: the system
// ping utility first, a raw-socket echo (needs elevated privileges) second.
func NewICMPProber(cfg Config) *ICMPProber {
	return &ICMPProber{
		Config: cfg,
		Strategies: []PingStrategy{
			&SystemPing{},
			&RawSocketPing{},
		},
	}
}

// Check tries each strategy until one reports success.
func (p *ICMPProber) Check(ctx context.Context, host string) *ICMPResult {
	var last *ICMPResult
	for _, strategy := range p.Strategies {
		result := strategy.Attempt(ctx, host, p.timeout())
		if result.Success {
			return result
		}
		last = result
	}
	if last != nil {
		return last
	}
	return &ICMPResult{
		Host:   host,
		Method: methodNone,
		Result: fail(KindSubprocessUnavailable, 0, "no ping strategy configured"),
	}
}

// SystemPing shells out to the platform ping utility with a single-packet,
// bounded-wait invocation.
type SystemPing struct{}

func (s *SystemPing) Name() string { return MethodSystemCommand }

// pingTimePatterns extract the round-trip time from ping's text output.
// Patterns are locale tolerant: English "time=", German "Zeit=", and a bare
// "<n> ms" token as a last resort.
var pingTimePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)time[<=](\d+\.?\d*)\s*ms`),
	regexp.MustCompile(`(?i)Zeit[<=](\d+\.?\d*)\s*ms`),
	regexp.MustCompile(`(?i)time[<=](\d+\.?\d*)`),
	regexp.MustCompile(`(\d+\.?\d*)\s*ms`),
}

func (s *SystemPing) Attempt(ctx context.Context, host string, timeout time.Duration) *ICMPResult {
	result := &ICMPResult{Host: host, Method: MethodSystemCommand}

	seconds := int(timeout / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	var args []string
	if runtime.GOOS == "windows" {
		args = []string{"-n", "1", "-w", strconv.Itoa(seconds * 1000), host}
	} else {
		args = []string{"-c", "1", "-W", strconv.Itoa(seconds), host}
	}

	// The extra grace covers ping's own startup; CommandContext kills the
	// process when the deadline passes, no zombies under wide fan-out.
	cmdCtx, cancel := context.WithTimeout(ctx, timeout+2*time.Second)
	defer cancel()

	start := time.Now()
	output, err := exec.CommandContext(cmdCtx, "ping", args...).CombinedOutput()
	elapsed := time.Since(start)

	if cmdCtx.Err() == context.DeadlineExceeded {
		result.Result = fail(KindConnectionTimeout, elapsed, "ping timeout after %s", timeout)
		return result
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			result.Result = fail(KindSubprocessUnavailable, elapsed, "ping binary unavailable: %v", err)
			return result
		}
		message := string(output)
		if message == "" {
			message = err.Error()
		}
		result.Result = fail(KindUnexpected, elapsed, "ping failed: %s", message)
		return result
	}

	result.Result = ok(elapsed)
	if rtt, found := ParsePingTime(string(output)); found {
		result.ResponseTimeMS = rtt
	}
	return result
}

// ParsePingTime extracts the reported round-trip time from ping output.
func ParsePingTime(output string) (float64, bool) {
	for _, pattern := range pingTimePatterns {
		if m := pattern.FindStringSubmatch(output); m != nil {
			if rtt, err := strconv.ParseFloat(m[1], 64); err == nil {
				return rtt, true
			}
		}
	}
	return 0, false
}

// RawSocketPing sends an ICMP echo request over a raw socket. It only works
// with elevated privileges and exists as the fallback strategy for systems
// without a usable ping binary.
type RawSocketPing struct{}

func (r *RawSocketPing) Name() string { return MethodRawSocket }

const (
	icmpEchoRequest = 8
	icmpEchoReply   = 0
	icmpHeaderLen   = 8
	ipv4HeaderLen   = 20
)

var icmpPayload = []byte("netprobe echo")

func (r *RawSocketPing) Attempt(ctx context.Context, host string, timeout time.Duration) *ICMPResult {
	result := &ICMPResult{Host: host, Method: MethodRawSocket}

	conn, err := net.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		result.Result = fail(KindSubprocessUnavailable, 0, "raw socket unavailable (needs elevated privileges): %v", err)
		return result
	}
	defer conn.Close()

	addr, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		result.Result = fail(KindDNSResolution, 0, "DNS resolution failed: %v", err)
		return result
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, has := ctx.Deadline(); has && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetDeadline(deadline)

	id := uint16(os.Getpid() & 0xffff)
	packet := BuildEchoRequest(id, 1, icmpPayload)

	start := time.Now()
	if _, err := conn.WriteTo(packet, addr); err != nil {
		result.Result = fail(KindUnexpected, time.Since(start), "send echo request: %v", err)
		return result
	}

	buf := make([]byte, 1024)
	for {
		n, _, err := conn.ReadFrom(buf)
		elapsed := time.Since(start)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				result.Result = fail(KindConnectionTimeout, elapsed, "no ICMP reply within %s", timeout)
			} else {
				result.Result = fail(KindUnexpected, elapsed, "read echo reply: %v", err)
			}
			return result
		}
		if MatchEchoReply(buf[:n], id) {
			result.Result = ok(elapsed)
			return result
		}
		// Reply for someone else's ping; keep reading until the deadline.
	}
}

// BuildEchoRequest assembles an ICMP echo request: an 8-byte header
// (type, code, checksum, identifier, sequence) followed by the payload.
func BuildEchoRequest(id, seq uint16, payload []byte) []byte {
	packet := make([]byte, icmpHeaderLen+len(payload))
	packet[0] = icmpEchoRequest
	packet[1] = 0
	binary.BigEndian.PutUint16(packet[4:6], id)
	binary.BigEndian.PutUint16(packet[6:8], seq)
	copy(packet[icmpHeaderLen:], payload)
	binary.BigEndian.PutUint16(packet[2:4], Checksum(packet))
	return packet
}

// Checksum computes the ICMP checksum: the one's complement of the 16-bit
// word sum, with a trailing odd byte treated as the high byte of a padded
// word.
func Checksum(data []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if len(data)%2 == 1 {
		sum += uint32(data[len(data)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return ^uint16(sum)
}

// MatchEchoReply reports whether packet is an echo reply for our identifier.
// Depending on the socket type the kernel may or may not include the IPv4
// header, so both layouts are accepted.
func MatchEchoReply(packet []byte, id uint16) bool {
	if matchEchoReplyAt(packet, id) {
		return true
	}
	if len(packet) > ipv4HeaderLen {
		return matchEchoReplyAt(packet[ipv4HeaderLen:], id)
	}
	return false
}

func matchEchoReplyAt(header []byte, id uint16) bool {
	if len(header) < icmpHeaderLen {
		return false
	}
	if header[0] != icmpEchoReply {
		return false
	}
	return binary.BigEndian.Uint16(header[4:6]) == id
}
