package probe

import (
	"context"
	"net"
	"time"
)

// FamilyResult is the resolution outcome for one address family.
type FamilyResult struct {
	Result
	Addresses []string `json:"addresses"`
	Count     int      `json:"count"`
}

// DNSResult holds per-family resolution results. The families are fully
// independent: a broken AAAA path never fails the A lookup and vice versa.
type DNSResult struct {
	Hostname string       `json:"hostname"`
	IPv4     FamilyResult `json:"ipv4"`
	IPv6     FamilyResult `json:"ipv6"`
}

// DNSProber resolves A and AAAA records for a host.
type DNSProber struct {
	Config
	// Nameservers optionally overrides the system resolver.
	Nameservers []string
}

// Check resolves both address families concurrently.
func (d *DNSProber) Check(ctx context.Context, host string) *DNSResult {
	result := &DNSResult{Hostname: host}

	resolver := d.resolver()

	done := make(chan struct{})
	go func() {
		result.IPv6 = d.lookup(ctx, resolver, "ip6", host)
		close(done)
	}()
	result.IPv4 = d.lookup(ctx, resolver, "ip4", host)
	<-done

	return result
}

func (d *DNSProber) resolver() *net.Resolver {
	resolver := &net.Resolver{PreferGo: true}
	if len(d.Nameservers) > 0 {
		dialer := &net.Dialer{Timeout: d.timeout()}
		nameserver := d.Nameservers[0]
		resolver.Dial = func(ctx context.Context, network, address string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, nameserver)
		}
	}
	return resolver
}

func (d *DNSProber) lookup(ctx context.Context, resolver *net.Resolver, network, host string) FamilyResult {
	lookupCtx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()

	start := time.Now()
	ips, err := resolver.LookupIP(lookupCtx, network, host)
	elapsed := time.Since(start)

	if err != nil {
		kind := KindDNSResolution
		if lookupCtx.Err() == context.DeadlineExceeded {
			kind = KindConnectionTimeout
		}
		return FamilyResult{
			Result:    fail(kind, elapsed, "DNS lookup failed: %v", err),
			Addresses: []string{},
		}
	}

	addresses := dedupeAddresses(ips)
	if len(addresses) == 0 {
		return FamilyResult{
			Result:    fail(KindDNSResolution, elapsed, "no %s records found", recordType(network)),
			Addresses: []string{},
		}
	}

	return FamilyResult{
		Result:    ok(elapsed),
		Addresses: addresses,
		Count:     len(addresses),
	}
}

// dedupeAddresses collapses duplicate records while preserving first-seen order.
func dedupeAddresses(ips []net.IP) []string {
	seen := make(map[string]struct{}, len(ips))
	addresses := make([]string, 0, len(ips))
	for _, ip := range ips {
		s := ip.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		addresses = append(addresses, s)
	}
	return addresses
}

func recordType(network string) string {
	if network == "ip6" {
		return "AAAA"
	}
	return "A"
}
