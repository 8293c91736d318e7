package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nvquang/netprobe/internal/probe"
)

// DefaultMaxConcurrent caps simultaneously in-flight probes; the default
// keeps a full common-ports sweep under typical file-descriptor limits.
const DefaultMaxConcurrent = 50

// webPorts get an HTTP liveness probe in addition to the TCP connect.
var webPorts = map[uint16]bool{80: true, 443: true, 8080: true, 8443: true}

// tlsPorts get certificate analysis when TLS checking is enabled.
var tlsPorts = map[uint16]bool{443: true, 8443: true, 993: true, 995: true, 465: true, 587: true, 636: true}

// Config is the orchestrator's validated configuration surface.
type Config struct {
	// Timeout applies per probe, not per scan.
	Timeout time.Duration
	// MaxConcurrent bounds in-flight probes and in-flight host scans.
	MaxConcurrent int
	// TLSCheck enables certificate analysis on well-known secure ports.
	TLSCheck bool
	// RateLimit paces probe starts per second; zero means unlimited.
	RateLimit rate.Limit
	// Nameservers optionally overrides the system resolver.
	Nameservers []string
	// OnHostDone, when set, is invoked as each host finishes, one call at a
	// time. Hosts finish in completion order, not input order.
	OnHostDone func(*HostScanResult)
}

// Prober interfaces let tests substitute instrumented fakes; production code
// always uses the probe package's implementations.
type hostProber[R any] interface {
	Check(ctx context.Context, host string) R
}

type portProber[R any] interface {
	Check(ctx context.Context, host string, port uint16) R
}

// Orchestrator fans probes out over targets under bounded parallelism and
// assembles per-host aggregates. Individual probe failures are data; the
// orchestrator itself only fails on invalid configuration.
type Orchestrator struct {
	cfg     Config
	limiter *rate.Limiter
	log     *zap.SugaredLogger

	dns  hostProber[*probe.DNSResult]
	icmp hostProber[*probe.ICMPResult]
	tcp  portProber[*probe.TCPResult]
	http portProber[*probe.HTTPResult]
	tls  portProber[*probe.TLSResult]
}

// New validates cfg and constructs an orchestrator with one probe client per
// protocol. Probers are built here, once per run configuration, and passed
// into every probe call.
func New(cfg Config, log *zap.SugaredLogger) (*Orchestrator, error) {
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.MaxConcurrent < 1 {
		return nil, fmt.Errorf("max_concurrent must be at least 1, got %d", cfg.MaxConcurrent)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = probe.DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = rate.Inf
	}

	clientCfg := probe.Config{Timeout: cfg.Timeout}
	return &Orchestrator{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.MaxConcurrent),
		log:     log,
		dns:     &probe.DNSProber{Config: clientCfg, Nameservers: cfg.Nameservers},
		tcp:     &probe.TCPProber{Config: clientCfg},
		http:    &probe.HTTPProber{Config: clientCfg},
		icmp:    probe.NewICMPProber(clientCfg),
		tls:     &probe.TLSProber{Config: clientCfg},
	}, nil
}

// Run scans every target and returns one result per target, in input order.
// A host whose scan blows up unexpectedly becomes a degraded entry; it never
// aborts its siblings. Only precondition violations return an error.
func (o *Orchestrator) Run(ctx context.Context, targets []Target) (*BatchResult, error) {
	if len(targets) == 0 {
		return nil, errors.New("no targets to scan")
	}
	for _, target := range targets {
		if len(target.Ports) > MaxPortsPerHost {
			return nil, &PortCountError{Spec: target.Host, Count: len(target.Ports)}
		}
	}

	start := time.Now()
	results := make([]*HostScanResult, len(targets))

	var notifyMu sync.Mutex
	hostPool := sizedwaitgroup.New(o.cfg.MaxConcurrent)
	for i, target := range targets {
		hostPool.Add()
		go func(i int, target Target) {
			defer hostPool.Done()
			results[i] = o.scanHost(ctx, target)
			if o.cfg.OnHostDone != nil {
				notifyMu.Lock()
				o.cfg.OnHostDone(results[i])
				notifyMu.Unlock()
			}
		}(i, target)
	}
	hostPool.Wait()

	batch := &BatchResult{
		ScanTimestamp:   start,
		TotalHosts:      len(targets),
		Results:         results,
		TotalDurationMS: float64(time.Since(start)) / float64(time.Millisecond),
	}
	for _, r := range results {
		if r.Reachable() {
			batch.SuccessfulHosts++
		}
	}

	o.log.Debugw("scan complete",
		"hosts", batch.TotalHosts,
		"reachable", batch.SuccessfulHosts,
		"duration_ms", batch.TotalDurationMS,
	)
	return batch, nil
}

// ScanHost scans a single target. DNS and ICMP run once per host; TCP, HTTP
// and TLS run per port under the shared concurrency bound. No probe waits on
// another's result.
func (o *Orchestrator) ScanHost(ctx context.Context, target Target) *HostScanResult {
	return o.scanHost(ctx, target)
}

func (o *Orchestrator) scanHost(ctx context.Context, target Target) *HostScanResult {
	result := NewHostScanResult(target.Host, target.Ports)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var scanErr string

	// Every probe goroutine runs under this guard: a panicking probe must
	// degrade this host only, never the batch or the process.
	guarded := func(fn func()) {
		defer func() {
			if r := recover(); r != nil {
				o.log.Errorw("probe panicked", "host", target.Host, "panic", r)
				mu.Lock()
				if scanErr == "" {
					scanErr = fmt.Sprintf("unexpected scan failure: %v", r)
				}
				mu.Unlock()
			}
		}()
		o.waitTurn(ctx)
		fn()
	}

	launch := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guarded(fn)
		}()
	}

	launch(func() {
		dns := o.dns.Check(ctx, target.Host)
		mu.Lock()
		result.DNS = dns
		mu.Unlock()
	})
	launch(func() {
		icmp := o.icmp.Check(ctx, target.Host)
		mu.Lock()
		result.ICMP = icmp
		mu.Unlock()
	})

	portPool := sizedwaitgroup.New(o.cfg.MaxConcurrent)
	launchPort := func(fn func()) {
		portPool.Add()
		go func() {
			defer portPool.Done()
			guarded(fn)
		}()
	}

	for _, port := range target.Ports {
		port := port

		launchPort(func() {
			tcp := o.tcp.Check(ctx, target.Host, port)
			mu.Lock()
			result.TCP[port] = tcp
			mu.Unlock()
		})

		if webPorts[port] {
			launchPort(func() {
				httpResult := o.http.Check(ctx, target.Host, port)
				mu.Lock()
				result.HTTP[port] = httpResult
				mu.Unlock()
			})
		}

		if o.cfg.TLSCheck && tlsPorts[port] {
			launchPort(func() {
				tlsResult := o.tls.Check(ctx, target.Host, port)
				mu.Lock()
				result.TLS[port] = tlsResult
				mu.Unlock()
			})
		}
	}

	portPool.Wait()
	wg.Wait()

	if scanErr != "" {
		degraded := NewHostScanResult(target.Host, target.Ports)
		degraded.StartTime = result.StartTime
		degraded.Err = scanErr
		degraded.finish()
		return degraded
	}

	result.finish()
	return result
}

func (o *Orchestrator) waitTurn(ctx context.Context) {
	_ = o.limiter.Wait(ctx)
}
