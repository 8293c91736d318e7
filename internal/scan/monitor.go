package scan

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nvquang/netprobe/internal/probe"
)

// HealthStatus is one monitoring observation for one host.
type HealthStatus struct {
	Host           string    `json:"host"`
	Healthy        bool      `json:"healthy"`
	Method         string    `json:"method"`
	ResponseTimeMS float64   `json:"response_time_ms"`
	Detail         string    `json:"detail,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
}

// HealthFunc performs one health check against a host.
type HealthFunc func(ctx context.Context, host string) HealthStatus

// HostStats accumulates a host's monitoring session.
type HostStats struct {
	Latest          HealthStatus
	History         []HealthStatus
	SuccessfulCount int
	TotalCount      int
}

// Uptime is the fraction of checks so far that succeeded, in [0,1].
// Zero checks means zero uptime.
func (s *HostStats) Uptime() float64 {
	if s.TotalCount == 0 {
		return 0
	}
	return float64(s.SuccessfulCount) / float64(s.TotalCount)
}

// HostSummary is the per-host line of the final monitoring report.
type HostSummary struct {
	Host            string  `json:"host"`
	Checks          int     `json:"checks"`
	Successful      int     `json:"successful"`
	UptimePercent   float64 `json:"uptime_percent"`
	LastHealthy     bool    `json:"last_healthy"`
	LastResponseMS  float64 `json:"last_response_ms"`
	LastCheckDetail string  `json:"last_check_detail,omitempty"`
}

// MonitorConfig configures a continuous monitoring session.
type MonitorConfig struct {
	// Hosts are session entries, either "host" or "host:port". An entry's own
	// port takes precedence over Port.
	Hosts []string
	// Interval between check rounds. A round shorter than the interval
	// sleeps the remainder; a longer one starts the next round immediately.
	Interval time.Duration
	// Port used by the TCP health probe. Zero means 80.
	Port uint16
	// Timeout applies per health check.
	Timeout time.Duration
	// HistoryLimit bounds per-host retained observations. Zero keeps all.
	HistoryLimit int
	// OnCheck, when set, is invoked after every observation. Called from the
	// monitor goroutine, one call at a time.
	OnCheck func(HealthStatus)
}

// Monitor repeatedly health-checks a set of hosts and tracks uptime per host.
// A host is healthy when its TCP port answers or, failing that, when it
// responds to an echo request.
type Monitor struct {
	cfg   MonitorConfig
	check HealthFunc
	log   *zap.SugaredLogger
	mu    sync.Mutex
	stats map[string]*HostStats
}

// NewMonitor builds a monitor with the default TCP-then-ICMP health check.
func NewMonitor(cfg MonitorConfig, log *zap.SugaredLogger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Port == 0 {
		cfg.Port = 80
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = probe.DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	m := &Monitor{
		cfg:   cfg,
		log:   log,
		stats: make(map[string]*HostStats, len(cfg.Hosts)),
	}
	m.check = m.defaultHealthCheck
	for _, host := range cfg.Hosts {
		m.stats[host] = &HostStats{}
	}
	return m
}

// SetHealthFunc replaces the health check. Must be called before Run.
func (m *Monitor) SetHealthFunc(fn HealthFunc) {
	if fn != nil {
		m.check = fn
	}
}

func (m *Monitor) defaultHealthCheck(ctx context.Context, entry string) HealthStatus {
	cfg := probe.Config{Timeout: m.cfg.Timeout}

	host, port, err := ParseHostPort(entry)
	if err != nil || port == 0 {
		host = entry
		port = m.cfg.Port
	}

	tcp := (&probe.TCPProber{Config: cfg}).Check(ctx, host, port)
	if tcp.Success {
		return HealthStatus{
			Host:           entry,
			Healthy:        true,
			Method:         "tcp",
			ResponseTimeMS: tcp.ResponseTimeMS,
			CheckedAt:      time.Now(),
		}
	}

	icmp := probe.NewICMPProber(cfg).Check(ctx, host)
	status := HealthStatus{
		Host:           entry,
		Healthy:        icmp.Success,
		Method:         "icmp",
		ResponseTimeMS: icmp.ResponseTimeMS,
		CheckedAt:      time.Now(),
	}
	if !icmp.Success {
		// report the TCP failure, it is the more actionable signal
		status.Method = "tcp"
		status.Detail = tcp.Error
	}
	return status
}

// Run checks every host once per interval until ctx is cancelled, then
// returns the per-host session summaries. The error is ctx.Err(), returned so
// callers can distinguish a clean stop from a deadline.
func (m *Monitor) Run(ctx context.Context) ([]HostSummary, error) {
	m.log.Infow("monitoring started",
		"hosts", len(m.cfg.Hosts),
		"interval", m.cfg.Interval,
		"port", m.cfg.Port,
	)

	for {
		roundStart := time.Now()
		m.runRound(ctx)

		if ctx.Err() != nil {
			return m.Summaries(), ctx.Err()
		}

		sleep := m.cfg.Interval - time.Since(roundStart)
		if sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return m.Summaries(), ctx.Err()
			case <-timer.C:
			}
		}
	}
}

func (m *Monitor) runRound(ctx context.Context) {
	var wg sync.WaitGroup
	observations := make([]HealthStatus, len(m.cfg.Hosts))

	for i, host := range m.cfg.Hosts {
		wg.Add(1)
		go func(i int, host string) {
			defer wg.Done()
			observations[i] = m.check(ctx, host)
		}(i, host)
	}
	wg.Wait()

	if ctx.Err() != nil {
		// a cancelled round produces spurious failures; drop it
		return
	}

	// Record by the configured entry, not by whatever Host the health check
	// chose to report; a custom HealthFunc may normalize the name.
	m.mu.Lock()
	for i, host := range m.cfg.Hosts {
		status := observations[i]
		stats := m.stats[host]
		stats.Latest = status
		stats.TotalCount++
		if status.Healthy {
			stats.SuccessfulCount++
		}
		stats.History = append(stats.History, status)
		if m.cfg.HistoryLimit > 0 && len(stats.History) > m.cfg.HistoryLimit {
			stats.History = stats.History[len(stats.History)-m.cfg.HistoryLimit:]
		}
	}
	m.mu.Unlock()

	if m.cfg.OnCheck != nil {
		for _, status := range observations {
			m.cfg.OnCheck(status)
		}
	}
}

// Snapshot returns a copy of the current per-host stats, keyed by host, for
// dashboard-style reads while the monitor is running.
func (m *Monitor) Snapshot() map[string]HostStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]HostStats, len(m.stats))
	for host, stats := range m.stats {
		copied := *stats
		copied.History = append([]HealthStatus(nil), stats.History...)
		out[host] = copied
	}
	return out
}

// Summaries produces the final report lines in the configured host order.
func (m *Monitor) Summaries() []HostSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]HostSummary, 0, len(m.cfg.Hosts))
	for _, host := range m.cfg.Hosts {
		stats := m.stats[host]
		out = append(out, HostSummary{
			Host:            host,
			Checks:          stats.TotalCount,
			Successful:      stats.SuccessfulCount,
			UptimePercent:   stats.Uptime() * 100,
			LastHealthy:     stats.Latest.Healthy,
			LastResponseMS:  stats.Latest.ResponseTimeMS,
			LastCheckDetail: stats.Latest.Detail,
		})
	}
	return out
}
