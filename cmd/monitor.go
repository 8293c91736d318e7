package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvquang/netprobe/internal/scan"
)

var monitorFlags struct {
	interval     int
	port         int
	timeout      int
	historyLimit int
}

var monitorCmd = &cobra.Command{
	Use:   "monitor [hosts...]",
	Short: "Continuously check hosts and track uptime",
	Long: `Check the given hosts once per interval until interrupted, printing one
status line per observation. An entry may carry its own port as host:port;
otherwise --port is used. On Ctrl-C a per-host summary with uptime
percentages is printed before exiting.`,
	Example: `  netprobe monitor example.com
  netprobe monitor db.internal:5432 cache.internal:6379 --interval 10`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().IntVarP(&monitorFlags.interval, "interval", "i", defaultIntervalSeconds, "seconds between check rounds")
	monitorCmd.Flags().IntVar(&monitorFlags.port, "port", defaultMonitorPort, "TCP port for the health check")
	monitorCmd.Flags().IntVar(&monitorFlags.timeout, "timeout", defaultTimeoutSeconds, "per-check timeout in seconds")
	monitorCmd.Flags().IntVar(&monitorFlags.historyLimit, "history", 1000, "observations kept per host (0 = unbounded)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	syncMonitorFlags(cmd)

	entries, err := collectHostEntries(args, "")
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no hosts given")
	}
	for _, entry := range entries {
		host, _, err := scan.ParseHostPort(entry)
		if err != nil {
			return err
		}
		if !scan.IsValidHostname(host) {
			return fmt.Errorf("invalid host %q", host)
		}
	}

	if monitorFlags.port < 1 || monitorFlags.port > 65535 {
		return fmt.Errorf("port %d out of range 1..65535", monitorFlags.port)
	}
	if cliConfig.Monitor.IntervalSecs < 1 {
		return fmt.Errorf("interval must be at least 1 second")
	}

	monitor := scan.NewMonitor(scan.MonitorConfig{
		Hosts:        entries,
		Interval:     time.Duration(cliConfig.Monitor.IntervalSecs) * time.Second,
		Port:         uint16(monitorFlags.port),
		Timeout:      time.Duration(cliConfig.Monitor.TimeoutSecs) * time.Second,
		HistoryLimit: cliConfig.Monitor.HistoryLimit,
		OnCheck:      printHealthStatus,
	}, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Monitoring %d host(s) every %ds, Ctrl-C to stop\n\n",
		len(entries), cliConfig.Monitor.IntervalSecs)

	summaries, _ := monitor.Run(ctx)
	renderMonitorSummary(os.Stdout, summaries)
	return nil
}

func syncMonitorFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("interval") {
		cliConfig.Monitor.IntervalSecs = monitorFlags.interval
	}
	if flags.Changed("timeout") {
		cliConfig.Monitor.TimeoutSecs = monitorFlags.timeout
	}
	cliConfig.Monitor.HistoryLimit = monitorFlags.historyLimit
}

func printHealthStatus(status scan.HealthStatus) {
	mark := colorSuccess("UP")
	detail := fmt.Sprintf("%.1fms via %s", status.ResponseTimeMS, status.Method)
	if !status.Healthy {
		mark = colorError("DOWN")
		detail = status.Detail
	}
	fmt.Printf("[%s] %-30s %-6s %s\n",
		status.CheckedAt.Format("15:04:05"), status.Host, mark, detail)
}
