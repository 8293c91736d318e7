package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/nvquang/netprobe/internal/scan"
)

var scanFlags struct {
	ports       string
	commonPorts bool
	hostsFile   string
	sslCheck    bool
	timeout     int
	maxConc     int
	rateLimit   int
	nameservers []string
	jsonOut     bool
	csvOut      bool
	promOut     bool
	progress    bool
}

var scanCmd = &cobra.Command{
	Use:   "scan [hosts...]",
	Short: "Scan hosts for reachability across DNS, TCP, HTTP, TLS and ICMP",
	Long: `Scan one or more hosts. Hosts are given as arguments (comma lists are
split) or via --hosts-file; an entry may carry its own port as host:port.
Without an explicit port specification ports 80 and 443 are probed.

Probe failures are results, not errors: the command exits non-zero only
when the input itself is invalid.`,
	Example: `  netprobe scan example.com
  netprobe scan example.com google.com -p 80,443,8000-8010
  netprobe scan --hosts-file hosts.txt --common-ports --ssl-check --json`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanFlags.ports, "port", "p", "", "ports to probe, e.g. 80,443,8000-8010")
	scanCmd.Flags().BoolVar(&scanFlags.commonPorts, "common-ports", false, "probe the built-in common port set")
	scanCmd.Flags().StringVar(&scanFlags.hostsFile, "hosts-file", "", "file with one host per line, # comments allowed")
	scanCmd.Flags().BoolVar(&scanFlags.sslCheck, "ssl-check", false, "analyze TLS certificates on well-known secure ports")
	scanCmd.Flags().IntVar(&scanFlags.timeout, "timeout", defaultTimeoutSeconds, "per-probe timeout in seconds")
	scanCmd.Flags().IntVar(&scanFlags.maxConc, "max-concurrent", defaultMaxConcurrent, "max simultaneous probes")
	scanCmd.Flags().IntVar(&scanFlags.rateLimit, "rate-limit", 0, "max probe starts per second (0 = unlimited)")
	scanCmd.Flags().StringSliceVar(&scanFlags.nameservers, "nameserver", nil, "custom DNS nameserver (host:port)")
	scanCmd.Flags().BoolVar(&scanFlags.jsonOut, "json", false, "emit JSON instead of tables")
	scanCmd.Flags().BoolVar(&scanFlags.csvOut, "csv", false, "emit CSV instead of tables")
	scanCmd.Flags().BoolVar(&scanFlags.promOut, "prometheus", false, "emit Prometheus text format instead of tables")
	scanCmd.Flags().BoolVar(&scanFlags.progress, "progress", false, "show a progress line during the scan")
}

func runScan(cmd *cobra.Command, args []string) error {
	syncScanFlags(cmd)

	entries, err := collectHostEntries(args, scanFlags.hostsFile)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no hosts given (arguments or --hosts-file)")
	}

	if countOutputs() > 1 {
		return fmt.Errorf("--json, --csv and --prometheus are mutually exclusive")
	}

	targets, err := buildTargets(entries)
	if err != nil {
		return err
	}

	cfg := scan.Config{
		Timeout:       time.Duration(cliConfig.Scan.TimeoutSecs) * time.Second,
		MaxConcurrent: cliConfig.Scan.MaxConcurrent,
		TLSCheck:      cliConfig.Scan.TLSCheck,
		RateLimit:     rate.Limit(cliConfig.Scan.RateLimit),
		Nameservers:   cliConfig.Scan.Nameservers,
	}

	var progress *progressPrinter
	if cliConfig.Scan.Progress && !scanFlags.jsonOut && !scanFlags.csvOut && !scanFlags.promOut {
		progress = newProgressPrinter(len(targets), "scan")
		cfg.OnHostDone = func(r *scan.HostScanResult) {
			progress.Increment(r.Reachable(), r.DurationMS/1000, len(r.OpenPorts()))
		}
	}

	orchestrator, err := scan.New(cfg, logger)
	if err != nil {
		return err
	}

	if progress != nil {
		progress.Start()
	}
	batch, err := orchestrator.Run(cmd.Context(), targets)
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return err
	}

	switch {
	case scanFlags.jsonOut:
		return writeJSON(os.Stdout, batch)
	case scanFlags.csvOut:
		return writeCSV(os.Stdout, batch)
	case scanFlags.promOut:
		return writePrometheus(os.Stdout, batch)
	default:
		renderBatch(os.Stdout, batch, cliConfig.Scan.TLSCheck)
		return nil
	}
}

func syncScanFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cliConfig.Scan.TimeoutSecs = scanFlags.timeout
	}
	if flags.Changed("max-concurrent") {
		cliConfig.Scan.MaxConcurrent = scanFlags.maxConc
	}
	if flags.Changed("ssl-check") || scanFlags.sslCheck {
		cliConfig.Scan.TLSCheck = scanFlags.sslCheck
	}
	if flags.Changed("nameserver") {
		cliConfig.Scan.Nameservers = scanFlags.nameservers
	}
	cliConfig.Scan.RateLimit = scanFlags.rateLimit
	cliConfig.Scan.Progress = scanFlags.progress
}

func countOutputs() int {
	n := 0
	for _, set := range []bool{scanFlags.jsonOut, scanFlags.csvOut, scanFlags.promOut} {
		if set {
			n++
		}
	}
	return n
}

// collectHostEntries merges argument hosts (comma lists split) with the hosts
// file. Order is preserved; duplicates are kept deliberately, scanning a host
// twice is the caller's call.
func collectHostEntries(args []string, hostsFile string) ([]string, error) {
	var entries []string
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				entries = append(entries, part)
			}
		}
	}

	if hostsFile != "" {
		fromFile, err := readHostsFile(hostsFile)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fromFile...)
	}
	return entries, nil
}

func readHostsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hosts file: %w", err)
	}
	defer f.Close()

	var hosts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		hosts = append(hosts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read hosts file: %w", err)
	}
	return hosts, nil
}

// buildTargets validates every entry and resolves its port set. Precedence
// per entry: explicit host:port, then --port, then --common-ports, then the
// 80/443 default.
func buildTargets(entries []string) ([]scan.Target, error) {
	var specPorts []uint16
	if scanFlags.ports != "" {
		parsed, err := scan.ParsePorts(scanFlags.ports)
		if err != nil {
			return nil, err
		}
		specPorts = parsed
	}

	targets := make([]scan.Target, 0, len(entries))
	for _, entry := range entries {
		host, port, err := scan.ParseHostPort(entry)
		if err != nil {
			return nil, err
		}
		if !scan.IsValidHostname(host) {
			return nil, fmt.Errorf("invalid host %q", host)
		}

		var ports []uint16
		switch {
		case port != 0:
			ports = []uint16{port}
		case specPorts != nil:
			ports = specPorts
		case scanFlags.commonPorts:
			ports = scan.CommonPorts()
		default:
			ports = []uint16{80, 443}
		}
		targets = append(targets, scan.Target{Host: host, Ports: ports})
	}
	return targets, nil
}
