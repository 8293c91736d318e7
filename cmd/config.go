package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultTimeoutSeconds  = 5
	defaultMaxConcurrent   = 50
	defaultIntervalSeconds = 5
	defaultMonitorPort     = 80
)

// CLIConfig captures the runtime configuration shared across commands.
type CLIConfig struct {
	Scan    ScanRuntimeConfig
	Monitor MonitorRuntimeConfig
}

// ScanRuntimeConfig consolidates flag-driven settings for the scan command.
type ScanRuntimeConfig struct {
	TimeoutSecs   int
	MaxConcurrent int
	RateLimit     int
	TLSCheck      bool
	Nameservers   []string
	Progress      bool
}

// MonitorRuntimeConfig consolidates flag-driven settings for monitoring.
type MonitorRuntimeConfig struct {
	IntervalSecs int
	Port         int
	TimeoutSecs  int
	HistoryLimit int
}

type defaultOverrides struct {
	TimeoutSecs   *int
	MaxConcurrent *int
	TLSCheck      *bool
	IntervalSecs  *int
	Nameservers   []string
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Scan: ScanRuntimeConfig{
			TimeoutSecs:   defaultTimeoutSeconds,
			MaxConcurrent: defaultMaxConcurrent,
		},
		Monitor: MonitorRuntimeConfig{
			IntervalSecs: defaultIntervalSeconds,
			Port:         defaultMonitorPort,
			TimeoutSecs:  defaultTimeoutSeconds,
		},
	}
}

func loadDefaultOverrides() defaultOverrides {
	overrides := defaultOverrides{}

	if viper.IsSet("defaults.timeout_secs") {
		val := viper.GetInt("defaults.timeout_secs")
		overrides.TimeoutSecs = &val
	}

	if viper.IsSet("defaults.max_concurrent") {
		val := viper.GetInt("defaults.max_concurrent")
		overrides.MaxConcurrent = &val
	}

	if viper.IsSet("defaults.ssl_check") {
		val := viper.GetBool("defaults.ssl_check")
		overrides.TLSCheck = &val
	}

	if viper.IsSet("defaults.monitor_interval_secs") {
		val := viper.GetInt("defaults.monitor_interval_secs")
		overrides.IntervalSecs = &val
	}

	if viper.IsSet("defaults.nameservers") {
		overrides.Nameservers = viper.GetStringSlice("defaults.nameservers")
	}

	return overrides
}

// applyConfigDefaults merges config file defaults into the runtime config when
// the user did not explicitly override the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command) {
	overrides := loadDefaultOverrides()

	if overrides.TimeoutSecs != nil {
		applyIntDefault(scanCmd.Flags(), "timeout", *overrides.TimeoutSecs, func(v int) {
			cliConfig.Scan.TimeoutSecs = v
		})
		applyIntDefault(monitorCmd.Flags(), "timeout", *overrides.TimeoutSecs, func(v int) {
			cliConfig.Monitor.TimeoutSecs = v
		})
	}

	if overrides.MaxConcurrent != nil {
		applyIntDefault(scanCmd.Flags(), "max-concurrent", *overrides.MaxConcurrent, func(v int) {
			cliConfig.Scan.MaxConcurrent = v
		})
	}

	if overrides.TLSCheck != nil {
		applyBoolDefault(scanCmd.Flags(), "ssl-check", *overrides.TLSCheck, func(v bool) {
			cliConfig.Scan.TLSCheck = v
		})
	}

	if overrides.IntervalSecs != nil {
		applyIntDefault(monitorCmd.Flags(), "interval", *overrides.IntervalSecs, func(v int) {
			cliConfig.Monitor.IntervalSecs = v
		})
	}

	if len(overrides.Nameservers) > 0 {
		flag := scanCmd.Flags().Lookup("nameserver")
		if flag == nil || !flag.Changed {
			cliConfig.Scan.Nameservers = overrides.Nameservers
		}
	}
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyBoolDefault(flags *pflag.FlagSet, name string, value bool, setter func(bool)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}
