package cmd

import (
	"strings"

	"github.com/fatih/color"

	"github.com/nvquang/netprobe/internal/probe"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorBold    = color.New(color.Bold).SprintFunc()
)

func formatTCPStatus(status probe.TCPStatus) string {
	switch status {
	case probe.TCPOpen:
		return colorSuccess(string(status))
	case probe.TCPRefused, probe.TCPError, probe.TCPDNSError:
		return colorError(string(status))
	case probe.TCPTimeout:
		return colorWarn(string(status))
	default:
		return string(status)
	}
}

func formatCheck(success bool) string {
	if success {
		return colorSuccess("✓")
	}
	return colorError("✗")
}

// formatGrade colors a certificate letter grade: A-range green, B/C yellow,
// the rest red.
func formatGrade(grade string) string {
	switch {
	case strings.HasPrefix(grade, "A"):
		return colorSuccess(grade)
	case grade == "B" || grade == "C":
		return colorWarn(grade)
	default:
		return colorError(grade)
	}
}

func formatUptime(percent float64) string {
	switch {
	case percent >= 99:
		return colorSuccess(formatPercent(percent))
	case percent >= 90:
		return colorWarn(formatPercent(percent))
	default:
		return colorError(formatPercent(percent))
	}
}
