package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressPrinterCounters(t *testing.T) {
	p := newProgressPrinter(3, "scan")

	p.Increment(true, 0.5, 2)
	p.Increment(false, 1.5, 0)
	p.Increment(true, 1.0, 1)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, 2, p.reachable)
	assert.Equal(t, 1, p.down)
	assert.Equal(t, 3, p.openPorts)
	assert.InDelta(t, 3.0, p.duration, 1e-9)
}

func TestProgressPrinterZeroTotal(t *testing.T) {
	p := newProgressPrinter(0, "scan")
	assert.Equal(t, 1, p.total, "total must never be zero, it is a divisor")
}

func TestProgressPrinterStopIsIdempotent(t *testing.T) {
	p := newProgressPrinter(1, "scan")
	p.Start()
	p.Increment(true, 0.1, 0)
	p.Stop()
	p.Stop()
}
