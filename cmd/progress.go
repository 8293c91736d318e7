package cmd

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// progressPrinter renders a single self-overwriting status line while a scan
// is in flight: hosts completed, reachable vs unreachable, open ports seen,
// average per-host duration.
type progressPrinter struct {
	total     int
	name      string
	mu        sync.Mutex
	reachable int
	down      int
	openPorts int
	duration  float64
	updates   chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

func newProgressPrinter(total int, name string) *progressPrinter {
	if total <= 0 {
		total = 1
	}
	return &progressPrinter{
		total:   total,
		name:    name,
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (p *progressPrinter) Start() {
	go p.loop()
}

func (p *progressPrinter) Increment(reachable bool, durationSecs float64, openPorts int) {
	p.mu.Lock()
	if reachable {
		p.reachable++
	} else {
		p.down++
	}
	p.openPorts += openPorts
	p.duration += durationSecs
	p.mu.Unlock()

	select {
	case p.updates <- struct{}{}:
	default:
	}
}

func (p *progressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	fmt.Fprintf(os.Stdout, "\r%s\r", strings.Repeat(" ", 80))
	p.print()
	fmt.Fprintln(os.Stdout)
}

func (p *progressPrinter) loop() {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.updates:
			p.print()
		case <-ticker.C:
			p.print()
		case <-p.done:
			return
		}
	}
}

func (p *progressPrinter) print() {
	p.mu.Lock()
	reachable := p.reachable
	down := p.down
	open := p.openPorts
	dur := p.duration
	p.mu.Unlock()

	completed := reachable + down
	if completed > p.total {
		p.total = completed
	}

	percent := (float64(completed) / float64(p.total)) * 100
	avg := 0.0
	if completed > 0 {
		avg = dur / float64(completed)
	}

	line := fmt.Sprintf("\r[%s] Hosts: %d/%d (%.1f%%) Up:%d Down:%d Open:%d Avg:%.2fs",
		p.name, completed, p.total, percent, reachable, down, open, avg)
	fmt.Fprintf(os.Stdout, "%s", line)
}
