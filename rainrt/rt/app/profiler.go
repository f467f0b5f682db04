package app

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Profiler accumulates CPU time per named scope across frames and reports
// the per-frame average. Scopes are the frame graph passes plus "frame".
type Profiler struct {
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string
	Frames     int

	now func() time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
		now:        time.Now,
	}
}

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = p.now()
	if !slices.Contains(p.Order, name) {
		p.Order = append(p.Order, name)
	}
}

func (p *Profiler) EndScope(name string) {
	start, ok := p.StartTimes[name]
	if !ok {
		return
	}
	p.Scopes[name] += p.now().Sub(start)
	delete(p.StartTimes, name)
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

func (p *Profiler) EndFrame() {
	p.Frames++
}

// Average is the mean time per frame spent in scope name.
func (p *Profiler) Average(name string) time.Duration {
	if p.Frames == 0 {
		return 0
	}
	return p.Scopes[name] / time.Duration(p.Frames)
}

// Reset clears timings and the frame count, keeping scope order and counters.
func (p *Profiler) Reset() {
	clear(p.Scopes)
	p.Frames = 0
}

func (p *Profiler) GetStatsString() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Timings (CPU, avg over %d frames):\n", p.Frames)
	for _, name := range p.Order {
		ms := float64(p.Average(name).Microseconds()) / 1000.0
		fmt.Fprintf(&sb, "  %-15s: %.3f ms\n", name, ms)
	}

	sb.WriteString("Stats:\n")
	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %-15s: %d\n", k, p.Counts[k])
	}
	return sb.String()
}
