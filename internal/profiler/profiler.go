// Package profiler implements the profiler/counters component (C11):
// per-phase timing, allocation tallies, pool hit-rate tracking, an
// ASCII summary report, and a Prometheus export surface.
//
// The ASCII report style is grounded on
// original_source/ESC/src/compiler/middle/ir/ir_object_pool.c's
// es_ir_pool_print_stats box-table output. The thread-safety shape
// (one accumulator, one mutex) follows spec.md §9's "wrap in a
// thread-safe accumulator" guidance.
package profiler

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Phase names one timed stage; callers choose their own vocabulary
// (pipeline stage names, driver task names, and so on).
type Phase string

// Profiler accumulates phase durations, allocation counts, and pool
// statistics under a single mutex.
type Profiler struct {
	mu sync.Mutex

	phaseTotal time.Duration
	phases     map[Phase]time.Duration
	phaseCount map[Phase]int

	allocations map[string]int64

	poolHits   map[string]int64
	poolMisses map[string]int64

	phaseSeconds *prometheus.GaugeVec
	allocTotal   *prometheus.CounterVec
	poolHitRatio *prometheus.GaugeVec
}

// New creates an empty profiler. If reg is non-nil, Prometheus
// collectors are registered against it.
func New(reg prometheus.Registerer) *Profiler {
	p := &Profiler{
		phases:      make(map[Phase]time.Duration),
		phaseCount:  make(map[Phase]int),
		allocations: make(map[string]int64),
		poolHits:    make(map[string]int64),
		poolMisses:  make(map[string]int64),

		phaseSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "esc",
			Subsystem: "compiler",
			Name:      "phase_seconds",
			Help:      "Cumulative seconds spent in each compilation phase.",
		}, []string{"phase"}),
		allocTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "esc",
			Subsystem: "compiler",
			Name:      "allocations_total",
			Help:      "Total allocations tallied per category.",
		}, []string{"category"}),
		poolHitRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "esc",
			Subsystem: "compiler",
			Name:      "pool_hit_ratio",
			Help:      "Free-list hit ratio per pool kind.",
		}, []string{"pool"}),
	}
	if reg != nil {
		reg.MustRegister(p.phaseSeconds, p.allocTotal, p.poolHitRatio)
	}
	return p
}

// Time runs fn and records its duration under phase.
func (p *Profiler) Time(phase Phase, fn func() error) error {
	start := time.Now()
	err := fn()
	p.Record(phase, time.Since(start))
	return err
}

// Record adds d to phase's running total.
func (p *Profiler) Record(phase Phase, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phases[phase] += d
	p.phaseCount[phase]++
	p.phaseTotal += d
	if p.phaseSeconds != nil {
		p.phaseSeconds.WithLabelValues(string(phase)).Set(p.phases[phase].Seconds())
	}
}

// Allocate tallies n allocations under category.
func (p *Profiler) Allocate(category string, n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allocations[category] += n
	if p.allocTotal != nil {
		p.allocTotal.WithLabelValues(category).Add(float64(n))
	}
}

// RecordPool records one free-list lookup outcome for a pool kind.
func (p *Profiler) RecordPool(kind string, hit bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if hit {
		p.poolHits[kind]++
	} else {
		p.poolMisses[kind]++
	}
	total := p.poolHits[kind] + p.poolMisses[kind]
	if total > 0 && p.poolHitRatio != nil {
		p.poolHitRatio.WithLabelValues(kind).Set(float64(p.poolHits[kind]) / float64(total))
	}
}

// RecordPoolStats sets kind's hit/miss tally directly from a pool's
// own aggregate counters, for callers like C1's arena pools that
// already track hits/misses rather than reporting one lookup at a time.
func (p *Profiler) RecordPoolStats(kind string, hits, misses int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.poolHits[kind] = int64(hits)
	p.poolMisses[kind] = int64(misses)
	total := hits + misses
	if total > 0 && p.poolHitRatio != nil {
		p.poolHitRatio.WithLabelValues(kind).Set(float64(hits) / float64(total))
	}
}

// PoolHitRate returns the hit ratio for kind, or 0 if it has never
// been recorded.
func (p *Profiler) PoolHitRate(kind string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.poolHits[kind] + p.poolMisses[kind]
	if total == 0 {
		return 0
	}
	return float64(p.poolHits[kind]) / float64(total)
}

// Summary renders an ASCII box-table report, in the style of
// es_ir_pool_print_stats: a bordered table with one row per phase and
// one row per pool kind.
func (p *Profiler) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var phaseNames []string
	for ph := range p.phases {
		phaseNames = append(phaseNames, string(ph))
	}
	sort.Strings(phaseNames)

	var poolNames []string
	seen := make(map[string]bool)
	for k := range p.poolHits {
		if !seen[k] {
			seen[k] = true
			poolNames = append(poolNames, k)
		}
	}
	for k := range p.poolMisses {
		if !seen[k] {
			seen[k] = true
			poolNames = append(poolNames, k)
		}
	}
	sort.Strings(poolNames)

	var b strings.Builder
	border := "+----------------------------------------+"
	b.WriteString(border + "\n")
	b.WriteString("| compilation profile                     |\n")
	b.WriteString(border + "\n")
	for _, ph := range phaseNames {
		fmt.Fprintf(&b, "| phase %-15s %6d calls %8s |\n", ph, p.phaseCount[Phase(ph)], p.phases[Phase(ph)].Round(time.Microsecond))
	}
	for _, pool := range poolNames {
		total := p.poolHits[pool] + p.poolMisses[pool]
		rate := 0.0
		if total > 0 {
			rate = float64(p.poolHits[pool]) / float64(total) * 100
		}
		fmt.Fprintf(&b, "| pool %-16s hit-rate %6.2f%%           |\n", pool, rate)
	}
	b.WriteString(border + "\n")
	return b.String()
}

// TotalDuration returns the sum of all recorded phase durations.
func (p *Profiler) TotalDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phaseTotal
}
