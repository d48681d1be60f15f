// Package metrics implements a process-wide registry of atomic counters,
// gauges, and sliding-window histograms, snapshotted for rlm_get_metrics.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Registry is the single process-wide metrics instance the RPC layer's
// tool handlers report into. Lookups lazily create counters/gauges/histograms under a lock; the
// hot-path increment itself is a single atomic operation.
type Registry struct {
	startedAt time.Time

	mu         sync.RWMutex
	counters   map[string]*int64
	gauges     map[string]*int64
	histograms map[string]*Histogram
}

func New() *Registry {
	return &Registry{
		startedAt:  time.Now(),
		counters:   make(map[string]*int64),
		gauges:     make(map[string]*int64),
		histograms: make(map[string]*Histogram),
	}
}

func (r *Registry) counterSlot(name string) *int64 {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c = new(int64)
	r.counters[name] = c
	return c
}

func (r *Registry) gaugeSlot(name string) *int64 {
	r.mu.RLock()
	g, ok := r.gauges[name]
	r.mu.RUnlock()
	if ok {
		return g
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g = new(int64)
	r.gauges[name] = g
	return g
}

func (r *Registry) histogramSlot(name string) *Histogram {
	r.mu.RLock()
	h, ok := r.histograms[name]
	r.mu.RUnlock()
	if ok {
		return h
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	h = newHistogram()
	r.histograms[name] = h
	return h
}

// Inc increments a named counter by one.
func (r *Registry) Inc(name string) { r.Add(name, 1) }

// Add increments a named counter by delta (may be negative).
func (r *Registry) Add(name string, delta int64) {
	atomic.AddInt64(r.counterSlot(name), delta)
}

// SetGauge overwrites a named gauge's current value.
func (r *Registry) SetGauge(name string, v int64) {
	atomic.StoreInt64(r.gaugeSlot(name), v)
}

// Observe records v into a named histogram.
func (r *Registry) Observe(name string, v float64) {
	r.histogramSlot(name).Observe(v)
}

// Timer starts a stopwatch against a named duration histogram; call the
// returned func when the timed operation completes.
func (r *Registry) Timer(name string) func() {
	start := time.Now()
	return func() {
		r.Observe(name, float64(time.Since(start).Milliseconds()))
	}
}

// Snapshot is the JSON shape rlm_get_metrics returns.
type Snapshot struct {
	UptimeSeconds int64                         `json:"uptime_seconds"`
	Counters      map[string]int64              `json:"counters"`
	Gauges        map[string]int64              `json:"gauges"`
	Histograms    map[string]HistogramSnapshot  `json:"histograms"`
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counters := make(map[string]int64, len(r.counters))
	for k, v := range r.counters {
		counters[k] = atomic.LoadInt64(v)
	}
	gauges := make(map[string]int64, len(r.gauges))
	for k, v := range r.gauges {
		gauges[k] = atomic.LoadInt64(v)
	}
	histograms := make(map[string]HistogramSnapshot, len(r.histograms))
	for k, v := range r.histograms {
		histograms[k] = v.Snapshot()
	}

	return Snapshot{
		UptimeSeconds: int64(time.Since(r.startedAt).Seconds()),
		Counters:      counters,
		Gauges:        gauges,
		Histograms:    histograms,
	}
}
