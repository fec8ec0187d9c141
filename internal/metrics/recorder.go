package metrics

import (
	"sync"
	"time"
)

// DefaultCapacity is how many records a Recorder keeps.
const DefaultCapacity = 4096

// Recorder keeps the most recent page records plus lifetime counters.
// Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	capacity int
	records  []Metric
	next     int
	full     bool

	totals Totals
}

// Totals are lifetime counters that survive record rotation.
type Totals struct {
	Pages           int64            `json:"pages"`
	SplitSuccess    int64            `json:"split_success"`
	Unified         int64            `json:"unified_success"`
	NoVisibleChange int64            `json:"no_visible_change"`
	Fallbacks       map[string]int64 `json:"fallbacks_by_reason"`
	Failures        map[string]int64 `json:"failures_by_stage"`
}

// NewRecorder creates a recorder holding up to capacity records.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		capacity: capacity,
		records:  make([]Metric, capacity),
		totals: Totals{
			Fallbacks: make(map[string]int64),
			Failures:  make(map[string]int64),
		},
	}
}

// Record stores a page record and updates the counters.
func (r *Recorder) Record(m Metric) {
	if r == nil {
		return
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[r.next] = m
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}

	r.totals.Pages++
	if m.FallbackReason != "" {
		r.totals.Fallbacks[m.FallbackReason]++
	}
	if m.FailureStage != "" {
		r.totals.Failures[m.FailureStage]++
	}
	if m.Success {
		switch m.PipelineMode {
		case "split":
			r.totals.SplitSuccess++
		case "unified":
			r.totals.Unified++
		}
	}
}

// RecordNoVisibleChange counts a page that had no text to translate.
func (r *Recorder) RecordNoVisibleChange() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.totals.NoVisibleChange++
	r.mu.Unlock()
}

// Totals returns a copy of the lifetime counters.
func (r *Recorder) Totals() Totals {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.totals
	t.Fallbacks = make(map[string]int64, len(r.totals.Fallbacks))
	for k, v := range r.totals.Fallbacks {
		t.Fallbacks[k] = v
	}
	t.Failures = make(map[string]int64, len(r.totals.Failures))
	for k, v := range r.totals.Failures {
		t.Failures[k] = v
	}
	return t
}

// snapshot returns retained records oldest first. Caller holds no lock.
func (r *Recorder) snapshot() []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]Metric, r.next)
		copy(out, r.records[:r.next])
		return out
	}
	out := make([]Metric, 0, r.capacity)
	out = append(out, r.records[r.next:]...)
	return append(out, r.records[:r.next]...)
}
