package metrics

import "sort"

// Summary provides a summary of records matching a filter.
type Summary struct {
	Count           int            `json:"count"`
	SuccessCount    int            `json:"success_count"`
	FallbackCount   int            `json:"fallback_count"`
	ErrorCount      int            `json:"error_count"`
	ByMode          map[string]int `json:"by_mode,omitempty"`
	FallbackReasons map[string]int `json:"fallback_reasons,omitempty"`
	FailureStages   map[string]int `json:"failure_stages,omitempty"`

	// Latency percentiles (seconds)
	LatencyP50 float64 `json:"latency_p50"`
	LatencyP95 float64 `json:"latency_p95"`
	LatencyAvg float64 `json:"latency_avg"`
	LatencyMax float64 `json:"latency_max"`
}

// Summarize aggregates retained records matching f.
func (r *Recorder) Summarize(f Filter) *Summary {
	metrics := r.List(f, 0)

	s := &Summary{
		Count:           len(metrics),
		ByMode:          make(map[string]int),
		FallbackReasons: make(map[string]int),
		FailureStages:   make(map[string]int),
	}

	var latencies []float64
	for _, m := range metrics {
		if m.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
		}
		if m.FallbackReason != "" {
			s.FallbackCount++
			s.FallbackReasons[m.FallbackReason]++
		}
		if m.FailureStage != "" {
			s.FailureStages[m.FailureStage]++
		}
		if m.PipelineMode != "" {
			s.ByMode[m.PipelineMode]++
		}
		if m.TotalSeconds > 0 {
			latencies = append(latencies, m.TotalSeconds)
		}
	}

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		var sum float64
		for _, l := range latencies {
			sum += l
		}
		s.LatencyAvg = sum / float64(len(latencies))
		s.LatencyMax = latencies[len(latencies)-1]
		s.LatencyP50 = percentile(latencies, 50)
		s.LatencyP95 = percentile(latencies, 95)
	}

	return s
}

// percentile calculates the p-th percentile from a sorted slice of values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	// Calculate the index
	n := float64(len(sorted))
	idx := (p / 100.0) * (n - 1)

	// Interpolate between floor and ceil indices
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// Linear interpolation
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
