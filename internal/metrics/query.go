package metrics

import "time"

// Filter specifies query filters.
type Filter struct {
	ChapterID    string
	Status       string
	PipelineMode string
	FailureStage string
	After        time.Time
	Before       time.Time
	Success      *bool // nil = any, true = success only, false = errors only
}

func (f Filter) matches(m Metric) bool {
	switch {
	case f.ChapterID != "" && m.ChapterID != f.ChapterID:
		return false
	case f.Status != "" && m.Status != f.Status:
		return false
	case f.PipelineMode != "" && m.PipelineMode != f.PipelineMode:
		return false
	case f.FailureStage != "" && m.FailureStage != f.FailureStage:
		return false
	case !f.After.IsZero() && !m.CreatedAt.After(f.After):
		return false
	case !f.Before.IsZero() && !m.CreatedAt.Before(f.Before):
		return false
	case f.Success != nil && m.Success != *f.Success:
		return false
	}
	return true
}

// List returns retained records matching f, newest first.
// A limit of 0 returns every match.
func (r *Recorder) List(f Filter, limit int) []Metric {
	all := r.snapshot()
	var out []Metric
	for i := len(all) - 1; i >= 0; i-- {
		if !f.matches(all[i]) {
			continue
		}
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
