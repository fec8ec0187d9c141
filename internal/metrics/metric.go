// Package metrics keeps in-memory page outcome records for the status
// endpoint: split successes, fallbacks by reason and failures by stage.
package metrics

import "time"

// Metric is the record of one page run.
type Metric struct {
	// Attribution
	ChapterID string `json:"chapter_id,omitempty"`
	Page      int    `json:"page,omitempty"`

	// Outcome
	Status         string `json:"status"`
	PipelineMode   string `json:"pipeline_mode,omitempty"`
	FailureStage   string `json:"failure_stage,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`

	// Translator info
	Translator string `json:"translator,omitempty"`
	Model      string `json:"model,omitempty"`

	// Timing
	TotalSeconds float64 `json:"total_seconds,omitempty"`

	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}
