// Package pipeline drives pages through the split detect, translate and
// render sequence against a worker, falls back to the unified page call
// when the worker lost the cached context, and aggregates chapters.
package pipeline

import (
	"time"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
)

// Status is the result of one page.
type Status string

const (
	StatusSuccess         Status = "success"
	StatusFallbackSuccess Status = "fallback_success"
	StatusFailed          Status = "failed"
)

// Stage is where a failed page stopped.
type Stage string

const (
	StageDetect    Stage = "detect"
	StageTranslate Stage = "translate"
	StageRender    Stage = "render"
	StageFallback  Stage = "fallback"
	// StageCancelled marks pages never started because the chapter was
	// cancelled.
	StageCancelled Stage = "cancelled"
)

// PageOutcome is the result of running one page.
type PageOutcome struct {
	Page         int              `json:"page"`
	Status       Status           `json:"status"`
	FailureStage Stage            `json:"failure_stage,omitempty"`
	Error        string           `json:"error,omitempty"`
	Code         rpc.Code         `json:"code,omitempty"`
	PipelineMode rpc.PipelineMode `json:"pipeline_mode,omitempty"`

	// Degraded is set when the page was recovered through the unified path.
	Degraded       bool     `json:"degraded,omitempty"`
	FallbackReason rpc.Code `json:"fallback_reason,omitempty"`
	// NoVisibleChange is set when detection found no text and the original
	// image was returned as is.
	NoVisibleChange bool `json:"no_visible_change,omitempty"`

	RegionsCount int           `json:"regions_count"`
	Translator   string        `json:"translator,omitempty"`
	Model        string        `json:"model,omitempty"`
	Elapsed      time.Duration `json:"elapsed_ns"`

	Image       []byte `json:"-"`
	ContentType string `json:"-"`
}

// OK reports whether the page produced an image.
func (o *PageOutcome) OK() bool {
	return o.Status == StatusSuccess || o.Status == StatusFallbackSuccess
}

// ChapterStatus summarizes a chapter.
type ChapterStatus string

const (
	ChapterSuccess ChapterStatus = "success"
	ChapterPartial ChapterStatus = "partial"
	ChapterError   ChapterStatus = "error"
)

// DeriveStatus computes the chapter status from its counts.
func DeriveStatus(successCount, failedCount int) ChapterStatus {
	switch {
	case successCount == 0:
		return ChapterError
	case failedCount == 0:
		return ChapterSuccess
	default:
		return ChapterPartial
	}
}

// ChapterResult is the aggregate of every page in a chapter.
// SuccessCount + FailedCount always equals Total.
type ChapterResult struct {
	ChapterID    string         `json:"chapter_id"`
	Status       ChapterStatus  `json:"status"`
	Total        int            `json:"total"`
	SuccessCount int            `json:"success_count"`
	FailedCount  int            `json:"failed_count"`
	Cancelled    bool           `json:"cancelled,omitempty"`
	Pages        []*PageOutcome `json:"pages"`
	Elapsed      time.Duration  `json:"elapsed_ns"`
}

// Recount re-derives counts and status from Pages.
func (r *ChapterResult) Recount() {
	r.Total = len(r.Pages)
	r.SuccessCount, r.FailedCount = 0, 0
	for _, p := range r.Pages {
		if p.OK() {
			r.SuccessCount++
		} else {
			r.FailedCount++
		}
	}
	r.Status = DeriveStatus(r.SuccessCount, r.FailedCount)
}
