package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/engine"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/metrics"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/translator"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/worker"
)

// Worker is the worker RPC surface. *worker.Client implements it.
type Worker interface {
	Detect(ctx context.Context, img []byte, opts engine.Options) (*rpc.DetectResponse, error)
	Render(ctx context.Context, req *rpc.RenderRequest) (*worker.Rendered, error)
	Page(ctx context.Context, img []byte, opts engine.Options) (*worker.Rendered, error)
}

var _ Worker = (*worker.Client)(nil)

// RetryPolicy is the backoff applied while the worker answers NOT_READY.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultRetryPolicy waits up to about 15s in total for a warming worker.
var DefaultRetryPolicy = RetryPolicy{
	Attempts: 5,
	Delay:    500 * time.Millisecond,
	MaxDelay: 8 * time.Second,
}

// Config configures a Coordinator.
type Config struct {
	// Worker runs detect, render and page
	Worker Worker
	// Translator is called between detect and render; wrap it in a
	// translator.Serializer
	Translator translator.BatchTranslator
	// Mode is split (default) or unified
	Mode rpc.PipelineMode
	// NotReady is the backoff for NOT_READY and BUSY answers
	NotReady RetryPolicy
	// Metrics records page outcomes (optional)
	Metrics *metrics.Recorder
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// PageRequest is one page to translate.
type PageRequest struct {
	// ChapterID is used for attribution only
	ChapterID string
	// Page is 1-based within a chapter, 0 for standalone pages
	Page    int
	Image   []byte
	Options engine.Options
	// Mode overrides the coordinator mode when set
	Mode rpc.PipelineMode
}

// Coordinator runs the split pipeline for single pages.
type Coordinator struct {
	worker     Worker
	translator translator.BatchTranslator
	metrics    *metrics.Recorder
	logger     *slog.Logger

	mu     sync.RWMutex
	mode   rpc.PipelineMode
	policy RetryPolicy
}

// NewCoordinator creates a coordinator.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Worker == nil {
		return nil, errors.New("coordinator requires a worker")
	}
	if cfg.Translator == nil {
		return nil, errors.New("coordinator requires a translator")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Coordinator{
		worker:     cfg.Worker,
		translator: cfg.Translator,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With("component", "coordinator"),
	}
	if err := c.SetMode(cfg.Mode); err != nil {
		return nil, err
	}
	c.SetRetryPolicy(cfg.NotReady)
	return c, nil
}

// SetMode switches between split and unified execution.
// An empty mode selects split.
func (c *Coordinator) SetMode(mode rpc.PipelineMode) error {
	if mode == "" {
		mode = rpc.ModeSplit
	}
	if mode != rpc.ModeSplit && mode != rpc.ModeUnified {
		return fmt.Errorf("unknown pipeline mode %q", mode)
	}
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	return nil
}

// Mode returns the current execution mode.
func (c *Coordinator) Mode() rpc.PipelineMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// SetRetryPolicy replaces the NOT_READY backoff. Zero fields keep defaults.
func (c *Coordinator) SetRetryPolicy(p RetryPolicy) {
	if p.Attempts == 0 {
		p.Attempts = DefaultRetryPolicy.Attempts
	}
	if p.Delay <= 0 {
		p.Delay = DefaultRetryPolicy.Delay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	c.mu.Lock()
	c.policy = p
	c.mu.Unlock()
}

func (c *Coordinator) retryPolicy() RetryPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policy
}

// TranslatePage runs one page and always returns an outcome. Errors are
// reported through the outcome's status and failure stage.
func (c *Coordinator) TranslatePage(ctx context.Context, req PageRequest) *PageOutcome {
	start := time.Now()
	mode := req.Mode
	if mode == "" {
		mode = c.Mode()
	}

	var out *PageOutcome
	if mode == rpc.ModeUnified {
		out = c.unified(ctx, req)
	} else {
		out = c.split(ctx, req)
	}
	out.Page = req.Page
	out.Elapsed = time.Since(start)

	c.record(req, out)
	return out
}

func (c *Coordinator) split(ctx context.Context, req PageRequest) *PageOutcome {
	logger := c.logger.With("page", req.Page)
	if req.ChapterID != "" {
		logger = logger.With("chapter_id", req.ChapterID)
	}

	det, err := withBackoff(ctx, c.retryPolicy(), logger, "detect", func() (*rpc.DetectResponse, error) {
		return c.worker.Detect(ctx, req.Image, req.Options)
	})
	if err != nil {
		return failed(StageDetect, rpc.ModeSplit, err)
	}
	logger = logger.With("task_id", det.TaskID)

	if det.RegionsCount == 0 || len(det.Regions) == 0 {
		logger.Debug("no text detected, returning original image")
		c.metrics.RecordNoVisibleChange()
		return &PageOutcome{
			Status:          StatusSuccess,
			PipelineMode:    rpc.ModeSplit,
			NoVisibleChange: true,
			Image:           req.Image,
			ContentType:     http.DetectContentType(req.Image),
		}
	}

	texts := make([]string, len(det.Regions))
	for i, r := range det.Regions {
		texts[i] = r.Text
	}
	res, err := c.translator.Translate(ctx, translator.Request{
		Texts:      texts,
		SourceLang: req.Options.SourceLang,
		TargetLang: req.Options.TargetLang,
		Page:       req.Page,
	})
	if err != nil {
		logger.Error("translation failed", "error", err)
		return failed(StageTranslate, rpc.ModeSplit, err)
	}
	if len(res.Translations) != len(det.Regions) {
		err := fmt.Errorf("%w: got %d, want %d", translator.ErrCountMismatch, len(res.Translations), len(det.Regions))
		return failed(StageTranslate, rpc.ModeSplit, err)
	}

	regions := make([]rpc.TranslatedRegion, len(det.Regions))
	for i, r := range det.Regions {
		regions[i] = rpc.TranslatedRegion{RegionIndex: r.RegionIndex, Translation: res.Translations[i]}
	}
	renderReq := &rpc.RenderRequest{
		TaskID:            det.TaskID,
		ImageHash:         det.ImageHash,
		TranslatedRegions: regions,
		Translator:        res.Translator,
		Model:             res.Model,
		FallbackUsed:      res.FallbackUsed,
	}

	rendered, err := withBackoff(ctx, c.retryPolicy(), logger, "render", func() (*worker.Rendered, error) {
		return c.worker.Render(ctx, renderReq)
	})
	if err == nil {
		out := fromRendered(rendered, StatusSuccess, rpc.ModeSplit)
		out.Translator, out.Model = res.Translator, res.Model
		return out
	}

	code := rpc.CodeOf(err)
	if !code.TriggersFallback() {
		return failed(StageRender, rpc.ModeSplit, err)
	}

	logger.Warn("split render lost its context, falling back to unified page", "reason", code, "error", err)
	rendered, err = withBackoff(ctx, c.retryPolicy(), logger, "page", func() (*worker.Rendered, error) {
		return c.worker.Page(ctx, req.Image, req.Options)
	})
	if err != nil {
		logger.Error("fallback failed", "reason", code, "error", err)
		out := failed(StageFallback, rpc.ModeFallback, err)
		out.Degraded = true
		out.FallbackReason = code
		return out
	}
	out := fromRendered(rendered, StatusFallbackSuccess, rpc.ModeFallback)
	out.Degraded = true
	out.FallbackReason = code
	return out
}

func (c *Coordinator) unified(ctx context.Context, req PageRequest) *PageOutcome {
	logger := c.logger.With("page", req.Page)
	rendered, err := withBackoff(ctx, c.retryPolicy(), logger, "page", func() (*worker.Rendered, error) {
		return c.worker.Page(ctx, req.Image, req.Options)
	})
	if err != nil {
		stage := StageRender
		if rpc.CodeOf(err) == rpc.CodeTranslationFailed {
			stage = StageTranslate
		}
		logger.Error("unified page failed", "stage", stage, "error", err)
		return failed(stage, rpc.ModeUnified, err)
	}
	return fromRendered(rendered, StatusSuccess, rpc.ModeUnified)
}

func (c *Coordinator) record(req PageRequest, out *PageOutcome) {
	c.metrics.Record(metrics.Metric{
		ChapterID:      req.ChapterID,
		Page:           req.Page,
		Status:         string(out.Status),
		PipelineMode:   string(out.PipelineMode),
		FailureStage:   string(out.FailureStage),
		FallbackReason: string(out.FallbackReason),
		Translator:     out.Translator,
		Model:          out.Model,
		TotalSeconds:   out.Elapsed.Seconds(),
		Success:        out.OK(),
	})
}

// withBackoff retries fn while the worker reports NOT_READY or BUSY.
// Every other error is returned at once.
func withBackoff[T any](ctx context.Context, p RetryPolicy, logger *slog.Logger, op string, fn func() (T, error)) (T, error) {
	return retry.DoWithData(fn,
		retry.Context(ctx),
		retry.Attempts(p.Attempts),
		retry.Delay(p.Delay),
		retry.MaxDelay(p.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return rpc.CodeOf(err).Retryable()
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Info("worker not ready, backing off", "op", op, "attempt", n+1, "error", err)
		}),
	)
}

func failed(stage Stage, mode rpc.PipelineMode, err error) *PageOutcome {
	return &PageOutcome{
		Status:       StatusFailed,
		FailureStage: stage,
		PipelineMode: mode,
		Error:        err.Error(),
		Code:         rpc.CodeOf(err),
	}
}

func fromRendered(r *worker.Rendered, status Status, mode rpc.PipelineMode) *PageOutcome {
	return &PageOutcome{
		Status:       status,
		PipelineMode: mode,
		RegionsCount: r.RegionsCount,
		Translator:   r.Translator,
		Model:        r.Model,
		Image:        r.Image,
		ContentType:  r.ContentType,
	}
}
