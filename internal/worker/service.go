// Package worker implements the GPU side of the split pipeline: detect
// stores a context in the process-local cache, render consumes it, and page
// runs the whole thing in one call.
package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/ctxcache"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/engine"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/translator"
)

// Config configures a Service.
type Config struct {
	// Engine runs detection and rendering
	Engine engine.Engine
	// Translator serves the unified page path; Page fails without one
	Translator translator.BatchTranslator
	// Cache holds contexts between detect and render (default: ctxcache defaults)
	Cache *ctxcache.Cache[*engine.Context]
	// AuthToken is the shared bearer token; empty disables auth
	AuthToken string
	// WarmupTimeout bounds engine warmup (default: 10m)
	WarmupTimeout time.Duration
	// JanitorInterval is how often expired contexts are purged (default: 60s)
	JanitorInterval time.Duration
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// Rendered is a finished page image plus the metadata sent back as headers.
type Rendered struct {
	Image        []byte
	ContentType  string
	Mode         rpc.PipelineMode
	RegionsCount int
	Elapsed      time.Duration
	Translator   string
	Model        string
	FallbackUsed bool
}

// Status is reported on the worker's /status endpoint.
type Status struct {
	Engine   string           `json:"engine"`
	Ready    bool             `json:"ready"`
	Cache    ctxcache.Stats   `json:"cache"`
	Detects  int64            `json:"detects"`
	Renders  int64            `json:"renders"`
	Pages    int64            `json:"pages"`
	Failures map[rpc.Code]int `json:"failures,omitempty"`
}

// Service runs worker operations. At most one detect, render or page call
// touches the engine at a time; queued calls give up when their context ends.
type Service struct {
	engine     engine.Engine
	translator translator.BatchTranslator
	cache      *ctxcache.Cache[*engine.Context]
	auth       string
	throttle   *semaphore.Weighted
	logger     *slog.Logger

	warmupTimeout   time.Duration
	janitorInterval time.Duration

	mu       sync.Mutex
	detects  int64
	renders  int64
	pages    int64
	failures map[rpc.Code]int
}

// New creates a worker service.
func New(cfg Config) (*Service, error) {
	if cfg.Engine == nil {
		return nil, errors.New("worker requires an engine")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Cache == nil {
		cfg.Cache = ctxcache.New[*engine.Context](ctxcache.Config{Logger: cfg.Logger})
	}
	if cfg.WarmupTimeout <= 0 {
		cfg.WarmupTimeout = 10 * time.Minute
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = time.Minute
	}
	return &Service{
		engine:          cfg.Engine,
		translator:      cfg.Translator,
		cache:           cfg.Cache,
		auth:            cfg.AuthToken,
		throttle:        semaphore.NewWeighted(1),
		logger:          cfg.Logger.With("component", "worker", "engine", cfg.Engine.Name()),
		warmupTimeout:   cfg.WarmupTimeout,
		janitorInterval: cfg.JanitorInterval,
		failures:        make(map[rpc.Code]int),
	}, nil
}

// Start warms the engine and runs the cache janitor in the background.
// Until warmup succeeds every operation answers NOT_READY.
func (s *Service) Start(ctx context.Context) {
	go func() {
		if err := s.Warmup(ctx); err != nil {
			s.logger.Error("engine warmup failed", "error", err)
		}
	}()
	go s.cache.Janitor(ctx, s.janitorInterval)
}

// Warmup loads the engine models.
func (s *Service) Warmup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.warmupTimeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("warming up engine")
	if err := s.engine.Warmup(ctx); err != nil {
		return fmt.Errorf("warmup: %w", err)
	}
	s.logger.Info("engine ready", "elapsed", time.Since(start))
	return nil
}

// Ready reports whether the engine is warmed up.
func (s *Service) Ready() bool {
	return s.engine.Ready()
}

// Cache exposes the context cache.
func (s *Service) Cache() *ctxcache.Cache[*engine.Context] {
	return s.cache
}

// Detect runs detection and OCR, caches the context and returns its handle.
// A page with no text is a success with zero regions.
func (s *Service) Detect(ctx context.Context, credential string, img []byte, opts engine.Options) (*rpc.DetectResponse, error) {
	if err := s.Authorize(credential); err != nil {
		return nil, s.fail(err)
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, s.fail(err)
	}
	defer release()

	if !s.engine.Ready() {
		return nil, s.fail(rpc.Errorf(rpc.CodeNotReady, "engine warming up"))
	}

	start := time.Now()
	c, err := s.engine.Detect(ctx, img, opts)
	if err != nil {
		return nil, s.fail(engineError("detect", err))
	}
	elapsed := time.Since(start)

	taskID := uuid.New().String()
	hash := ImageHash(img)
	// Nothing to render for an empty page, so it never takes a cache slot.
	var ttl int
	if len(c.Regions) > 0 {
		ttl = s.cache.Put(taskID, hash, c)
	}

	s.mu.Lock()
	s.detects++
	s.mu.Unlock()

	timings := make(map[string]int64, len(c.Timings)+1)
	for stage, d := range c.Timings {
		timings[stage] = d.Milliseconds()
	}
	timings["total"] = elapsed.Milliseconds()

	s.logger.Info("detect finished",
		"task_id", taskID, "regions", len(c.Regions), "elapsed", elapsed)

	return &rpc.DetectResponse{
		TaskID:       taskID,
		TTLSeconds:   ttl,
		ImageHash:    hash,
		RegionsCount: len(c.Regions),
		Regions:      toRPCRegions(c.Regions),
		ElapsedMS:    elapsed.Milliseconds(),
		Timings:      timings,
	}, nil
}

// Render consumes the cached context for a task and draws the supplied
// translations. Failures are checked in a fixed order and the first match
// wins: credential, readiness, request shape, absent task, expired task,
// image hash, region indices.
//
// The context is removed only once every check has passed, so a rejected
// render leaves a retryable task in place. A successful render consumes it.
func (s *Service) Render(ctx context.Context, credential string, body []byte) (*Rendered, error) {
	if err := s.Authorize(credential); err != nil {
		return nil, s.fail(err)
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, s.fail(err)
	}
	defer release()

	if !s.engine.Ready() {
		return nil, s.fail(rpc.Errorf(rpc.CodeNotReady, "engine warming up"))
	}

	req, err := rpc.DecodeRenderRequest(body)
	if err != nil {
		return nil, s.fail(err)
	}

	c, reason := s.cache.Get(req.TaskID, req.ImageHash)
	switch reason {
	case ctxcache.ReasonCacheMiss:
		return nil, s.fail(rpc.Errorf(rpc.CodeCacheMiss, "task %s not found", req.TaskID))
	case ctxcache.ReasonTaskExpired:
		return nil, s.fail(rpc.Errorf(rpc.CodeTaskExpired, "task %s expired", req.TaskID))
	case ctxcache.ReasonImageHashMismatch:
		return nil, s.fail(rpc.Errorf(rpc.CodeImageHashMismatch, "image hash does not match task %s", req.TaskID))
	}

	regions, err := req.Regions()
	if err != nil {
		return nil, s.fail(err)
	}
	byIndex, err := validateTranslations(regions, len(c.Regions))
	if err != nil {
		return nil, s.fail(err)
	}

	// Expiry can land between Get and Pop.
	c, ok := s.cache.Pop(req.TaskID)
	if !ok {
		return nil, s.fail(rpc.Errorf(rpc.CodeCacheMiss, "task %s consumed or expired", req.TaskID))
	}
	if err := c.SetTranslations(byIndex); err != nil {
		return nil, s.fail(rpc.Errorf(rpc.CodeRenderInputInvalid, "%v", err))
	}

	start := time.Now()
	out, err := s.engine.Render(ctx, c)
	if err != nil {
		return nil, s.fail(engineError("render", err))
	}
	elapsed := time.Since(start)

	s.mu.Lock()
	s.renders++
	s.mu.Unlock()

	s.logger.Info("render finished",
		"task_id", req.TaskID, "regions", len(c.Regions), "elapsed", elapsed,
		"translator", req.Translator, "model", req.Model)

	return &Rendered{
		Image:        out,
		ContentType:  engine.ContentType(c.Format),
		Mode:         rpc.ModeSplit,
		RegionsCount: len(c.Regions),
		Elapsed:      elapsed,
		Translator:   req.Translator,
		Model:        req.Model,
		FallbackUsed: req.FallbackUsed,
	}, nil
}

// Page runs detect, translate and render in one call without touching the
// cache. It is the unified path and the fallback target of the split path.
func (s *Service) Page(ctx context.Context, credential string, img []byte, opts engine.Options) (*Rendered, error) {
	if err := s.Authorize(credential); err != nil {
		return nil, s.fail(err)
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, s.fail(err)
	}
	defer release()

	if !s.engine.Ready() {
		return nil, s.fail(rpc.Errorf(rpc.CodeNotReady, "engine warming up"))
	}
	if s.translator == nil {
		return nil, s.fail(rpc.Errorf(rpc.CodeInternal, "unified page requires a translator"))
	}

	start := time.Now()
	c, err := s.engine.Detect(ctx, img, opts)
	if err != nil {
		return nil, s.fail(engineError("detect", err))
	}

	res := &translator.Result{Translator: s.translator.Name()}
	if len(c.Regions) > 0 {
		res, err = s.translator.Translate(ctx, translator.Request{
			Texts:      c.Texts(),
			SourceLang: opts.SourceLang,
			TargetLang: opts.TargetLang,
		})
		if err != nil {
			return nil, s.fail(rpc.Errorf(rpc.CodeTranslationFailed, "translate: %v", err))
		}
		byIndex := make(map[int]string, len(res.Translations))
		for i, t := range res.Translations {
			byIndex[i] = t
		}
		if err := c.SetTranslations(byIndex); err != nil {
			return nil, s.fail(rpc.Errorf(rpc.CodeTranslationFailed, "translate: %v", err))
		}
	}

	out, err := s.engine.Render(ctx, c)
	if err != nil {
		return nil, s.fail(engineError("render", err))
	}
	elapsed := time.Since(start)

	s.mu.Lock()
	s.pages++
	s.mu.Unlock()

	s.logger.Info("page finished", "regions", len(c.Regions), "elapsed", elapsed)

	return &Rendered{
		Image:        out,
		ContentType:  engine.ContentType(c.Format),
		Mode:         rpc.ModeUnified,
		RegionsCount: len(c.Regions),
		Elapsed:      elapsed,
		Translator:   res.Translator,
		Model:        res.Model,
		FallbackUsed: res.FallbackUsed,
	}, nil
}

// Status returns engine readiness, cache counters and request totals.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	failures := make(map[rpc.Code]int, len(s.failures))
	for code, n := range s.failures {
		failures[code] = n
	}
	return Status{
		Engine:   s.engine.Name(),
		Ready:    s.engine.Ready(),
		Cache:    s.cache.Stats(),
		Detects:  s.detects,
		Renders:  s.renders,
		Pages:    s.pages,
		Failures: failures,
	}
}

// ImageHash is the content hash that binds a task to its image.
func ImageHash(img []byte) string {
	sum := sha256.Sum256(img)
	return hex.EncodeToString(sum[:])
}

func (s *Service) acquire(ctx context.Context) (func(), error) {
	if err := s.throttle.Acquire(ctx, 1); err != nil {
		return nil, rpc.Errorf(rpc.CodeBusy, "gave up waiting for the engine: %v", err)
	}
	return func() { s.throttle.Release(1) }, nil
}

// fail counts err by code and returns it.
func (s *Service) fail(err error) error {
	code := rpc.CodeOf(err)
	if code == "" {
		code = rpc.CodeInternal
	}
	s.mu.Lock()
	s.failures[code]++
	s.mu.Unlock()
	if code.Fatal() || code.TriggersFallback() {
		s.logger.Warn("request rejected", "code", code, "error", err)
	}
	return err
}

// validateTranslations requires exactly one translation per cached region.
func validateTranslations(regions []rpc.TranslatedRegion, n int) (map[int]string, error) {
	if len(regions) != n {
		return nil, rpc.Errorf(rpc.CodeRenderInputInvalid, "got %d translations for %d regions", len(regions), n)
	}
	byIndex := make(map[int]string, n)
	for _, r := range regions {
		if r.RegionIndex < 0 || r.RegionIndex >= n {
			return nil, rpc.Errorf(rpc.CodeRenderInputInvalid, "region_index %d out of range [0,%d)", r.RegionIndex, n)
		}
		if _, dup := byIndex[r.RegionIndex]; dup {
			return nil, rpc.Errorf(rpc.CodeRenderInputInvalid, "duplicate region_index %d", r.RegionIndex)
		}
		byIndex[r.RegionIndex] = r.Translation
	}
	return byIndex, nil
}

// engineError classifies an engine failure.
func engineError(stage string, err error) error {
	switch {
	case errors.Is(err, engine.ErrNotReady):
		return rpc.Errorf(rpc.CodeNotReady, "%s: %v", stage, err)
	case errors.Is(err, engine.ErrInvalidImage):
		return rpc.Errorf(rpc.CodeInvalidImage, "%s: %v", stage, err)
	default:
		return rpc.Errorf(rpc.CodeInternal, "%s: %v", stage, err)
	}
}

func toRPCRegions(regions []engine.TextRegion) []rpc.Region {
	out := make([]rpc.Region, len(regions))
	for i, r := range regions {
		poly := make([][2]int, len(r.Polygon))
		for j, p := range r.Polygon {
			poly[j] = [2]int{p.X, p.Y}
		}
		out[i] = rpc.Region{
			RegionIndex: r.Index,
			Text:        r.Text,
			Polygon:     poly,
			FontSize:    r.FontSize,
			Direction:   r.Direction,
			FgColor:     [3]uint8{r.FgColor.R, r.FgColor.G, r.FgColor.B},
			BgColor:     [3]uint8{r.BgColor.R, r.BgColor.G, r.BgColor.B},
			StrokeWidth: r.StrokeWidth,
		}
	}
	return out
}
