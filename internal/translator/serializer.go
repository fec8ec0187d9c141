package translator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// SerializerConfig configures a Serializer.
type SerializerConfig struct {
	// Timeout bounds each translate call, not the wait for the permit.
	Timeout time.Duration
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// SerializerStats reports permit usage.
type SerializerStats struct {
	Calls     int64         `json:"calls"`
	Failures  int64         `json:"failures"`
	Waiting   int64         `json:"waiting"`
	InFlight  bool          `json:"in_flight"`
	TotalWait time.Duration `json:"total_wait_ns"`
	MaxWait   time.Duration `json:"max_wait_ns"`
	TotalCall time.Duration `json:"total_call_ns"`
}

// Serializer admits one translate call at a time across the whole process.
// The wrapped translator's session state (rolling history, model cursor)
// is only ever touched by the permit holder. Detect and render never take
// the permit.
type Serializer struct {
	inner   BatchTranslator
	permit  *semaphore.Weighted
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	stats SerializerStats
}

// NewSerializer wraps inner.
func NewSerializer(inner BatchTranslator, cfg SerializerConfig) *Serializer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Serializer{
		inner:   inner,
		permit:  semaphore.NewWeighted(1),
		timeout: cfg.Timeout,
		logger:  cfg.Logger.With("component", "serializer"),
	}
}

// Name returns the wrapped translator's name.
func (s *Serializer) Name() string {
	return s.inner.Name()
}

// Translate waits for the permit, then calls the wrapped translator.
// Cancelling ctx while waiting returns without calling it.
func (s *Serializer) Translate(ctx context.Context, req Request) (*Result, error) {
	s.mu.Lock()
	s.stats.Waiting++
	s.mu.Unlock()

	waitStart := time.Now()
	err := s.permit.Acquire(ctx, 1)
	wait := time.Since(waitStart)

	s.mu.Lock()
	s.stats.Waiting--
	if err == nil {
		s.stats.InFlight = true
		s.stats.Calls++
		s.stats.TotalWait += wait
		s.stats.MaxWait = max(s.stats.MaxWait, wait)
	}
	s.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("waiting for translation permit: %w", err)
	}
	defer s.permit.Release(1)

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	callStart := time.Now()
	res, err := s.inner.Translate(callCtx, req)
	elapsed := time.Since(callStart)

	s.mu.Lock()
	s.stats.InFlight = false
	s.stats.TotalCall += elapsed
	if err != nil {
		s.stats.Failures++
	}
	s.mu.Unlock()

	s.logger.Debug("translate call finished",
		"page", req.Page, "texts", len(req.Texts), "wait", wait, "elapsed", elapsed, "error", err)

	if err != nil {
		return nil, err
	}
	return res, nil
}

// Stats returns a snapshot of permit usage.
func (s *Serializer) Stats() SerializerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
