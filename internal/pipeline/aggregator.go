package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/engine"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
)

// DefaultPageConcurrency is how many pages of a chapter run at once.
const DefaultPageConcurrency = 2

// PageTranslator runs one page. *Coordinator implements it.
type PageTranslator interface {
	TranslatePage(ctx context.Context, req PageRequest) *PageOutcome
}

// PageSink persists a finished page image.
type PageSink interface {
	SavePage(ctx context.Context, chapterID string, out *PageOutcome) error
}

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	// Pages runs each page
	Pages PageTranslator
	// PageConcurrency bounds pages in flight (default: 2)
	PageConcurrency int
	// Sink stores successful page images (optional)
	Sink PageSink
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// Chapter is an ordered list of page images to translate.
type Chapter struct {
	ID      string
	Pages   [][]byte
	Options engine.Options
	Mode    rpc.PipelineMode
}

// Aggregator runs every page of a chapter and accounts for each one.
// A failed page never stops the chapter.
type Aggregator struct {
	pages       PageTranslator
	concurrency int
	sink        PageSink
	logger      *slog.Logger
}

// NewAggregator creates an aggregator.
func NewAggregator(cfg AggregatorConfig) (*Aggregator, error) {
	if cfg.Pages == nil {
		return nil, errors.New("aggregator requires a page translator")
	}
	if cfg.PageConcurrency <= 0 {
		cfg.PageConcurrency = DefaultPageConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Aggregator{
		pages:       cfg.Pages,
		concurrency: cfg.PageConcurrency,
		sink:        cfg.Sink,
		logger:      cfg.Logger.With("component", "aggregator"),
	}, nil
}

// Run translates every page of ch in order with bounded concurrency.
//
// Cancelling ctx stops new pages from starting; those are reported failed
// with stage cancelled. Pages already running finish on a context detached
// from the cancellation so their worker tasks are consumed rather than left
// to expire.
func (a *Aggregator) Run(ctx context.Context, ch Chapter) (*ChapterResult, error) {
	if len(ch.Pages) == 0 {
		return nil, errors.New("chapter has no pages")
	}

	start := time.Now()
	logger := a.logger.With("chapter_id", ch.ID, "pages", len(ch.Pages))
	logger.Info("chapter started", "concurrency", a.concurrency)

	inflight := context.WithoutCancel(ctx)
	outcomes := make([]*PageOutcome, len(ch.Pages))

	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)
	for i, img := range ch.Pages {
		page := i + 1
		g.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i] = &PageOutcome{
					Page:         page,
					Status:       StatusFailed,
					FailureStage: StageCancelled,
					Error:        ctx.Err().Error(),
				}
				return nil
			}
			outcomes[i] = a.runPage(inflight, ch.ID, PageRequest{
				ChapterID: ch.ID,
				Page:      page,
				Image:     img,
				Options:   ch.Options,
				Mode:      ch.Mode,
			})
			return nil
		})
	}
	g.Wait()

	res := &ChapterResult{
		ChapterID: ch.ID,
		Pages:     outcomes,
		Cancelled: ctx.Err() != nil,
		Elapsed:   time.Since(start),
	}
	res.Recount()

	logger.Info("chapter finished",
		"status", res.Status, "success", res.SuccessCount, "failed", res.FailedCount,
		"cancelled", res.Cancelled, "elapsed", res.Elapsed)
	return res, nil
}

// RunPage translates a single page of a chapter, e.g. to retry it.
func (a *Aggregator) RunPage(ctx context.Context, chapterID string, page int, img []byte, opts engine.Options) *PageOutcome {
	return a.runPage(ctx, chapterID, PageRequest{
		ChapterID: chapterID,
		Page:      page,
		Image:     img,
		Options:   opts,
	})
}

func (a *Aggregator) runPage(ctx context.Context, chapterID string, req PageRequest) *PageOutcome {
	out := a.pages.TranslatePage(ctx, req)
	out.Page = req.Page
	if !out.OK() {
		a.logger.Warn("page failed",
			"chapter_id", chapterID, "page", req.Page, "stage", out.FailureStage, "error", out.Error)
		return out
	}
	if a.sink != nil {
		if err := a.sink.SavePage(ctx, chapterID, out); err != nil {
			a.logger.Error("failed to save page", "chapter_id", chapterID, "page", req.Page, "error", err)
			out.Status = StatusFailed
			out.FailureStage = StageRender
			out.Error = err.Error()
		}
	}
	return out
}
