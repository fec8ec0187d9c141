package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/engine"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/home"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/translator"
)

func chapterPages(t *testing.T, n int) [][]byte {
	t.Helper()
	pages := make([][]byte, n)
	for i := range pages {
		pages[i] = pageImage(t, uint8(i*10))
	}
	return pages
}

func newAggregator(t *testing.T, h *harness, concurrency int, sink PageSink) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(AggregatorConfig{Pages: h.coord, PageConcurrency: concurrency, Sink: sink})
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}
	return agg
}

func TestAggregator_PartialChapter(t *testing.T) {
	h := newHarness(t, "a", "b")
	h.tr.Fail = func(req translator.Request) error {
		if req.Page == 3 || req.Page == 7 {
			return errors.New("provider refused")
		}
		return nil
	}

	dir, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}
	agg := newAggregator(t, h, 2, &DirSink{Home: dir})

	res, err := agg.Run(context.Background(), Chapter{ID: "ch-1", Pages: chapterPages(t, 10)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Total != 10 || res.SuccessCount != 8 || res.FailedCount != 2 {
		t.Errorf("counts total=%d success=%d failed=%d", res.Total, res.SuccessCount, res.FailedCount)
	}
	if res.Status != ChapterPartial {
		t.Errorf("Status = %q, want partial", res.Status)
	}

	for i, p := range res.Pages {
		if p.Page != i+1 {
			t.Errorf("Pages[%d].Page = %d", i, p.Page)
		}
		wantFail := p.Page == 3 || p.Page == 7
		if wantFail != !p.OK() {
			t.Errorf("page %d status = %q", p.Page, p.Status)
		}
		if wantFail && p.FailureStage != StageTranslate {
			t.Errorf("page %d FailureStage = %q, want translate", p.Page, p.FailureStage)
		}
	}

	files, err := filepath.Glob(filepath.Join(dir.OutputDir("ch-1"), "page_*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 8 {
		t.Errorf("output files = %d, want 8", len(files))
	}
	if _, err := dir.FindOutputPage("ch-1", 3); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("failed page 3 has output: %v", err)
	}
}

func TestAggregator_SerializesTranslation(t *testing.T) {
	h := newHarness(t, "a", "b", "c")
	h.tr.Latency = 5 * time.Millisecond
	h.engine.RenderLatency = 5 * time.Millisecond

	agg := newAggregator(t, h, 2, nil)
	res, err := agg.Run(context.Background(), Chapter{ID: "ch-2", Pages: chapterPages(t, 8)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Status != ChapterSuccess || res.SuccessCount != 8 {
		t.Fatalf("result = %+v", res)
	}
	if h.tr.Reentered() {
		t.Error("translator entered concurrently")
	}
	if h.tr.Calls() != 8 {
		t.Errorf("translator calls = %d, want 8", h.tr.Calls())
	}
}

func TestAggregator_AllFailed(t *testing.T) {
	h := newHarness(t, "a")
	h.worker.credential = "Bearer nope"

	agg := newAggregator(t, h, 0, nil)
	res, err := agg.Run(context.Background(), Chapter{ID: "ch-3", Pages: chapterPages(t, 3)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Status != ChapterError || res.FailedCount != 3 {
		t.Errorf("result status=%q failed=%d", res.Status, res.FailedCount)
	}
}

func TestAggregator_Cancel(t *testing.T) {
	h := newHarness(t, "a")
	h.tr.Latency = 80 * time.Millisecond

	agg := newAggregator(t, h, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	defer cancel()

	res, err := agg.Run(ctx, Chapter{ID: "ch-4", Pages: chapterPages(t, 5)})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Cancelled {
		t.Error("Cancelled = false")
	}
	if res.Total != 5 || res.SuccessCount+res.FailedCount != 5 {
		t.Errorf("counts total=%d success=%d failed=%d", res.Total, res.SuccessCount, res.FailedCount)
	}
	if !res.Pages[0].OK() {
		t.Errorf("in-flight page 1 = %+v, want completed", res.Pages[0])
	}
	for _, p := range res.Pages[1:] {
		if p.FailureStage != StageCancelled {
			t.Errorf("page %d stage = %q, want cancelled", p.Page, p.FailureStage)
		}
	}
	if h.worker.svc.Cache().Len() != 0 {
		t.Error("cancelled chapter left contexts in the worker cache")
	}
}

func TestAggregator_RunPage(t *testing.T) {
	h := newHarness(t, "a")
	dir, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	agg := newAggregator(t, h, 1, &DirSink{Home: dir})

	out := agg.RunPage(context.Background(), "ch-5", 4, pageImage(t, 3), engine.Options{TargetLang: "en"})
	if !out.OK() || out.Page != 4 {
		t.Fatalf("RunPage() = %+v", out)
	}
	path, err := dir.FindOutputPage("ch-5", 4)
	if err != nil {
		t.Fatalf("FindOutputPage() error = %v", err)
	}
	if filepath.Base(path) != "page_0004.png" {
		t.Errorf("output = %s", path)
	}
}

func TestAggregator_EmptyChapter(t *testing.T) {
	h := newHarness(t)
	agg := newAggregator(t, h, 1, nil)
	if _, err := agg.Run(context.Background(), Chapter{ID: "empty"}); err == nil {
		t.Error("Run() accepted a chapter without pages")
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		success, failed int
		want            ChapterStatus
	}{
		{3, 0, ChapterSuccess},
		{2, 1, ChapterPartial},
		{0, 3, ChapterError},
		{0, 0, ChapterError},
	}
	for _, tt := range tests {
		if got := DeriveStatus(tt.success, tt.failed); got != tt.want {
			t.Errorf("DeriveStatus(%d, %d) = %q, want %q", tt.success, tt.failed, got, tt.want)
		}
	}
}

func TestChapterResult_Recount(t *testing.T) {
	res := &ChapterResult{Pages: []*PageOutcome{
		{Page: 1, Status: StatusSuccess},
		{Page: 2, Status: StatusFailed, FailureStage: StageRender},
		{Page: 3, Status: StatusFallbackSuccess, PipelineMode: rpc.ModeFallback},
	}}
	res.Recount()
	if res.Total != 3 || res.SuccessCount != 2 || res.FailedCount != 1 || res.Status != ChapterPartial {
		t.Errorf("after Recount: %+v", res)
	}

	res.Pages[1] = &PageOutcome{Page: 2, Status: StatusSuccess}
	res.Recount()
	if res.Status != ChapterSuccess || res.FailedCount != 0 {
		t.Errorf("after retry: %+v", res)
	}
}

func TestExtensionFor(t *testing.T) {
	tests := map[string]string{
		"image/jpeg": "jpg",
		"image/png":  "png",
		"image/webp": "webp",
		"":           "png",
	}
	for ct, want := range tests {
		if got := ExtensionFor(ct); got != want {
			t.Errorf("ExtensionFor(%q) = %q, want %q", ct, got, want)
		}
	}
}
