package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/engine"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/pipeline"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleChapter(id string) *pipeline.ChapterResult {
	res := &pipeline.ChapterResult{
		ChapterID: id,
		Elapsed:   1500 * time.Millisecond,
		Pages: []*pipeline.PageOutcome{
			{Page: 1, Status: pipeline.StatusSuccess, PipelineMode: rpc.ModeSplit, RegionsCount: 3, Translator: "openai", Model: "gpt-4o-mini"},
			{Page: 2, Status: pipeline.StatusFallbackSuccess, PipelineMode: rpc.ModeFallback, Degraded: true, FallbackReason: rpc.CodeCacheMiss},
			{Page: 3, Status: pipeline.StatusFailed, FailureStage: pipeline.StageTranslate, Error: "count mismatch"},
			{Page: 4, Status: pipeline.StatusSuccess, NoVisibleChange: true},
		},
	}
	res.Recount()
	return res
}

func TestStore_Open_InvalidPath(t *testing.T) {
	if _, err := Open("/nonexistent/path/test.db"); err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestStore_SaveAndGetChapter(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	res := sampleChapter("ch-1")

	if err := s.SaveChapter(ctx, res, engine.Options{SourceLang: "ja", TargetLang: "en"}); err != nil {
		t.Fatalf("SaveChapter() error = %v", err)
	}

	ch, err := s.GetChapter(ctx, "ch-1")
	if err != nil {
		t.Fatalf("GetChapter() error = %v", err)
	}
	got := ch.Result
	if got.Status != pipeline.ChapterPartial || got.Total != 4 || got.SuccessCount != 3 || got.FailedCount != 1 {
		t.Errorf("chapter = %+v", got)
	}
	if got.Elapsed != 1500*time.Millisecond {
		t.Errorf("Elapsed = %v", got.Elapsed)
	}
	if ch.Options.SourceLang != "ja" || ch.Options.TargetLang != "en" {
		t.Errorf("Options = %+v", ch.Options)
	}
	if len(got.Pages) != 4 {
		t.Fatalf("len(Pages) = %d, want 4", len(got.Pages))
	}

	p2 := got.Pages[1]
	if p2.Page != 2 || !p2.Degraded || p2.FallbackReason != rpc.CodeCacheMiss || p2.PipelineMode != rpc.ModeFallback {
		t.Errorf("page 2 = %+v", p2)
	}
	p3 := got.Pages[2]
	if p3.FailureStage != pipeline.StageTranslate || p3.Error != "count mismatch" {
		t.Errorf("page 3 = %+v", p3)
	}
	if got.Pages[0].Translator != "openai" || got.Pages[0].RegionsCount != 3 {
		t.Errorf("page 1 = %+v", got.Pages[0])
	}
	if !got.Pages[3].NoVisibleChange {
		t.Error("page 4 lost NoVisibleChange")
	}
}

func TestStore_GetChapter_NotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.GetChapter(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetChapter() error = %v, want ErrNotFound", err)
	}
}

func TestStore_UpdatePage(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if err := s.SaveChapter(ctx, sampleChapter("ch-2"), engine.Options{}); err != nil {
		t.Fatalf("SaveChapter() error = %v", err)
	}

	res, err := s.UpdatePage(ctx, "ch-2", &pipeline.PageOutcome{Page: 3, Status: pipeline.StatusSuccess, PipelineMode: rpc.ModeSplit})
	if err != nil {
		t.Fatalf("UpdatePage() error = %v", err)
	}
	if res.Status != pipeline.ChapterSuccess || res.SuccessCount != 4 || res.FailedCount != 0 {
		t.Errorf("after retry = %+v", res)
	}
	if res.Pages[2].FailureStage != "" || res.Pages[2].Error != "" {
		t.Errorf("page 3 kept failure fields: %+v", res.Pages[2])
	}

	// a failing retry turns a success back into a failure
	res, err = s.UpdatePage(ctx, "ch-2", &pipeline.PageOutcome{Page: 1, Status: pipeline.StatusFailed, FailureStage: pipeline.StageDetect})
	if err != nil {
		t.Fatalf("UpdatePage() error = %v", err)
	}
	if res.Status != pipeline.ChapterPartial || res.SuccessCount != 3 || res.FailedCount != 1 {
		t.Errorf("after failed retry = %+v", res)
	}
	if res.SuccessCount+res.FailedCount != res.Total {
		t.Errorf("counts do not add up: %+v", res)
	}
}

func TestStore_UpdatePage_Unknown(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if err := s.SaveChapter(ctx, sampleChapter("ch-3"), engine.Options{}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		chapter string
		page    int
	}{
		{"unknown_chapter", "nope", 1},
		{"page_out_of_range", "ch-3", 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.UpdatePage(ctx, tt.chapter, &pipeline.PageOutcome{Page: tt.page, Status: pipeline.StatusSuccess})
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("UpdatePage() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_DeleteChapter(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for _, id := range []string{"keep", "drop"} {
		if err := s.SaveChapter(ctx, sampleChapter(id), engine.Options{}); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.DeleteChapter(ctx, "drop"); err != nil {
		t.Fatalf("DeleteChapter() error = %v", err)
	}
	if _, err := s.GetChapter(ctx, "drop"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetChapter() after delete error = %v, want ErrNotFound", err)
	}
	var orphans int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE chapter_id = ?`, "drop").Scan(&orphans); err != nil {
		t.Fatal(err)
	}
	if orphans != 0 {
		t.Errorf("%d pages left behind", orphans)
	}

	ch, err := s.GetChapter(ctx, "keep")
	if err != nil || len(ch.Result.Pages) != 4 {
		t.Errorf("other chapter disturbed: %v", err)
	}

	if err := s.DeleteChapter(ctx, "drop"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteChapter() error = %v, want ErrNotFound", err)
	}
}

func TestStore_SaveChapter_Replaces(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if err := s.SaveChapter(ctx, sampleChapter("ch-4"), engine.Options{}); err != nil {
		t.Fatal(err)
	}

	smaller := &pipeline.ChapterResult{
		ChapterID: "ch-4",
		Pages:     []*pipeline.PageOutcome{{Page: 1, Status: pipeline.StatusFailed, FailureStage: pipeline.StageRender}},
	}
	smaller.Recount()
	if err := s.SaveChapter(ctx, smaller, engine.Options{}); err != nil {
		t.Fatalf("SaveChapter() error = %v", err)
	}

	ch, err := s.GetChapter(ctx, "ch-4")
	if err != nil {
		t.Fatal(err)
	}
	if len(ch.Result.Pages) != 1 || ch.Result.Status != pipeline.ChapterError {
		t.Errorf("chapter = %+v", ch.Result)
	}
}

func TestStore_ListChapters(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := s.SaveChapter(ctx, sampleChapter(id), engine.Options{}); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListChapters(ctx, 2)
	if err != nil {
		t.Fatalf("ListChapters() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("len(ListChapters()) = %d, want 2", len(list))
	}
	for _, r := range list {
		if r.Pages != nil {
			t.Error("summary carries pages")
		}
	}
}

func TestNewChapterID(t *testing.T) {
	a, b := NewChapterID(), NewChapterID()
	if a == "" || a == b {
		t.Errorf("NewChapterID() = %q, %q", a, b)
	}
}
