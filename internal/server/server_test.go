package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/aakaka525-design/manga-translator-ui-sub001/docs"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/config"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/engine"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/home"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/metrics"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/pipeline"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/server/endpoints"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/store"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/svcctx"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/translator"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/worker"
)

const testToken = "s3cret"

func pageImage(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 80, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// startServer runs srv until the test ends and returns its base URL.
func startServer(t *testing.T, srv *Server) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
	})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, port, _ := net.SplitHostPort(srv.Addr()); port != "0" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	baseURL := "http://" + srv.Addr()
	if err := waitForServer(ctx, baseURL, 5*time.Second); err != nil {
		t.Fatalf("server did not start: %v", err)
	}
	return baseURL
}

func waitForServer(ctx context.Context, baseURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/health", nil)
		if err != nil {
			return err
		}

		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		time.Sleep(20 * time.Millisecond)
	}

	return fmt.Errorf("server not ready after %s", timeout)
}

type stack struct {
	workerURL string
	orchURL   string
	engine    *engine.Mock
	services  *svcctx.Services
	home      *home.Dir
}

// newStack starts a worker with a mock engine and an orchestrator that
// drives it over HTTP.
func newStack(t *testing.T, texts ...string) *stack {
	t.Helper()
	return newStackWithEngine(t, engine.NewMock(texts...))
}

// newStackWithEngine is newStack around a preconfigured engine. The engine
// must not be modified once the worker is serving.
func newStackWithEngine(t *testing.T, eng *engine.Mock) *stack {
	t.Helper()
	svc, err := worker.New(worker.Config{
		Engine:     eng,
		Translator: translator.NewMock("U:"),
		AuthToken:  testToken,
	})
	if err != nil {
		t.Fatalf("worker.New() error = %v", err)
	}
	workerSrv, err := New(Config{
		Port:     "0",
		Role:     endpoints.RoleWorker,
		Services: &svcctx.Services{Worker: svc},
	})
	if err != nil {
		t.Fatalf("New(worker) error = %v", err)
	}
	workerURL := startServer(t, workerSrv)
	waitReady(t, workerURL)

	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	st, err := store.Open(h.DBPath())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ser := translator.NewSerializer(translator.NewMock("EN:"), translator.SerializerConfig{})
	rec := metrics.NewRecorder(0)
	coord, err := pipeline.NewCoordinator(pipeline.Config{
		Worker: worker.NewClient(worker.ClientConfig{
			BaseURL:   workerURL,
			AuthToken: testToken,
			Timeout:   10 * time.Second,
		}),
		Translator: ser,
		NotReady:   pipeline.RetryPolicy{Attempts: 2, Delay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		Metrics:    rec,
	})
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}
	agg, err := pipeline.NewAggregator(pipeline.AggregatorConfig{
		Pages: coord,
		Sink:  &pipeline.DirSink{Home: h},
	})
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}
	services := &svcctx.Services{
		Coordinator: coord,
		Aggregator:  agg,
		Serializer:  ser,
		Store:       st,
		Metrics:     rec,
		Home:        h,
	}
	orch, err := New(Config{Port: "0", Services: services})
	if err != nil {
		t.Fatalf("New(orchestrator) error = %v", err)
	}
	return &stack{
		workerURL: workerURL,
		orchURL:   startServer(t, orch),
		engine:    eng,
		services:  services,
		home:      h,
	}
}

func waitReady(t *testing.T, baseURL string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/ready")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("worker did not become ready")
}

type part struct {
	field string
	name  string
	data  []byte
}

func postForm(t *testing.T, url string, parts []part, fields map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		w, err := mw.CreateFormFile(p.field, p.name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(p.data)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Role: "gpu", Services: &svcctx.Services{}}); err == nil {
		t.Error("New() with unknown role should fail")
	}
	if _, err := New(Config{}); err == nil {
		t.Error("New() without config or services should fail")
	}
	srv, err := New(Config{Services: &svcctx.Services{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if srv.Role() != endpoints.RoleOrchestrator {
		t.Errorf("default role = %q", srv.Role())
	}
	if srv.Addr() != "127.0.0.1:8080" {
		t.Errorf("default addr = %q", srv.Addr())
	}
}

func TestServer_RequireInit(t *testing.T) {
	srv, err := New(Config{Port: "0", Services: &svcctx.Services{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	baseURL := startServer(t, srv)

	resp := postForm(t, baseURL+"/api/pages/translate",
		[]part{{rpc.FieldImage, "p.png", pageImage(t, 0x80)}}, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "not fully initialized") {
		t.Errorf("body = %s", body)
	}

	ready, err := http.Get(baseURL + "/ready")
	if err != nil {
		t.Fatal(err)
	}
	ready.Body.Close()
	if ready.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("/ready status = %d, want 503", ready.StatusCode)
	}
}

func TestServer_WorkerEndpoints(t *testing.T) {
	s := newStack(t, "こんにちは")

	t.Run("detect requires credential", func(t *testing.T) {
		resp := postForm(t, s.workerURL+rpc.PathDetect,
			[]part{{rpc.FieldImage, "p.png", pageImage(t, 0x80)}}, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
		var body rpc.ErrorResponse
		decodeJSON(t, resp, &body)
		if body.Code != rpc.CodeUnauthorized {
			t.Errorf("code = %q, want UNAUTHORIZED", body.Code)
		}
	})

	t.Run("render of unknown task is cache miss", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, s.workerURL+rpc.PathRender,
			strings.NewReader(`{"task_id":"nope","image_hash":"abc","translated_regions":[]}`))
		req.Header.Set("Authorization", worker.BearerHeader(testToken))
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
		var body rpc.ErrorResponse
		decodeJSON(t, resp, &body)
		if body.Code != rpc.CodeCacheMiss {
			t.Errorf("code = %q, want CACHE_MISS", body.Code)
		}
	})

	t.Run("status reports engine", func(t *testing.T) {
		resp, err := http.Get(s.workerURL + "/status")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var st endpoints.StatusResponse
		decodeJSON(t, resp, &st)
		if st.Role != "worker" || st.Worker == nil || !st.Worker.Ready {
			t.Errorf("status = %+v", st)
		}
	})

	t.Run("public api is not served", func(t *testing.T) {
		resp, err := http.Get(s.workerURL + "/api/chapters")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestServer_TranslatePage(t *testing.T) {
	s := newStack(t, "こんにちは", "さようなら")
	url := s.orchURL + "/api/pages/translate"

	t.Run("split", func(t *testing.T) {
		resp := postForm(t, url, []part{{rpc.FieldImage, "p.png", pageImage(t, 0x80)}},
			map[string]string{rpc.FieldTargetLang: "en"})
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
		}
		if got := resp.Header.Get(rpc.HeaderPipelineMode); got != string(rpc.ModeSplit) {
			t.Errorf("mode = %q, want split", got)
		}
		if got := resp.Header.Get(endpoints.HeaderPageStatus); got != string(pipeline.StatusSuccess) {
			t.Errorf("page status = %q", got)
		}
		if got := resp.Header.Get(endpoints.HeaderDegraded); got != "false" {
			t.Errorf("degraded = %q", got)
		}
		if got := resp.Header.Get(rpc.HeaderRegionsCount); got != "2" {
			t.Errorf("regions = %q, want 2", got)
		}
		if _, err := png.Decode(resp.Body); err != nil {
			t.Errorf("response is not a png: %v", err)
		}
	})

	t.Run("unified override", func(t *testing.T) {
		resp := postForm(t, url, []part{{rpc.FieldImage, "p.png", pageImage(t, 0x80)}},
			map[string]string{endpoints.FieldMode: "unified"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if got := resp.Header.Get(rpc.HeaderPipelineMode); got != string(rpc.ModeUnified) {
			t.Errorf("mode = %q, want unified", got)
		}
	})

	t.Run("invalid image", func(t *testing.T) {
		resp := postForm(t, url, []part{{rpc.FieldImage, "p.png", []byte("not an image")}}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		var body endpoints.PageFailure
		decodeJSON(t, resp, &body)
		if body.Code != rpc.CodeInvalidImage || body.FailureStage != pipeline.StageDetect {
			t.Errorf("failure = %+v", body)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		resp := postForm(t, url, []part{{rpc.FieldImage, "p.png", pageImage(t, 0x80)}},
			map[string]string{endpoints.FieldMode: "fallback_to_unified"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("missing image", func(t *testing.T) {
		resp := postForm(t, url, nil, map[string]string{rpc.FieldTargetLang: "en"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestServer_Chapters(t *testing.T) {
	s := newStack(t, "こんにちは")

	pages := []part{
		{endpoints.FieldPages, "001.png", pageImage(t, 0x10)},
		{endpoints.FieldPages, "002.png", []byte("corrupt")},
		{endpoints.FieldPages, "003.png", pageImage(t, 0x30)},
	}
	resp := postForm(t, s.orchURL+"/api/chapters", pages, map[string]string{rpc.FieldTargetLang: "en"})
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("create status = %d, body = %s", resp.StatusCode, body)
	}
	var created endpoints.ChapterResponse
	decodeJSON(t, resp, &created)

	if created.Status != pipeline.ChapterPartial || created.Total != 3 ||
		created.SuccessCount != 2 || created.FailedCount != 1 {
		t.Fatalf("chapter = %+v", created.ChapterResult)
	}
	if created.TargetLang != "en" {
		t.Errorf("target_lang = %q", created.TargetLang)
	}
	if p := created.Pages[1]; p.Page != 2 || p.FailureStage != pipeline.StageDetect || p.Code != rpc.CodeInvalidImage {
		t.Errorf("page 2 = %+v", p)
	}
	chapterID := created.ChapterID

	t.Run("get", func(t *testing.T) {
		resp, err := http.Get(s.orchURL + "/api/chapters/" + chapterID)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var got endpoints.ChapterResponse
		decodeJSON(t, resp, &got)
		if got.ChapterID != chapterID || len(got.Pages) != 3 || got.Status != pipeline.ChapterPartial {
			t.Errorf("chapter = %+v", got.ChapterResult)
		}
	})

	t.Run("list", func(t *testing.T) {
		resp, err := http.Get(s.orchURL + "/api/chapters")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var got endpoints.ListChaptersResponse
		decodeJSON(t, resp, &got)
		if len(got.Chapters) != 1 || got.Chapters[0].ChapterID != chapterID {
			t.Errorf("chapters = %+v", got.Chapters)
		}
	})

	t.Run("image", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("%s/api/chapters/%s/pages/1/image", s.orchURL, chapterID))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if _, err := png.Decode(resp.Body); err != nil {
			t.Errorf("image is not a png: %v", err)
		}
	})

	t.Run("failed page has no image", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("%s/api/chapters/%s/pages/2/image", s.orchURL, chapterID))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("retry after fixing source", func(t *testing.T) {
		src, err := s.home.FindSourcePage(chapterID, 2)
		if err != nil {
			t.Fatalf("FindSourcePage() error = %v", err)
		}
		if err := os.WriteFile(src, pageImage(t, 0x20), 0o644); err != nil {
			t.Fatal(err)
		}

		url := fmt.Sprintf("%s/api/chapters/%s/pages/2/retry", s.orchURL, chapterID)
		resp, err := http.Post(url, "application/json", nil)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var got endpoints.RetryPageResponse
		decodeJSON(t, resp, &got)
		if !got.Page.OK() || got.Page.Page != 2 {
			t.Errorf("page = %+v", got.Page)
		}
		if got.Chapter.Status != pipeline.ChapterSuccess || got.Chapter.SuccessCount != 3 || got.Chapter.FailedCount != 0 {
			t.Errorf("chapter = %+v", got.Chapter)
		}
		if _, err := s.home.FindOutputPage(chapterID, 2); err != nil {
			t.Errorf("retried page not written: %v", err)
		}
	})

	t.Run("retry failure removes output", func(t *testing.T) {
		src, _ := s.home.FindSourcePage(chapterID, 3)
		if err := os.WriteFile(src, []byte("corrupt"), 0o644); err != nil {
			t.Fatal(err)
		}
		url := fmt.Sprintf("%s/api/chapters/%s/pages/3/retry", s.orchURL, chapterID)
		resp, err := http.Post(url, "application/json", nil)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var got endpoints.RetryPageResponse
		decodeJSON(t, resp, &got)
		if got.Page.OK() || got.Chapter.Status != pipeline.ChapterPartial {
			t.Errorf("retry = %+v / %+v", got.Page, got.Chapter)
		}
		if got.Chapter.SuccessCount+got.Chapter.FailedCount != got.Chapter.Total {
			t.Errorf("counts do not add up: %+v", got.Chapter)
		}
		if _, err := s.home.FindOutputPage(chapterID, 3); err == nil {
			t.Error("stale output of failed page still present")
		}
	})

	t.Run("not found", func(t *testing.T) {
		for _, path := range []string{
			"/api/chapters/missing",
			"/api/chapters/" + chapterID + "/pages/9/image",
		} {
			resp, err := http.Get(s.orchURL + path)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("GET %s status = %d, want 404", path, resp.StatusCode)
			}
		}
		resp, err := http.Post(s.orchURL+"/api/chapters/"+chapterID+"/pages/9/retry", "application/json", nil)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("retry of missing page status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("bad uploads", func(t *testing.T) {
		resp := postForm(t, s.orchURL+"/api/chapters", nil, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("empty upload status = %d, want 400", resp.StatusCode)
		}
		resp = postForm(t, s.orchURL+"/api/chapters", []part{
			{endpoints.FieldPages, "001.png", pageImage(t, 0x10)},
			{endpoints.FieldPDF, "c.pdf", []byte("%PDF-1.4")},
		}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("pages+pdf status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("status and metrics", func(t *testing.T) {
		resp, err := http.Get(s.orchURL + "/status")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var st endpoints.StatusResponse
		decodeJSON(t, resp, &st)
		if st.Mode != string(rpc.ModeSplit) || st.Totals == nil || st.Totals.Pages < 3 {
			t.Errorf("status = %+v", st)
		}
		if st.Translation == nil || st.Translation.Calls == 0 {
			t.Errorf("translation stats = %+v", st.Translation)
		}

		mresp, err := http.Get(s.orchURL + "/api/metrics?chapter_id=" + chapterID)
		if err != nil {
			t.Fatal(err)
		}
		defer mresp.Body.Close()
		var list endpoints.ListMetricsResponse
		decodeJSON(t, mresp, &list)
		if len(list.Metrics) == 0 || list.Summary == nil || list.Summary.Count != len(list.Metrics) {
			t.Errorf("metrics = %+v", list)
		}
	})
}

func TestServer_DeleteChapter(t *testing.T) {
	s := newStack(t, "a")
	resp := postForm(t, s.orchURL+"/api/chapters", []part{{endpoints.FieldPages, "001.png", pageImage(t, 0x10)}}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created endpoints.ChapterResponse
	decodeJSON(t, resp, &created)
	chapterID := created.ChapterID

	del := func() int {
		req, err := http.NewRequest(http.MethodDelete, s.orchURL+"/api/chapters/"+chapterID, nil)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := del(); got != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", got)
	}
	for _, path := range []string{
		"/api/chapters/" + chapterID,
		"/api/chapters/" + chapterID + "/pages/1/image",
	} {
		resp, err := http.Get(s.orchURL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s after delete status = %d, want 404", path, resp.StatusCode)
		}
	}
	if _, err := os.Stat(s.home.ChapterDir(chapterID)); !os.IsNotExist(err) {
		t.Errorf("chapter files still present: %v", err)
	}
	if got := del(); got != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", got)
	}
}

func TestServer_RetryOutlivesClient(t *testing.T) {
	eng := engine.NewMock("a")
	eng.DetectLatency = 300 * time.Millisecond
	s := newStackWithEngine(t, eng)

	resp := postForm(t, s.orchURL+"/api/chapters", []part{{endpoints.FieldPages, "001.png", pageImage(t, 0x10)}}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created endpoints.ChapterResponse
	decodeJSON(t, resp, &created)
	chapterID := created.ChapterID

	// The client gives up long before detect returns.
	impatient := &http.Client{Timeout: 50 * time.Millisecond}
	url := fmt.Sprintf("%s/api/chapters/%s/pages/1/retry", s.orchURL, chapterID)
	if resp, err := impatient.Post(url, "application/json", nil); err == nil {
		resp.Body.Close()
		t.Fatal("retry returned before the page could have run")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(s.orchURL + "/api/chapters/" + chapterID)
		if err != nil {
			t.Fatal(err)
		}
		var got endpoints.ChapterResponse
		decodeJSON(t, resp, &got)
		resp.Body.Close()
		if got.UpdatedAt.After(created.UpdatedAt) {
			if got.Status != pipeline.ChapterSuccess || !got.Pages[0].OK() {
				t.Errorf("abandoned retry recorded %+v / %+v", got.ChapterResult, got.Pages[0])
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("abandoned retry was never recorded")
}

func TestServer_Swagger(t *testing.T) {
	s := newStack(t)
	resp, err := http.Get(s.orchURL + "/swagger.json")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var doc map[string]any
	decodeJSON(t, resp, &doc)
	paths, _ := doc["paths"].(map[string]any)
	if _, ok := paths["/api/pages/translate"]; !ok {
		t.Errorf("swagger paths missing /api/pages/translate: %v", paths)
	}
}

func TestServer_ConfigReload(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgFile, []byte("orchestrator:\n  mode: split\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	coord, err := pipeline.NewCoordinator(pipeline.Config{
		Worker:     worker.NewClient(worker.ClientConfig{BaseURL: "http://127.0.0.1:1"}),
		Translator: translator.NewMock(""),
	})
	if err != nil {
		t.Fatal(err)
	}
	srv, err := New(Config{
		Port:          "0",
		ConfigManager: mgr,
		Services:      &svcctx.Services{Coordinator: coord},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startServer(t, srv)
	mgr.WatchConfig(nil)
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(cfgFile, []byte("orchestrator:\n  mode: unified\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && coord.Mode() != rpc.ModeUnified {
		time.Sleep(20 * time.Millisecond)
	}
	if coord.Mode() != rpc.ModeUnified {
		t.Errorf("mode = %q after reload, want unified", coord.Mode())
	}
}

func TestBuildServices(t *testing.T) {
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Translator.Type = "mock"
	cfg.Engine.Type = "mock"
	cfg.Orchestrator.Mode = "unified"

	t.Run("worker", func(t *testing.T) {
		services, closers, err := buildServices(context.Background(), endpoints.RoleWorker, cfg, nil, nil)
		if err != nil {
			t.Fatalf("buildServices() error = %v", err)
		}
		if services.Worker == nil || services.Coordinator != nil {
			t.Errorf("worker services = %+v", services)
		}
		if services.Worker.Cache().Stats().Capacity != cfg.Worker.CacheCapacity {
			t.Errorf("cache capacity = %d", services.Worker.Cache().Stats().Capacity)
		}
		if len(closers) != 0 {
			t.Errorf("closers = %d, want 0", len(closers))
		}
	})

	t.Run("orchestrator", func(t *testing.T) {
		services, closers, err := buildServices(context.Background(), endpoints.RoleOrchestrator, cfg, h, nil)
		if err != nil {
			t.Fatalf("buildServices() error = %v", err)
		}
		defer func() {
			for _, c := range closers {
				c.Close()
			}
		}()
		if services.Coordinator == nil || services.Aggregator == nil || services.Store == nil {
			t.Errorf("orchestrator services = %+v", services)
		}
		if services.Coordinator.Mode() != rpc.ModeUnified {
			t.Errorf("mode = %q, want unified", services.Coordinator.Mode())
		}
	})

	t.Run("orchestrator without home", func(t *testing.T) {
		if _, _, err := buildServices(context.Background(), endpoints.RoleOrchestrator, cfg, nil, nil); err == nil {
			t.Error("expected error without home")
		}
	})

	t.Run("unknown types", func(t *testing.T) {
		if _, err := NewEngine(config.EngineCfg{Type: "cuda"}, nil); err == nil {
			t.Error("NewEngine() accepted unknown type")
		}
		if _, err := NewTranslator(context.Background(), config.TranslatorCfg{Type: "deepl"}, nil); err == nil {
			t.Error("NewTranslator() accepted unknown type")
		}
	})
}

func TestRetryPolicy(t *testing.T) {
	p := RetryPolicy(config.WorkerClientCfg{NotReadyAttempts: 7, NotReadyDelayMS: 250, NotReadyMaxDelayMS: 4000})
	if p.Attempts != 7 || p.Delay != 250*time.Millisecond || p.MaxDelay != 4*time.Second {
		t.Errorf("RetryPolicy() = %+v", p)
	}
	if p := RetryPolicy(config.WorkerClientCfg{NotReadyAttempts: -1}); p.Attempts != 0 {
		t.Errorf("negative attempts = %d, want 0", p.Attempts)
	}
}
