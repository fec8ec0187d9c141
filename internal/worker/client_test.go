package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/engine"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
)

// serveService exposes svc over HTTP the same way the worker endpoints do.
func serveService(t *testing.T, svc *Service) *httptest.Server {
	t.Helper()
	formImage := func(r *http.Request) ([]byte, engine.Options, error) {
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			return nil, engine.Options{}, err
		}
		f, _, err := r.FormFile(rpc.FieldImage)
		if err != nil {
			return nil, engine.Options{}, err
		}
		defer f.Close()
		img, err := io.ReadAll(f)
		return img, engine.Options{
			SourceLang: r.FormValue(rpc.FieldSourceLang),
			TargetLang: r.FormValue(rpc.FieldTargetLang),
		}, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+rpc.PathDetect, func(w http.ResponseWriter, r *http.Request) {
		img, opts, err := formImage(r)
		if err != nil {
			WriteError(w, rpc.Errorf(rpc.CodeInvalidImage, "%v", err))
			return
		}
		resp, err := svc.Detect(r.Context(), r.Header.Get("Authorization"), img, opts)
		if err != nil {
			WriteError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("POST "+rpc.PathRender, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		out, err := svc.Render(r.Context(), r.Header.Get("Authorization"), body)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteRendered(w, out)
	})
	mux.HandleFunc("POST "+rpc.PathPage, func(w http.ResponseWriter, r *http.Request) {
		img, opts, err := formImage(r)
		if err != nil {
			WriteError(w, rpc.Errorf(rpc.CodeInvalidImage, "%v", err))
			return
		}
		out, err := svc.Page(r.Context(), r.Header.Get("Authorization"), img, opts)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteRendered(w, out)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RoundTrip(t *testing.T) {
	f := newFixture(t, "line one", "line two")
	srv := serveService(t, f.svc)
	c := NewClient(ClientConfig{BaseURL: srv.URL + "/", AuthToken: testToken})
	ctx := context.Background()
	img := testImage(t, 64, 96)

	det, err := c.Detect(ctx, img, engine.Options{TargetLang: "en"})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if det.RegionsCount != 2 || det.ImageHash != ImageHash(img) || det.TaskID == "" {
		t.Fatalf("Detect() = %+v", det)
	}

	out, err := c.Render(ctx, &rpc.RenderRequest{
		TaskID:    det.TaskID,
		ImageHash: det.ImageHash,
		TranslatedRegions: []rpc.TranslatedRegion{
			{RegionIndex: 0, Translation: "one"},
			{RegionIndex: 1, Translation: "two"},
		},
		Translator:   "openai",
		Model:        "gpt-4o-mini",
		FallbackUsed: true,
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out.Mode != rpc.ModeSplit || out.RegionsCount != 2 || out.ContentType != "image/png" {
		t.Errorf("Render() = mode %q regions %d type %q", out.Mode, out.RegionsCount, out.ContentType)
	}
	if out.Translator != "openai" || out.Model != "gpt-4o-mini" || !out.FallbackUsed {
		t.Errorf("metadata not echoed: %+v", out)
	}
	if _, _, err := engine.Decode(out.Image); err != nil {
		t.Errorf("rendered bytes do not decode: %v", err)
	}

	page, err := c.Page(ctx, img, engine.Options{TargetLang: "en"})
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if page.Mode != rpc.ModeUnified || page.RegionsCount != 2 {
		t.Errorf("Page() = %+v", page)
	}
}

func TestClient_ErrorCodes(t *testing.T) {
	f := newFixture(t, "x")
	srv := serveService(t, f.svc)
	ctx := context.Background()

	t.Run("unauthorized", func(t *testing.T) {
		c := NewClient(ClientConfig{BaseURL: srv.URL, AuthToken: "wrong"})
		_, err := c.Detect(ctx, testImage(t, 64, 96), engine.Options{})
		if got := rpc.CodeOf(err); got != rpc.CodeUnauthorized {
			t.Errorf("code = %q, want UNAUTHORIZED", got)
		}
	})

	t.Run("cache_miss", func(t *testing.T) {
		c := NewClient(ClientConfig{BaseURL: srv.URL, AuthToken: testToken})
		_, err := c.Render(ctx, &rpc.RenderRequest{TaskID: "gone", ImageHash: "h"})
		var rerr *rpc.Error
		if !errors.As(err, &rerr) || rerr.Code != rpc.CodeCacheMiss {
			t.Fatalf("Render() error = %v, want CACHE_MISS", err)
		}
		if strings.Contains(rerr.Message, string(rpc.CodeCacheMiss)) {
			t.Errorf("message repeats the code: %q", rerr.Message)
		}
		if !rerr.Code.TriggersFallback() {
			t.Error("CACHE_MISS does not trigger fallback")
		}
	})

	t.Run("nil_regions_on_live_task", func(t *testing.T) {
		c := NewClient(ClientConfig{BaseURL: srv.URL, AuthToken: testToken})
		det, err := c.Detect(ctx, testImage(t, 64, 96), engine.Options{})
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		// A nil slice goes out as null and counts as an empty list.
		_, err = c.Render(ctx, &rpc.RenderRequest{TaskID: det.TaskID, ImageHash: det.ImageHash})
		if got := rpc.CodeOf(err); got != rpc.CodeRenderInputInvalid {
			t.Fatalf("Render() error = %v, want RENDER_INPUT_INVALID", err)
		}
		if !strings.Contains(err.Error(), "got 0 translations for 1 regions") {
			t.Errorf("error = %v, want a count mismatch", err)
		}
		if f.svc.Cache().Len() != 1 {
			t.Error("rejected render consumed the task")
		}
	})

	t.Run("not_ready", func(t *testing.T) {
		f.engine.SetReady(false)
		defer f.engine.SetReady(true)
		c := NewClient(ClientConfig{BaseURL: srv.URL, AuthToken: testToken})
		_, err := c.Page(ctx, testImage(t, 64, 96), engine.Options{})
		if got := rpc.CodeOf(err); got != rpc.CodeNotReady {
			t.Errorf("code = %q, want NOT_READY", got)
		}
	})
}

func TestClient_PlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream gone", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.Detect(context.Background(), []byte("img"), engine.Options{})
	var rerr *rpc.Error
	if !errors.As(err, &rerr) {
		t.Fatalf("Detect() error = %v, want *rpc.Error", err)
	}
	if rerr.Code != rpc.CodeFromStatus(http.StatusServiceUnavailable) || rerr.Message != "upstream gone" {
		t.Errorf("error = %+v", rerr)
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := c.Page(context.Background(), []byte("img"), engine.Options{})
	if err == nil {
		t.Fatal("Page() succeeded past its timeout")
	}
	if code := rpc.CodeOf(err); code != "" {
		t.Errorf("transport timeout classified as %q", code)
	}
}
