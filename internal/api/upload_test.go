package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClient_Upload(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "001.png")
	if err := os.WriteFile(page, []byte("page-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/json":
			f, fh, err := r.FormFile("pages")
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(ErrorResponse{Error: "missing pages"})
				return
			}
			data, _ := io.ReadAll(f)
			json.NewEncoder(w).Encode(map[string]string{
				"name":   fh.Filename,
				"data":   string(data),
				"target": r.FormValue("target_lang"),
				"empty":  strings.Join(r.MultipartForm.Value["source_lang"], ","),
			})
		case "/raw":
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("X-Page-Status", "success")
			w.Write([]byte("rendered"))
		default:
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "worker unavailable"})
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ctx := context.Background()

	t.Run("json", func(t *testing.T) {
		var got map[string]string
		err := client.Upload(ctx, "/json", []FormFile{{Field: "pages", Path: page}},
			map[string]string{"target_lang": "en", "source_lang": ""}, &got)
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		if got["name"] != "001.png" || got["data"] != "page-bytes" || got["target"] != "en" {
			t.Errorf("server saw %v", got)
		}
		if got["empty"] != "" {
			t.Errorf("empty field was sent: %q", got["empty"])
		}
	})

	t.Run("raw", func(t *testing.T) {
		resp, err := client.UploadRaw(ctx, "/raw", []FormFile{{Field: "image", Path: page}}, nil)
		if err != nil {
			t.Fatalf("UploadRaw() error = %v", err)
		}
		if string(resp.Body) != "rendered" || resp.Header.Get("X-Page-Status") != "success" {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("error body", func(t *testing.T) {
		_, err := client.UploadRaw(ctx, "/fail", []FormFile{{Field: "image", Path: page}}, nil)
		if err == nil || !strings.Contains(err.Error(), "worker unavailable") {
			t.Errorf("UploadRaw() error = %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		err := client.Upload(ctx, "/json", []FormFile{{Field: "pages", Path: filepath.Join(dir, "nope.png")}}, nil, nil)
		if err == nil {
			t.Error("expected error for missing file")
		}
	})
}
