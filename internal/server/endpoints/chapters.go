package endpoints

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/api"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/engine"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/home"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/pipeline"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/store"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/svcctx"
)

// Multipart fields of a chapter upload. Either one or more pages or a
// single pdf.
const (
	FieldPages = "pages"
	FieldPDF   = "pdf"
)

// maxChapterBytes bounds a whole chapter upload.
const maxChapterBytes = 1 << 30

// ChapterResponse is a chapter with its stored options.
type ChapterResponse struct {
	*pipeline.ChapterResult
	SourceLang string    `json:"source_lang,omitempty"`
	TargetLang string    `json:"target_lang,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func chapterResponse(ch *store.Chapter) ChapterResponse {
	return ChapterResponse{
		ChapterResult: ch.Result,
		SourceLang:    ch.Options.SourceLang,
		TargetLang:    ch.Options.TargetLang,
		CreatedAt:     ch.CreatedAt,
		UpdatedAt:     ch.UpdatedAt,
	}
}

// CreateChapterEndpoint handles POST /api/chapters.
type CreateChapterEndpoint struct{}

var _ api.Endpoint = (*CreateChapterEndpoint)(nil)

func (e *CreateChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/chapters", e.handler
}

func (e *CreateChapterEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Translate a chapter
//	@Description	Runs every page through the pipeline and stores the per-page outcomes.
//	@Description	Pages are numbered in upload order. A failed page never fails the request;
//	@Description	the chapter status is success, partial or error.
//	@Tags			chapters
//	@Accept			mpfd
//	@Produce		json
//	@Param			pages		formData	file	false	"Page images in reading order"
//	@Param			pdf			formData	file	false	"A PDF whose pages are the chapter"
//	@Param			source_lang	formData	string	false	"Source language"
//	@Param			target_lang	formData	string	false	"Target language"
//	@Param			mode		formData	string	false	"split or unified (defaults to the configured mode)"
//	@Success		200			{object}	ChapterResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Router			/api/chapters [post]
func (e *CreateChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChapterBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	mode, err := parseMode(r.FormValue(FieldMode))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pages, err := chapterPages(r.MultipartForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	homeDir := svcctx.HomeFrom(ctx)
	st := svcctx.StoreFrom(ctx)
	agg := svcctx.AggregatorFrom(ctx)
	logger := svcctx.LoggerFrom(ctx)

	chapterID := store.NewChapterID()
	if err := saveSources(homeDir, chapterID, pages); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	opts := engine.Options{
		SourceLang: r.FormValue(rpc.FieldSourceLang),
		TargetLang: r.FormValue(rpc.FieldTargetLang),
	}
	res, err := agg.Run(ctx, pipeline.Chapter{
		ID:      chapterID,
		Pages:   pages,
		Options: opts,
		Mode:    mode,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A disconnected client still gets its finished pages recorded.
	saveCtx := context.WithoutCancel(ctx)
	if err := st.SaveChapter(saveCtx, res, opts); err != nil {
		if logger != nil {
			logger.Error("failed to save chapter", "chapter_id", chapterID, "error", err)
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save chapter: %v", err))
		return
	}

	ch, err := st.GetChapter(saveCtx, chapterID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, chapterResponse(ch))
}

func (e *CreateChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	var pdf, sourceLang, targetLang, mode string
	cmd := &cobra.Command{
		Use:   "create [page images...]",
		Short: "Translate a chapter from page images or a PDF",
		Example: `  mangatl api chapters create 001.png 002.png 003.png
  mangatl api chapters create --pdf chapter.pdf --target-lang en`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var files []api.FormFile
			switch {
			case pdf != "" && len(args) > 0:
				return errors.New("pass page images or --pdf, not both")
			case pdf != "":
				files = append(files, api.FormFile{Field: FieldPDF, Path: pdf})
			case len(args) == 0:
				return errors.New("no pages given")
			default:
				for _, p := range args {
					files = append(files, api.FormFile{Field: FieldPages, Path: p})
				}
			}

			client := api.NewClient(getServerURL())
			var resp ChapterResponse
			if err := client.Upload(cmd.Context(), "/api/chapters", files, map[string]string{
				rpc.FieldSourceLang: sourceLang,
				rpc.FieldTargetLang: targetLang,
				FieldMode:           mode,
			}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&pdf, "pdf", "", "PDF file holding the chapter")
	cmd.Flags().StringVar(&sourceLang, "source-lang", "", "Source language")
	cmd.Flags().StringVar(&targetLang, "target-lang", "en", "Target language")
	cmd.Flags().StringVar(&mode, "mode", "", "Pipeline mode (split or unified)")
	return cmd
}

// chapterPages reads the uploaded pages, or splits the uploaded PDF.
func chapterPages(form *multipart.Form) ([][]byte, error) {
	pageFiles := form.File[FieldPages]
	pdfFiles := form.File[FieldPDF]
	switch {
	case len(pageFiles) > 0 && len(pdfFiles) > 0:
		return nil, errors.New("upload pages or a pdf, not both")
	case len(pdfFiles) > 1:
		return nil, errors.New("only one pdf per chapter")
	case len(pdfFiles) == 1:
		data, err := readFormFile(pdfFiles[0])
		if err != nil {
			return nil, err
		}
		return pipeline.LoadPDFPages(data)
	case len(pageFiles) == 0:
		return nil, errors.New("no pages uploaded")
	}

	pages := make([][]byte, 0, len(pageFiles))
	for _, fh := range pageFiles {
		data, err := readFormFile(fh)
		if err != nil {
			return nil, err
		}
		pages = append(pages, data)
	}
	return pages, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return data, nil
}

// saveSources keeps the uploaded pages so a failed page can be retried.
func saveSources(h *home.Dir, chapterID string, pages [][]byte) error {
	if err := h.EnsureChapterDirs(chapterID); err != nil {
		return err
	}
	for i, img := range pages {
		ext := pipeline.ExtensionFor(http.DetectContentType(img))
		if err := os.WriteFile(h.SourcePagePath(chapterID, i+1, ext), img, 0o644); err != nil {
			return fmt.Errorf("failed to save page %d: %w", i+1, err)
		}
	}
	return nil
}

// ListChaptersEndpoint handles GET /api/chapters.
type ListChaptersEndpoint struct{}

var _ api.Endpoint = (*ListChaptersEndpoint)(nil)

func (e *ListChaptersEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/chapters", e.handler
}

func (e *ListChaptersEndpoint) RequiresInit() bool { return true }

// ListChaptersResponse is the chapter listing.
type ListChaptersResponse struct {
	Chapters []*pipeline.ChapterResult `json:"chapters"`
}

// handler godoc
//
//	@Summary		List chapters
//	@Description	Newest first, without per-page detail
//	@Tags			chapters
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum chapters (default 50)"
//	@Success		200		{object}	ListChaptersResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/chapters [get]
func (e *ListChaptersEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	chapters, err := svcctx.StoreFrom(r.Context()).ListChapters(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if chapters == nil {
		chapters = []*pipeline.ChapterResult{}
	}
	writeJSON(w, http.StatusOK, ListChaptersResponse{Chapters: chapters})
}

func (e *ListChaptersEndpoint) Command(getServerURL func() string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List translated chapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListChaptersResponse
			if err := client.Get(cmd.Context(), fmt.Sprintf("/api/chapters?limit=%d", limit), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum chapters to list")
	return cmd
}

// GetChapterEndpoint handles GET /api/chapters/{chapter_id}.
type GetChapterEndpoint struct{}

var _ api.Endpoint = (*GetChapterEndpoint)(nil)

func (e *GetChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/chapters/{chapter_id}", e.handler
}

func (e *GetChapterEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a chapter
//	@Tags			chapters
//	@Produce		json
//	@Param			chapter_id	path		string	true	"Chapter ID"
//	@Success		200			{object}	ChapterResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/api/chapters/{chapter_id} [get]
func (e *GetChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	chapterID := r.PathValue("chapter_id")
	ch, err := svcctx.StoreFrom(r.Context()).GetChapter(r.Context(), chapterID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chapterResponse(ch))
}

func (e *GetChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <chapter_id>",
		Short: "Get a chapter and its page outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ChapterResponse
			if err := client.Get(cmd.Context(), "/api/chapters/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// DeleteChapterEndpoint handles DELETE /api/chapters/{chapter_id}.
type DeleteChapterEndpoint struct{}

var _ api.Endpoint = (*DeleteChapterEndpoint)(nil)

func (e *DeleteChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/chapters/{chapter_id}", e.handler
}

func (e *DeleteChapterEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Delete a chapter
//	@Description	Removes the stored outcomes and the source and translated page images.
//	@Tags			chapters
//	@Param			chapter_id	path	string	true	"Chapter ID"
//	@Success		204
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/chapters/{chapter_id} [delete]
func (e *DeleteChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	chapterID := r.PathValue("chapter_id")
	ctx := r.Context()

	// Only ids the store knows reach the filesystem.
	if err := svcctx.StoreFrom(ctx).DeleteChapter(ctx, chapterID); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := svcctx.HomeFrom(ctx).RemoveChapter(chapterID); err != nil {
		if logger := svcctx.LoggerFrom(ctx); logger != nil {
			logger.Error("failed to remove chapter files", "chapter_id", chapterID, "error", err)
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <chapter_id>",
		Short: "Delete a chapter and its page images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/chapters/"+args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}

// RetryPageEndpoint handles POST /api/chapters/{chapter_id}/pages/{page_num}/retry.
type RetryPageEndpoint struct{}

var _ api.Endpoint = (*RetryPageEndpoint)(nil)

func (e *RetryPageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/chapters/{chapter_id}/pages/{page_num}/retry", e.handler
}

func (e *RetryPageEndpoint) RequiresInit() bool { return true }

// RetryPageResponse is the retried page and the re-derived chapter.
type RetryPageResponse struct {
	Page    *pipeline.PageOutcome   `json:"page"`
	Chapter *pipeline.ChapterResult `json:"chapter"`
}

// handler godoc
//
//	@Summary		Retry one page
//	@Description	Re-runs a single page from its stored source image and updates the chapter counts.
//	@Tags			chapters
//	@Produce		json
//	@Param			chapter_id	path		string	true	"Chapter ID"
//	@Param			page_num	path		int		true	"Page number (1-indexed)"
//	@Success		200			{object}	RetryPageResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/api/chapters/{chapter_id}/pages/{page_num}/retry [post]
func (e *RetryPageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	chapterID := r.PathValue("chapter_id")
	pageNum, err := strconv.Atoi(r.PathValue("page_num"))
	if err != nil || pageNum < 1 {
		writeError(w, http.StatusBadRequest, "page_num must be a positive integer")
		return
	}

	ctx := r.Context()
	homeDir := svcctx.HomeFrom(ctx)
	st := svcctx.StoreFrom(ctx)
	agg := svcctx.AggregatorFrom(ctx)

	ch, err := st.GetChapter(ctx, chapterID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	src, err := homeDir.FindSourcePage(chapterID, pageNum)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("page %d not found", pageNum))
		return
	}
	img, err := os.ReadFile(src)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Once the page is running it completes and is recorded, even if the
	// client hangs up.
	runCtx := context.WithoutCancel(ctx)
	out := agg.RunPage(runCtx, chapterID, pageNum, img, ch.Options)
	if !out.OK() {
		// The image endpoint must not serve a result the chapter no longer
		// counts as a success.
		if stale, err := homeDir.FindOutputPage(chapterID, pageNum); err == nil {
			os.Remove(stale)
		}
	}

	res, err := st.UpdatePage(runCtx, chapterID, out)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RetryPageResponse{Page: out, Chapter: res})
}

func (e *RetryPageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <chapter_id> <page_num>",
		Short: "Retry one page of a chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp RetryPageResponse
			path := fmt.Sprintf("/api/chapters/%s/pages/%s/retry", args[0], args[1])
			if err := client.Post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// PageImageEndpoint handles GET /api/chapters/{chapter_id}/pages/{page_num}/image.
type PageImageEndpoint struct{}

var _ api.Endpoint = (*PageImageEndpoint)(nil)

func (e *PageImageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/chapters/{chapter_id}/pages/{page_num}/image", e.handler
}

func (e *PageImageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a translated page image
//	@Tags			chapters
//	@Produce		image/png
//	@Param			chapter_id	path		string	true	"Chapter ID"
//	@Param			page_num	path		int		true	"Page number (1-indexed)"
//	@Success		200			{file}		binary
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Router			/api/chapters/{chapter_id}/pages/{page_num}/image [get]
func (e *PageImageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	chapterID := r.PathValue("chapter_id")
	pageNum, err := strconv.Atoi(r.PathValue("page_num"))
	if err != nil || pageNum < 1 {
		writeError(w, http.StatusBadRequest, "page_num must be a positive integer")
		return
	}

	homeDir := svcctx.HomeFrom(r.Context())
	imagePath, err := homeDir.FindOutputPage(chapterID, pageNum)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("page %d has no translated image", pageNum))
		return
	}

	file, err := os.Open(imagePath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	http.ServeContent(w, r, filepath.Base(imagePath), fileInfo.ModTime(), file)
}

func (e *PageImageEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outputFile string
	cmd := &cobra.Command{
		Use:   "image <chapter_id> <page_num>",
		Short: "Download a translated page image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pageNum, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid page number: %w", err)
			}
			client := api.NewClient(getServerURL())
			resp, err := client.GetRaw(cmd.Context(), fmt.Sprintf("/api/chapters/%s/pages/%d/image", args[0], pageNum))
			if err != nil {
				return err
			}
			if outputFile == "" {
				ext := pipeline.ExtensionFor(resp.Header.Get("Content-Type"))
				outputFile = home.PageFileName(pageNum, ext)
			}
			if err := os.WriteFile(outputFile, resp.Body, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputFile, err)
			}
			fmt.Println(outputFile)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputFile, "file", "f", "", "Output file path")
	return cmd
}

// writeStoreError maps store.ErrNotFound to 404.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
