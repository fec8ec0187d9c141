package endpoints

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/api"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/engine"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/svcctx"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/worker"
)

// maxImageBytes bounds a single page upload.
const maxImageBytes = 64 << 20

// DetectEndpoint handles POST /internal/detect on the worker.
type DetectEndpoint struct{}

var _ api.Endpoint = (*DetectEndpoint)(nil)

func (e *DetectEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", rpc.PathDetect, e.handler
}

func (e *DetectEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Detect text regions
//	@Description	Runs detection and OCR, caches the page context and returns a task handle for render.
//	@Tags			worker
//	@Accept			mpfd
//	@Produce		json
//	@Security		BearerAuth
//	@Param			image		formData	file	true	"Page image"
//	@Param			source_lang	formData	string	false	"Source language"
//	@Param			target_lang	formData	string	false	"Target language"
//	@Success		200			{object}	rpc.DetectResponse
//	@Failure		400			{object}	rpc.ErrorResponse
//	@Failure		401			{object}	rpc.ErrorResponse
//	@Failure		503			{object}	rpc.ErrorResponse
//	@Router			/internal/detect [post]
func (e *DetectEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.WorkerFrom(r.Context())
	img, opts, err := readImageForm(svc, r)
	if err != nil {
		worker.WriteError(w, err)
		return
	}

	resp, err := svc.Detect(r.Context(), r.Header.Get("Authorization"), img, opts)
	if err != nil {
		worker.WriteError(w, err)
		return
	}
	w.Header().Set(rpc.HeaderTaskID, resp.TaskID)
	writeJSON(w, http.StatusOK, resp)
}

func (e *DetectEndpoint) Command(_ func() string) *cobra.Command {
	// Worker-internal; the orchestrator is the only caller.
	return nil
}

// RenderEndpoint handles POST /internal/render on the worker.
type RenderEndpoint struct{}

var _ api.Endpoint = (*RenderEndpoint)(nil)

func (e *RenderEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", rpc.PathRender, e.handler
}

func (e *RenderEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Render translations
//	@Description	Consumes the cached context of a detect task and draws the supplied translations.
//	@Tags			worker
//	@Accept			json
//	@Produce		image/png
//	@Security		BearerAuth
//	@Param			request	body		rpc.RenderRequest	true	"Task handle and translations"
//	@Success		200		{file}		binary
//	@Failure		400		{object}	rpc.ErrorResponse
//	@Failure		401		{object}	rpc.ErrorResponse
//	@Failure		404		{object}	rpc.ErrorResponse
//	@Failure		410		{object}	rpc.ErrorResponse
//	@Failure		422		{object}	rpc.ErrorResponse
//	@Failure		503		{object}	rpc.ErrorResponse
//	@Router			/internal/render [post]
func (e *RenderEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.WorkerFrom(r.Context())
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageBytes))
	if err != nil {
		worker.WriteError(w, rpc.Errorf(rpc.CodeRenderInputInvalid, "failed to read body: %v", err))
		return
	}

	out, err := svc.Render(r.Context(), r.Header.Get("Authorization"), body)
	if err != nil {
		worker.WriteError(w, err)
		return
	}
	worker.WriteRendered(w, out)
}

func (e *RenderEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}

// PageEndpoint handles POST /internal/page on the worker.
type PageEndpoint struct{}

var _ api.Endpoint = (*PageEndpoint)(nil)

func (e *PageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", rpc.PathPage, e.handler
}

func (e *PageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Translate a page in one call
//	@Description	Detects, translates and renders without the context cache.
//	@Tags			worker
//	@Accept			mpfd
//	@Produce		image/png
//	@Security		BearerAuth
//	@Param			image		formData	file	true	"Page image"
//	@Param			source_lang	formData	string	false	"Source language"
//	@Param			target_lang	formData	string	false	"Target language"
//	@Success		200			{file}		binary
//	@Failure		400			{object}	rpc.ErrorResponse
//	@Failure		401			{object}	rpc.ErrorResponse
//	@Failure		503			{object}	rpc.ErrorResponse
//	@Router			/internal/page [post]
func (e *PageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.WorkerFrom(r.Context())
	img, opts, err := readImageForm(svc, r)
	if err != nil {
		worker.WriteError(w, err)
		return
	}

	out, err := svc.Page(r.Context(), r.Header.Get("Authorization"), img, opts)
	if err != nil {
		worker.WriteError(w, err)
		return
	}
	worker.WriteRendered(w, out)
}

func (e *PageEndpoint) Command(_ func() string) *cobra.Command {
	return nil
}

// readImageForm reads the page image and language fields of a worker
// request. The credential is checked before the form so an unauthenticated
// caller never learns about form errors.
func readImageForm(svc *worker.Service, r *http.Request) ([]byte, engine.Options, error) {
	var opts engine.Options
	if err := svc.Authorize(r.Header.Get("Authorization")); err != nil {
		return nil, opts, err
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return nil, opts, rpc.Errorf(rpc.CodeInvalidImage, "failed to parse form: %v", err)
	}
	defer r.MultipartForm.RemoveAll()

	f, _, err := r.FormFile(rpc.FieldImage)
	if err != nil {
		return nil, opts, rpc.Errorf(rpc.CodeInvalidImage, "missing %s field", rpc.FieldImage)
	}
	defer f.Close()

	img, err := io.ReadAll(f)
	if err != nil {
		return nil, opts, rpc.Errorf(rpc.CodeInvalidImage, "failed to read image: %v", err)
	}
	if len(img) == 0 {
		return nil, opts, rpc.Errorf(rpc.CodeInvalidImage, "empty image")
	}
	opts.SourceLang = r.FormValue(rpc.FieldSourceLang)
	opts.TargetLang = r.FormValue(rpc.FieldTargetLang)
	return img, opts, nil
}

// formFileBytes reads one uploaded file of a parsed multipart form.
func formFileBytes(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("missing %s field", field)
	}
	defer f.Close()
	return io.ReadAll(f)
}
