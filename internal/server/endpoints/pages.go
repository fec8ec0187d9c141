package endpoints

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/api"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/engine"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/pipeline"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/svcctx"
)

// Orchestrator response headers on a translated page.
const (
	HeaderPageStatus = "X-Page-Status"
	HeaderDegraded   = "X-Degraded"
)

// FieldMode is the optional form field that overrides the pipeline mode
// for one request.
const FieldMode = "mode"

// PageFailure is the body of a page that produced no image.
type PageFailure struct {
	Error        string           `json:"error"`
	Status       pipeline.Status  `json:"status"`
	FailureStage pipeline.Stage   `json:"failure_stage"`
	Code         rpc.Code         `json:"code,omitempty"`
	PipelineMode rpc.PipelineMode `json:"pipeline_mode,omitempty"`
}

// TranslatePageEndpoint handles POST /api/pages/translate.
type TranslatePageEndpoint struct{}

var _ api.Endpoint = (*TranslatePageEndpoint)(nil)

func (e *TranslatePageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/pages/translate", e.handler
}

func (e *TranslatePageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Translate one page
//	@Description	Runs the page through the worker in the configured mode and returns the rendered image.
//	@Description	X-Pipeline-Mode tells whether the split path, the unified path or the fallback produced it.
//	@Tags			pages
//	@Accept			mpfd
//	@Produce		image/png
//	@Param			image		formData	file	true	"Page image"
//	@Param			source_lang	formData	string	false	"Source language"
//	@Param			target_lang	formData	string	false	"Target language"
//	@Param			mode		formData	string	false	"split or unified (defaults to the configured mode)"
//	@Success		200			{file}		binary
//	@Failure		400			{object}	PageFailure
//	@Failure		502			{object}	PageFailure
//	@Failure		503			{object}	PageFailure
//	@Router			/api/pages/translate [post]
func (e *TranslatePageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	img, err := formFileBytes(r, rpc.FieldImage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode, err := parseMode(r.FormValue(FieldMode))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	coord := svcctx.CoordinatorFrom(r.Context())
	out := coord.TranslatePage(r.Context(), pipeline.PageRequest{
		Image: img,
		Options: engine.Options{
			SourceLang: r.FormValue(rpc.FieldSourceLang),
			TargetLang: r.FormValue(rpc.FieldTargetLang),
		},
		Mode: mode,
	})
	writePageOutcome(w, out)
}

func (e *TranslatePageEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outputFile, sourceLang, targetLang, mode string
	cmd := &cobra.Command{
		Use:   "translate <image>",
		Short: "Translate a single page image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			resp, err := client.UploadRaw(cmd.Context(), "/api/pages/translate",
				[]api.FormFile{{Field: rpc.FieldImage, Path: args[0]}},
				map[string]string{
					rpc.FieldSourceLang: sourceLang,
					rpc.FieldTargetLang: targetLang,
					FieldMode:           mode,
				})
			if err != nil {
				return err
			}
			if outputFile == "" {
				outputFile = filepath.Join(filepath.Dir(args[0]), "translated_"+filepath.Base(args[0]))
			}
			if err := os.WriteFile(outputFile, resp.Body, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputFile, err)
			}
			return api.Output(map[string]string{
				"output":   outputFile,
				"status":   resp.Header.Get(HeaderPageStatus),
				"mode":     resp.Header.Get(rpc.HeaderPipelineMode),
				"degraded": resp.Header.Get(HeaderDegraded),
				"regions":  resp.Header.Get(rpc.HeaderRegionsCount),
			})
		},
	}
	cmd.Flags().StringVarP(&outputFile, "file", "f", "", "Output file path (default: translated_<image>)")
	cmd.Flags().StringVar(&sourceLang, "source-lang", "", "Source language")
	cmd.Flags().StringVar(&targetLang, "target-lang", "en", "Target language")
	cmd.Flags().StringVar(&mode, "mode", "", "Pipeline mode (split or unified)")
	return cmd
}

// parseMode accepts an empty value (use the configured mode), split or
// unified.
func parseMode(v string) (rpc.PipelineMode, error) {
	switch m := rpc.PipelineMode(v); m {
	case "", rpc.ModeSplit, rpc.ModeUnified:
		return m, nil
	default:
		return "", fmt.Errorf("mode must be split or unified, got %q", v)
	}
}

// writePageOutcome writes the image of a successful page with its
// provenance headers, or a PageFailure body.
func writePageOutcome(w http.ResponseWriter, out *pipeline.PageOutcome) {
	h := w.Header()
	h.Set(HeaderPageStatus, string(out.Status))
	if out.PipelineMode != "" {
		h.Set(rpc.HeaderPipelineMode, string(out.PipelineMode))
	}

	if !out.OK() {
		writeJSON(w, failureStatus(out.Code), PageFailure{
			Error:        out.Error,
			Status:       out.Status,
			FailureStage: out.FailureStage,
			Code:         out.Code,
			PipelineMode: out.PipelineMode,
		})
		return
	}

	h.Set("Content-Type", out.ContentType)
	h.Set(HeaderDegraded, strconv.FormatBool(out.Degraded))
	h.Set(rpc.HeaderRegionsCount, strconv.Itoa(out.RegionsCount))
	if out.Translator != "" {
		h.Set(rpc.HeaderTranslator, out.Translator)
	}
	if out.Model != "" {
		h.Set(rpc.HeaderTranslatorModel, out.Model)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(out.Image)
}

// failureStatus maps the worker code behind a failed page to the status
// the orchestrator answers with.
func failureStatus(code rpc.Code) int {
	switch code {
	case rpc.CodeInvalidImage:
		return http.StatusBadRequest
	case rpc.CodeNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
