package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/api"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/metrics"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/svcctx"
)

// ListMetricsResponse is the page metrics listing with a summary of the
// same selection.
type ListMetricsResponse struct {
	Metrics []metrics.Metric `json:"metrics"`
	Summary *metrics.Summary `json:"summary"`
}

// ListMetricsEndpoint handles GET /api/metrics.
type ListMetricsEndpoint struct{}

var _ api.Endpoint = (*ListMetricsEndpoint)(nil)

func (e *ListMetricsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics", e.handler
}

func (e *ListMetricsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List page metrics
//	@Description	Recent page outcomes, newest first
//	@Tags			metrics
//	@Produce		json
//	@Param			chapter_id		query		string	false	"Filter by chapter"
//	@Param			status			query		string	false	"Filter by page status"
//	@Param			pipeline_mode	query		string	false	"Filter by pipeline mode"
//	@Param			limit			query		int		false	"Maximum records (default 100)"
//	@Success		200				{object}	ListMetricsResponse
//	@Router			/api/metrics [get]
func (e *ListMetricsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := metrics.Filter{
		ChapterID:    q.Get("chapter_id"),
		Status:       q.Get("status"),
		PipelineMode: q.Get("pipeline_mode"),
	}
	limit := 100
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = v
	}

	rec := svcctx.MetricsFrom(r.Context())
	list := rec.List(f, limit)
	if list == nil {
		list = []metrics.Metric{}
	}
	writeJSON(w, http.StatusOK, ListMetricsResponse{
		Metrics: list,
		Summary: rec.Summarize(f),
	})
}

func (e *ListMetricsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var chapterID, status, mode string
	var limit int
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "List recent page metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if chapterID != "" {
				q.Set("chapter_id", chapterID)
			}
			if status != "" {
				q.Set("status", status)
			}
			if mode != "" {
				q.Set("pipeline_mode", mode)
			}
			q.Set("limit", strconv.Itoa(limit))

			client := api.NewClient(getServerURL())
			var resp ListMetricsResponse
			if err := client.Get(cmd.Context(), fmt.Sprintf("/api/metrics?%s", q.Encode()), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&chapterID, "chapter", "", "Filter by chapter ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (success, fallback_success, failed)")
	cmd.Flags().StringVar(&mode, "mode", "", "Filter by pipeline mode")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum records")
	return cmd
}
