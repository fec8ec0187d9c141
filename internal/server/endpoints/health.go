package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/api"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/metrics"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/svcctx"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/translator"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/worker"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
	Role   string `json:"role,omitempty"`
	Engine string `json:"engine,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct {
	Role Role
}

var _ api.Endpoint = (*HealthEndpoint)(nil)

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Liveness check
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Role: string(e.Role)})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			if resp.Role != "" {
				fmt.Printf("Role:   %s\n", resp.Role)
			}
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
// A worker is ready once its engine has warmed up; an orchestrator once its
// pipeline services are attached.
type ReadyEndpoint struct {
	Role Role
}

var _ api.Endpoint = (*ReadyEndpoint)(nil)

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Readiness check
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/ready [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Role: string(e.Role)}

	if e.Role == RoleWorker {
		svc := svcctx.WorkerFrom(r.Context())
		if svc == nil {
			resp.Status = "not_initialized"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		st := svc.Status()
		resp.Engine = st.Engine
		if !st.Ready {
			resp.Status = "loading"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if svcctx.CoordinatorFrom(r.Context()) == nil || svcctx.StoreFrom(r.Context()) == nil {
		resp.Status = "not_initialized"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			if resp.Engine != "" {
				fmt.Printf("Engine: %s\n", resp.Engine)
			}
			return nil
		},
	}
}

// StatusResponse is the detailed status response. Worker is set on a
// worker process; the remaining fields on an orchestrator.
type StatusResponse struct {
	Server      string                      `json:"server"`
	Role        string                      `json:"role"`
	Worker      *worker.Status              `json:"worker,omitempty"`
	Mode        string                      `json:"mode,omitempty"`
	Translation *translator.SerializerStats `json:"translation,omitempty"`
	Totals      *metrics.Totals             `json:"totals,omitempty"`
	Recent      *metrics.Summary            `json:"recent,omitempty"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct {
	Role Role
}

var _ api.Endpoint = (*StatusEndpoint)(nil)

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Detailed status
//	@Description	Worker: engine readiness, cache occupancy and failure counts.
//	@Description	Orchestrator: pipeline mode, translation permit usage and page outcome metrics.
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{
		Server: "running",
		Role:   string(e.Role),
	}

	if svc := svcctx.WorkerFrom(ctx); svc != nil {
		st := svc.Status()
		resp.Worker = &st
	}
	if coord := svcctx.CoordinatorFrom(ctx); coord != nil {
		resp.Mode = string(coord.Mode())
	}
	if ser := svcctx.SerializerFrom(ctx); ser != nil {
		st := ser.Stats()
		resp.Translation = &st
	}
	if rec := svcctx.MetricsFrom(ctx); rec != nil {
		totals := rec.Totals()
		resp.Totals = &totals
		resp.Recent = rec.Summarize(metrics.Filter{})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
