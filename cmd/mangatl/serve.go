package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/aakaka525-design/manga-translator-ui-sub001/docs"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/config"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/home"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/server"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/server/endpoints"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the orchestrator",
	Long: `Start the mangatl orchestrator.

The orchestrator serves the public API and drives a worker started with
'mangatl worker'. Chapters and page images are kept in the home directory.
Edits to orchestrator.mode and the worker_client backoff settings in the
config file apply without a restart.

The server provides:
  - /health, /ready, /status
  - /api/pages/translate   - translate one page
  - /api/chapters          - translate, list and retry chapters
  - /api/metrics           - recent page records
  - /swagger/              - API documentation

Examples:
  mangatl serve                    # Start on the configured port (8080)
  mangatl serve --port 3000        # Start on custom port
  mangatl serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), endpoints.RoleOrchestrator, serveHost, servePort)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: orchestrator.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: orchestrator.port)")

	rootCmd.AddCommand(serveCmd)
}

// runServer loads config, then serves role until ctx is cancelled.
// Empty host and port fall back to the role's config section.
func runServer(ctx context.Context, role endpoints.Role, host, port string) error {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return err
	}
	cfg := mgr.Get()
	logger := newLogger(cfg.LogLevel)

	h, err := home.New(homeDir)
	if err != nil {
		return err
	}
	if err := h.EnsureExists(); err != nil {
		return err
	}

	cfgHost, cfgPort := cfg.Orchestrator.Host, cfg.Orchestrator.Port
	writeTimeout := 30 * time.Minute
	if role == endpoints.RoleWorker {
		cfgHost, cfgPort = cfg.Worker.Host, cfg.Worker.Port
		writeTimeout = cfg.WorkerClient.RequestTimeout() + time.Minute
	}
	if host == "" {
		host = cfgHost
	}
	if port == "" {
		port = strconv.Itoa(cfgPort)
	}

	mgr.WatchConfig(logger)

	srv, err := server.New(server.Config{
		Host:          host,
		Port:          port,
		Role:          role,
		ConfigManager: mgr,
		Home:          h,
		WriteTimeout:  writeTimeout,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	logger.Info("starting mangatl", "role", string(role), "config", mgr.ConfigFile(), "home", h.Path())
	// Start server (blocks until shutdown)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("%s: %w", role, err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
}
