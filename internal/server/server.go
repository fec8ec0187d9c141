package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/api"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/config"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/home"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/server/endpoints"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/svcctx"
)

// Server is a mangatl HTTP server in one role: the GPU worker, or the
// orchestrator that drives it.
type Server struct {
	httpServer *http.Server
	role       endpoints.Role
	configMgr  *config.Manager
	home       *home.Dir
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services
	closers  []io.Closer

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
	addr    string
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080); "0" picks a free port
	Port string
	// Role selects the served endpoints (default: orchestrator)
	Role endpoints.Role
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Home holds the chapter database and page files (orchestrator only)
	Home *home.Dir
	// Services replaces the services otherwise built from ConfigManager
	Services *svcctx.Services
	// WriteTimeout bounds writing a response (default: 30s). Chapter
	// requests run for as long as their pages take.
	WriteTimeout time.Duration
	// SwaggerSpecPath is read when no swag document is registered
	SwaggerSpecPath string
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Role == "" {
		cfg.Role = endpoints.RoleOrchestrator
	}
	if cfg.Role != endpoints.RoleWorker && cfg.Role != endpoints.RoleOrchestrator {
		return nil, fmt.Errorf("unknown server role %q", cfg.Role)
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Services == nil && cfg.ConfigManager == nil {
		return nil, errors.New("server requires a config manager or prebuilt services")
	}

	s := &Server{
		role:      cfg.Role,
		configMgr: cfg.ConfigManager,
		home:      cfg.Home,
		services:  cfg.Services,
		logger:    cfg.Logger.With("role", string(cfg.Role)),
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{
		Role:            cfg.Role,
		SwaggerSpecPath: cfg.SwaggerSpecPath,
	}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start builds the role's services, starts the worker warmup when serving
// the worker role, and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.services == nil {
		s.logger.Info("building services")
		services, closers, err := buildServices(ctx, s.role, s.configMgr.Get(), s.home, s.logger)
		s.closers = closers
		if err != nil {
			s.closeAll()
			s.setNotRunning()
			return fmt.Errorf("failed to build services: %w", err)
		}
		services.ConfigManager = s.configMgr
		s.services = services
	}
	s.watchConfig()

	if s.role == endpoints.RoleWorker {
		// Requests are answered with NOT_READY until warmup completes.
		s.services.Worker.Start(ctx)
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.closeAll()
		s.setNotRunning()
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// watchConfig applies mode and backoff changes to a running orchestrator.
func (s *Server) watchConfig() {
	if s.configMgr == nil || s.services.Coordinator == nil {
		return
	}
	coord := s.services.Coordinator
	s.configMgr.OnChange(func(c *config.Config) {
		if err := coord.SetMode(rpc.PipelineMode(c.Orchestrator.Mode)); err != nil {
			s.logger.Warn("ignoring pipeline mode change", "error", err)
		}
		coord.SetRetryPolicy(RetryPolicy(c.WorkerClient))
		s.logger.Info("pipeline settings reloaded from config", "mode", coord.Mode())
	})
}

// shutdown gracefully stops the HTTP server and releases services.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.closeAll()
	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) closeAll() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Error("close error", "error", err)
		}
	}
	s.closers = nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the bound address once listening, else the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr != "" {
		return s.addr
	}
	return s.httpServer.Addr
}

// Role returns which endpoints the server serves.
func (s *Server) Role() endpoints.Role {
	return s.role
}

// Services returns the services in use.
// Returns nil if the server hasn't started yet and none were supplied.
func (s *Server) Services() *svcctx.Services {
	return s.services
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the role's services are attached.
// Returns 503 Service Unavailable otherwise.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.initialized() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}

func (s *Server) initialized() bool {
	if s.services == nil {
		return false
	}
	if s.role == endpoints.RoleWorker {
		return s.services.Worker != nil
	}
	sv := s.services
	return sv.Coordinator != nil && sv.Aggregator != nil && sv.Store != nil &&
		sv.Home != nil && sv.Metrics != nil
}
