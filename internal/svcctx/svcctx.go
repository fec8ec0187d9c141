// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/config"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/home"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/metrics"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/pipeline"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/store"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/translator"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/worker"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
// A worker process sets Worker; an orchestrator sets the pipeline fields.
type Services struct {
	Worker        *worker.Service
	Coordinator   *pipeline.Coordinator
	Aggregator    *pipeline.Aggregator
	Serializer    *translator.Serializer
	Store         *store.Store
	Metrics       *metrics.Recorder
	Home          *home.Dir
	ConfigManager *config.Manager
	Logger        *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// WorkerFrom extracts the worker service from context.
func WorkerFrom(ctx context.Context) *worker.Service {
	if s := ServicesFrom(ctx); s != nil {
		return s.Worker
	}
	return nil
}

// CoordinatorFrom extracts the page coordinator from context.
func CoordinatorFrom(ctx context.Context) *pipeline.Coordinator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Coordinator
	}
	return nil
}

// AggregatorFrom extracts the chapter aggregator from context.
func AggregatorFrom(ctx context.Context) *pipeline.Aggregator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Aggregator
	}
	return nil
}

// SerializerFrom extracts the translation serializer from context.
func SerializerFrom(ctx context.Context) *translator.Serializer {
	if s := ServicesFrom(ctx); s != nil {
		return s.Serializer
	}
	return nil
}

// StoreFrom extracts the chapter store from context.
func StoreFrom(ctx context.Context) *store.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// MetricsFrom extracts the page metrics recorder from context.
func MetricsFrom(ctx context.Context) *metrics.Recorder {
	if s := ServicesFrom(ctx); s != nil {
		return s.Metrics
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// ConfigManagerFrom extracts the config manager from context.
func ConfigManagerFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigManager
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}
