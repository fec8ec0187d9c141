package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/config"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/ctxcache"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/engine"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/home"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/metrics"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/pipeline"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/providers"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/server/endpoints"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/store"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/svcctx"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/translator"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/worker"
)

// buildServices constructs the services of role from cfg. The returned
// closers are released on shutdown.
func buildServices(ctx context.Context, role endpoints.Role, cfg *config.Config, h *home.Dir, logger *slog.Logger) (*svcctx.Services, []io.Closer, error) {
	var closers []io.Closer
	tr, err := NewTranslator(ctx, cfg.Translator, logger)
	if err != nil {
		return nil, nil, err
	}
	if c, ok := tr.(io.Closer); ok {
		closers = append(closers, c)
	}

	if role == endpoints.RoleWorker {
		eng, err := NewEngine(cfg.Engine, logger)
		if err != nil {
			return nil, closers, err
		}
		cache := ctxcache.New[*engine.Context](ctxcache.Config{
			TTL:      cfg.Worker.CacheTTL(),
			Capacity: cfg.Worker.CacheCapacity,
			Logger:   logger,
		})
		svc, err := worker.New(worker.Config{
			Engine:          eng,
			Translator:      tr,
			Cache:           cache,
			AuthToken:       config.ResolveEnvVars(cfg.Worker.AuthToken),
			WarmupTimeout:   cfg.Engine.WarmupTimeout(),
			JanitorInterval: cfg.Worker.JanitorInterval(),
			Logger:          logger,
		})
		if err != nil {
			return nil, closers, err
		}
		return &svcctx.Services{Worker: svc, Logger: logger}, closers, nil
	}

	if h == nil {
		return nil, closers, errors.New("orchestrator requires a home directory")
	}
	st, err := store.Open(h.DBPath())
	if err != nil {
		return nil, closers, err
	}
	closers = append(closers, st)

	serializer := translator.NewSerializer(tr, translator.SerializerConfig{
		Timeout: cfg.Translator.Timeout(),
		Logger:  logger,
	})
	client := worker.NewClient(worker.ClientConfig{
		BaseURL:   cfg.WorkerClient.URL,
		AuthToken: config.ResolveEnvVars(cfg.WorkerClient.AuthToken),
		Timeout:   cfg.WorkerClient.RequestTimeout(),
	})
	rec := metrics.NewRecorder(metrics.DefaultCapacity)

	coord, err := pipeline.NewCoordinator(pipeline.Config{
		Worker:     client,
		Translator: serializer,
		Mode:       rpc.PipelineMode(cfg.Orchestrator.Mode),
		NotReady:   RetryPolicy(cfg.WorkerClient),
		Metrics:    rec,
		Logger:     logger,
	})
	if err != nil {
		return nil, closers, err
	}
	agg, err := pipeline.NewAggregator(pipeline.AggregatorConfig{
		Pages:           coord,
		PageConcurrency: cfg.Orchestrator.PageConcurrency,
		Sink:            &pipeline.DirSink{Home: h},
		Logger:          logger,
	})
	if err != nil {
		return nil, closers, err
	}

	return &svcctx.Services{
		Coordinator: coord,
		Aggregator:  agg,
		Serializer:  serializer,
		Store:       st,
		Metrics:     rec,
		Home:        h,
		Logger:      logger,
	}, closers, nil
}

// NewTranslator builds the batch translator selected by cfg.Type.
func NewTranslator(ctx context.Context, cfg config.TranslatorCfg, logger *slog.Logger) (translator.BatchTranslator, error) {
	switch cfg.Type {
	case "openai":
		client := providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:     config.ResolveEnvVars(cfg.APIKey),
			Model:      cfg.Models[0],
			BaseURL:    cfg.BaseURL,
			RateLimit:  cfg.RateLimit,
			MaxRetries: cfg.MaxRetries,
			Timeout:    cfg.Timeout(),
		})
		return translator.NewOpenAI(translator.OpenAIConfig{
			Client:       client,
			Models:       cfg.Models,
			HistoryPages: cfg.HistoryPages,
			Logger:       logger,
		})
	case "google":
		return translator.NewGoogle(ctx, translator.GoogleConfig{
			CredentialsFile: cfg.CredentialsFile,
			APIKey:          config.ResolveEnvVars(cfg.APIKey),
		})
	case "mock":
		return translator.NewMock(""), nil
	default:
		return nil, fmt.Errorf("unknown translator type %q", cfg.Type)
	}
}

// NewEngine builds the engine selected by cfg.Type.
func NewEngine(cfg config.EngineCfg, logger *slog.Logger) (engine.Engine, error) {
	switch cfg.Type {
	case "vision":
		client := providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:  config.ResolveEnvVars(cfg.APIKey),
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
		return engine.NewVision(engine.VisionConfig{
			Client: client,
			Model:  cfg.Model,
			Logger: logger,
		}), nil
	case "mock":
		return engine.NewMock("TEXT"), nil
	default:
		return nil, fmt.Errorf("unknown engine type %q", cfg.Type)
	}
}

// RetryPolicy converts the worker client backoff settings.
func RetryPolicy(c config.WorkerClientCfg) pipeline.RetryPolicy {
	attempts := c.NotReadyAttempts
	if attempts < 0 {
		attempts = 0
	}
	return pipeline.RetryPolicy{
		Attempts: uint(attempts),
		Delay:    c.NotReadyDelay(),
		MaxDelay: c.NotReadyMaxDelay(),
	}
}
