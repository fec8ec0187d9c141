package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Worker: WorkerCfg{
			Host:                   "127.0.0.1",
			Port:                   8090,
			AuthToken:              "${MANGATL_WORKER_TOKEN}",
			CacheTTLSeconds:        300,
			CacheCapacity:          64,
			JanitorIntervalSeconds: 60,
		},
		Orchestrator: OrchestratorCfg{
			Host:            "127.0.0.1",
			Port:            8080,
			Mode:            "split",
			PageConcurrency: 2,
		},
		WorkerClient: WorkerClientCfg{
			URL:                   "http://127.0.0.1:8090",
			AuthToken:             "${MANGATL_WORKER_TOKEN}",
			RequestTimeoutSeconds: 120,
			NotReadyAttempts:      5,
			NotReadyDelayMS:       500,
			NotReadyMaxDelayMS:    8000,
		},
		Translator: TranslatorCfg{
			Type:           "openai",
			Models:         []string{"gpt-4o-mini", "gpt-4o"},
			APIKey:         "${OPENAI_API_KEY}",
			TimeoutSeconds: 120,
			MaxRetries:     3,
			HistoryPages:   3,
		},
		Engine: EngineCfg{
			Type:                 "vision",
			Model:                "gpt-4o",
			APIKey:               "${OPENAI_API_KEY}",
			WarmupTimeoutSeconds: 600,
		},
	}
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	var problems []string
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log_level %q", c.LogLevel))
	}
	switch c.Orchestrator.Mode {
	case "", "split", "unified":
	default:
		problems = append(problems, fmt.Sprintf("orchestrator.mode %q (want split or unified)", c.Orchestrator.Mode))
	}
	switch c.Translator.Type {
	case "openai", "google", "mock":
	default:
		problems = append(problems, fmt.Sprintf("translator.type %q", c.Translator.Type))
	}
	if c.Translator.Type == "openai" && len(c.Translator.Models) == 0 {
		problems = append(problems, "translator.models is empty")
	}
	switch c.Engine.Type {
	case "vision", "mock":
	default:
		problems = append(problems, fmt.Sprintf("engine.type %q", c.Engine.Type))
	}
	if c.Worker.CacheCapacity < 0 || c.Worker.CacheTTLSeconds < 0 {
		problems = append(problems, "worker cache values must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
