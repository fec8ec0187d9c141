package config

import "time"

// Config holds mangatl configuration.
// Stored at: {home}/config.yaml
type Config struct {
	LogLevel     string          `mapstructure:"log_level" yaml:"log_level"` // debug, info, warn, error
	Worker       WorkerCfg       `mapstructure:"worker" yaml:"worker"`
	Orchestrator OrchestratorCfg `mapstructure:"orchestrator" yaml:"orchestrator"`
	WorkerClient WorkerClientCfg `mapstructure:"worker_client" yaml:"worker_client"`
	Translator   TranslatorCfg   `mapstructure:"translator" yaml:"translator"`
	Engine       EngineCfg       `mapstructure:"engine" yaml:"engine"`
}

// WorkerCfg configures the GPU worker process.
type WorkerCfg struct {
	Host      string `mapstructure:"host" yaml:"host"`
	Port      int    `mapstructure:"port" yaml:"port"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token"` // supports ${ENV_VAR}; empty disables auth
	// CacheTTLSeconds is how long a detected context waits for render
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`
	// CacheCapacity bounds live contexts; the oldest is evicted when full
	CacheCapacity          int `mapstructure:"cache_capacity" yaml:"cache_capacity"`
	JanitorIntervalSeconds int `mapstructure:"janitor_interval_seconds" yaml:"janitor_interval_seconds"`
}

// OrchestratorCfg configures the public API process.
type OrchestratorCfg struct {
	Host            string `mapstructure:"host" yaml:"host"`
	Port            int    `mapstructure:"port" yaml:"port"`
	Mode            string `mapstructure:"mode" yaml:"mode"` // split or unified
	PageConcurrency int    `mapstructure:"page_concurrency" yaml:"page_concurrency"`
}

// WorkerClientCfg configures how the orchestrator reaches the worker.
type WorkerClientCfg struct {
	URL                   string `mapstructure:"url" yaml:"url"`
	AuthToken             string `mapstructure:"auth_token" yaml:"auth_token"` // supports ${ENV_VAR}
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	NotReadyAttempts      int    `mapstructure:"not_ready_attempts" yaml:"not_ready_attempts"`
	NotReadyDelayMS       int    `mapstructure:"not_ready_delay_ms" yaml:"not_ready_delay_ms"`
	NotReadyMaxDelayMS    int    `mapstructure:"not_ready_max_delay_ms" yaml:"not_ready_max_delay_ms"`
}

// TranslatorCfg selects and configures the batch translator.
type TranslatorCfg struct {
	Type            string   `mapstructure:"type" yaml:"type"`         // "openai", "google", "mock"
	Models          []string `mapstructure:"models" yaml:"models"`     // ordered; later entries are fallbacks
	APIKey          string   `mapstructure:"api_key" yaml:"api_key"`   // supports ${ENV_VAR}
	BaseURL         string   `mapstructure:"base_url" yaml:"base_url"` // any OpenAI-compatible endpoint
	TimeoutSeconds  int      `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries      int      `mapstructure:"max_retries" yaml:"max_retries"`
	RateLimit       int      `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per minute, 0 = unlimited
	HistoryPages    int      `mapstructure:"history_pages" yaml:"history_pages"`
	CredentialsFile string   `mapstructure:"credentials_file" yaml:"credentials_file"` // google only
}

// EngineCfg selects the detection and rendering engine.
type EngineCfg struct {
	Type                 string `mapstructure:"type" yaml:"type"` // "vision", "mock"
	Model                string `mapstructure:"model" yaml:"model"`
	APIKey               string `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR}
	BaseURL              string `mapstructure:"base_url" yaml:"base_url"`
	WarmupTimeoutSeconds int    `mapstructure:"warmup_timeout_seconds" yaml:"warmup_timeout_seconds"`
}

// CacheTTL returns the context TTL as a duration.
func (w WorkerCfg) CacheTTL() time.Duration {
	return time.Duration(w.CacheTTLSeconds) * time.Second
}

// JanitorInterval returns the purge interval as a duration.
func (w WorkerCfg) JanitorInterval() time.Duration {
	return time.Duration(w.JanitorIntervalSeconds) * time.Second
}

// RequestTimeout returns the per-call worker timeout.
func (c WorkerClientCfg) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// NotReadyDelay returns the first backoff delay.
func (c WorkerClientCfg) NotReadyDelay() time.Duration {
	return time.Duration(c.NotReadyDelayMS) * time.Millisecond
}

// NotReadyMaxDelay returns the backoff ceiling.
func (c WorkerClientCfg) NotReadyMaxDelay() time.Duration {
	return time.Duration(c.NotReadyMaxDelayMS) * time.Millisecond
}

// Timeout returns the translator HTTP timeout.
func (t TranslatorCfg) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// WarmupTimeout returns the engine warmup bound.
func (e EngineCfg) WarmupTimeout() time.Duration {
	return time.Duration(e.WarmupTimeoutSeconds) * time.Second
}
