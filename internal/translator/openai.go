package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/providers"
)

const OpenAIName = "openai"

const translationSchema = `{
	"type": "object",
	"required": ["translations"],
	"properties": {
		"translations": {"type": "array", "items": {"type": "string"}}
	}
}`

// OpenAIConfig configures the LLM translator.
type OpenAIConfig struct {
	// Client sends chat requests
	Client providers.ChatClient
	// Models are tried in order; later entries are fallbacks
	Models []string
	// Attempts per model (default: 3)
	Attempts int
	// RetryDelay is the base backoff between attempts (default: 1s)
	RetryDelay time.Duration
	// HistoryPages is how many previous pages are sent as context (default: 3)
	HistoryPages int
	// Temperature for generation (default: model default)
	Temperature float64
	// Logger is the structured logger to use
	Logger *slog.Logger
}

type historyEntry struct {
	sources      []string
	translations []string
}

// OpenAI translates with a chat model. It keeps a rolling history of the
// last pages it translated and sends it as conversation context, so it
// must not be called concurrently.
type OpenAI struct {
	client      providers.ChatClient
	models      []string
	attempts    uint
	retryDelay  time.Duration
	maxHistory  int
	temperature float64
	logger      *slog.Logger

	history []historyEntry
}

// NewOpenAI creates the LLM translator.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.Client == nil {
		return nil, errors.New("openai translator requires a chat client")
	}
	if len(cfg.Models) == 0 {
		cfg.Models = []string{""}
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.HistoryPages < 0 {
		cfg.HistoryPages = 0
	} else if cfg.HistoryPages == 0 {
		cfg.HistoryPages = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OpenAI{
		client:      cfg.Client,
		models:      cfg.Models,
		attempts:    uint(cfg.Attempts),
		retryDelay:  cfg.RetryDelay,
		maxHistory:  cfg.HistoryPages,
		temperature: cfg.Temperature,
		logger:      cfg.Logger.With("component", "translator", "translator", OpenAIName),
	}, nil
}

// Name returns the translator identifier.
func (o *OpenAI) Name() string { return OpenAIName }

// Translate tries each configured model in order, retrying transient
// failures with backoff before moving to the next one.
func (o *OpenAI) Translate(ctx context.Context, req Request) (*Result, error) {
	if len(req.Texts) == 0 {
		return &Result{Translator: OpenAIName}, nil
	}

	var lastErr error
	for i, model := range o.models {
		translations, err := retry.DoWithData(
			func() ([]string, error) {
				return o.translateOnce(ctx, model, req)
			},
			retry.Context(ctx),
			retry.Attempts(o.attempts),
			retry.Delay(o.retryDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(providers.IsRetryable),
			retry.OnRetry(func(n uint, err error) {
				o.logger.Warn("translate attempt failed", "model", model, "page", req.Page, "attempt", n+1, "error", err)
			}),
		)
		if err == nil {
			o.remember(req.Texts, translations)
			return &Result{
				Translations: translations,
				Translator:   OpenAIName,
				Model:        model,
				FallbackUsed: i > 0,
			}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if i < len(o.models)-1 {
			o.logger.Warn("model exhausted, falling back", "model", model, "next", o.models[i+1], "error", err)
		}
	}
	return nil, fmt.Errorf("all translation models failed: %w", lastErr)
}

func (o *OpenAI) translateOnce(ctx context.Context, model string, req Request) ([]string, error) {
	msgs := []providers.Message{{Role: "system", Content: systemPrompt(req.SourceLang, req.TargetLang)}}
	for _, h := range o.history {
		msgs = append(msgs,
			providers.Message{Role: "user", Content: encodeTexts("texts", h.sources)},
			providers.Message{Role: "assistant", Content: encodeTexts("translations", h.translations)},
		)
	}
	msgs = append(msgs, providers.Message{Role: "user", Content: encodeTexts("texts", req.Texts)})

	result, err := o.client.Chat(ctx, &providers.ChatRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: o.temperature,
		Schema:      json.RawMessage(translationSchema),
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Translations []string `json:"translations"`
	}
	if err := json.Unmarshal(result.ParsedJSON, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrStructuredOutput, err)
	}
	for i := range parsed.Translations {
		parsed.Translations[i] = strings.TrimSpace(parsed.Translations[i])
	}
	if err := checkOutput(req.Texts, parsed.Translations); err != nil {
		return nil, err
	}
	return parsed.Translations, nil
}

// remember appends a page to the rolling history.
func (o *OpenAI) remember(sources, translations []string) {
	if o.maxHistory == 0 {
		return
	}
	o.history = append(o.history, historyEntry{sources: sources, translations: translations})
	if len(o.history) > o.maxHistory {
		o.history = o.history[len(o.history)-o.maxHistory:]
	}
}

// ResetHistory drops the rolling context, e.g. between chapters.
func (o *OpenAI) ResetHistory() {
	o.history = nil
}

func systemPrompt(source, target string) string {
	if source == "" || source == "auto" {
		source = "the source language"
	}
	if target == "" {
		target = "English"
	}
	return fmt.Sprintf(`You translate comic dialogue from %s to %s.
You receive {"texts":[...]} and answer only with {"translations":[...]} holding exactly one translation per input, in the same order.
Keep translations short enough to fit a speech bubble. Do not add notes.`, source, target)
}

func encodeTexts(key string, texts []string) string {
	b, _ := json.Marshal(map[string][]string{key: texts})
	return string(b)
}
