package translator

import (
	"context"
	"fmt"
	"html"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

const GoogleName = "google"

// GoogleConfig configures the Google Cloud Translation backend.
type GoogleConfig struct {
	// CredentialsFile is a service account JSON file; empty uses ADC
	CredentialsFile string
	// APIKey is used instead of credentials when set
	APIKey string
}

// Google translates with Google Cloud Translation. It is stateless.
type Google struct {
	client *translate.Client
}

// NewGoogle creates a client. Close it when done.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	opts := []option.ClientOption{}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create google translate client: %w", err)
	}
	return &Google{client: client}, nil
}

// Name returns the translator identifier.
func (g *Google) Name() string { return GoogleName }

// Translate sends the whole batch in one request.
func (g *Google) Translate(ctx context.Context, req Request) (*Result, error) {
	if len(req.Texts) == 0 {
		return &Result{Translator: GoogleName}, nil
	}

	target, err := language.Parse(req.TargetLang)
	if err != nil {
		return nil, fmt.Errorf("invalid target language %q: %w", req.TargetLang, err)
	}
	opts := &translate.Options{Format: translate.Text}
	if req.SourceLang != "" && req.SourceLang != "auto" {
		source, err := language.Parse(req.SourceLang)
		if err != nil {
			return nil, fmt.Errorf("invalid source language %q: %w", req.SourceLang, err)
		}
		opts.Source = source
	}

	out, err := g.client.Translate(ctx, req.Texts, target, opts)
	if err != nil {
		return nil, fmt.Errorf("google translate failed: %w", err)
	}

	translations := make([]string, len(out))
	for i, t := range out {
		translations[i] = html.UnescapeString(t.Text)
	}
	if err := checkOutput(req.Texts, translations); err != nil {
		return nil, err
	}
	return &Result{Translations: translations, Translator: GoogleName, Model: "nmt"}, nil
}

// Close releases the underlying client.
func (g *Google) Close() error {
	return g.client.Close()
}
