// Package translator provides batch text translation backends and the
// serializer that funnels every call through one global permit.
package translator

import (
	"context"
	"errors"
)

var (
	// ErrCountMismatch is returned when a backend answers with a different
	// number of translations than it was given texts.
	ErrCountMismatch = errors.New("translation count mismatch")

	// ErrRepetition is returned when output looks like a degenerate
	// repetition loop rather than a translation.
	ErrRepetition = errors.New("translation output is repetitive")
)

// Request is one page worth of texts.
type Request struct {
	Texts      []string
	SourceLang string
	TargetLang string
	// Page is the 1-based page number within a chapter, 0 for single pages.
	Page int
}

// Result carries translations in request order plus the metadata that is
// passed through to the render call.
type Result struct {
	Translations []string
	Translator   string
	Model        string
	FallbackUsed bool
}

// BatchTranslator translates a list of strings. Implementations may hold
// session state across calls and are not required to be safe for
// concurrent use; wrap them in a Serializer.
type BatchTranslator interface {
	Name() string
	Translate(ctx context.Context, req Request) (*Result, error)
}
