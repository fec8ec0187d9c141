package translator

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

const MockName = "mock"

// ErrReentered is returned by Mock when two calls overlap.
var ErrReentered = errors.New("translator entered concurrently")

// Mock is a BatchTranslator for tests. It prefixes every text and fails
// loudly if two calls ever overlap.
type Mock struct {
	Prefix  string
	Latency time.Duration
	// Fail, when set, decides per request whether to fail.
	Fail func(req Request) error

	active    atomic.Int32
	reentered atomic.Bool
	calls     atomic.Int64
}

// NewMock creates a mock translator with the given prefix.
func NewMock(prefix string) *Mock {
	return &Mock{Prefix: prefix}
}

// Name returns the translator identifier.
func (m *Mock) Name() string { return MockName }

// Translate returns Prefix+text for every text.
func (m *Mock) Translate(ctx context.Context, req Request) (*Result, error) {
	m.calls.Add(1)
	if m.active.Add(1) > 1 {
		m.reentered.Store(true)
		m.active.Add(-1)
		return nil, ErrReentered
	}
	defer m.active.Add(-1)

	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	}
	if m.Fail != nil {
		if err := m.Fail(req); err != nil {
			return nil, err
		}
	}

	out := make([]string, len(req.Texts))
	for i, t := range req.Texts {
		out[i] = m.Prefix + t
	}
	return &Result{Translations: out, Translator: MockName, Model: "mock-1"}, nil
}

// Reentered reports whether any two calls overlapped.
func (m *Mock) Reentered() bool { return m.reentered.Load() }

// Calls returns the number of Translate calls.
func (m *Mock) Calls() int64 { return m.calls.Load() }
