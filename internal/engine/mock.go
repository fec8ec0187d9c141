package engine

import (
	"context"
	"image"
	"image/color"
	"sync/atomic"
	"time"
)

const MockName = "mock"

// Mock is a deterministic Engine for tests and local runs. Detect lays out
// one horizontal band per entry in Texts; Render paints translations into
// them.
type Mock struct {
	Texts []string

	DetectLatency time.Duration
	RenderLatency time.Duration

	// DetectErr and RenderErr, when set, are returned by every call.
	DetectErr error
	RenderErr error

	ready   atomic.Bool
	detects atomic.Int64
	renders atomic.Int64
}

// NewMock creates a mock engine that detects one region per text.
// It reports not ready until Warmup is called.
func NewMock(texts ...string) *Mock {
	return &Mock{Texts: texts}
}

// Name returns the engine identifier.
func (m *Mock) Name() string { return MockName }

// Warmup marks the engine ready.
func (m *Mock) Warmup(ctx context.Context) error {
	m.ready.Store(true)
	return nil
}

// Ready reports whether Warmup has completed.
func (m *Mock) Ready() bool { return m.ready.Load() }

// SetReady overrides readiness.
func (m *Mock) SetReady(ready bool) { m.ready.Store(ready) }

// DetectCalls returns the number of Detect calls.
func (m *Mock) DetectCalls() int64 { return m.detects.Load() }

// RenderCalls returns the number of Render calls.
func (m *Mock) RenderCalls() int64 { return m.renders.Load() }

// Detect decodes img and returns one region per configured text.
func (m *Mock) Detect(ctx context.Context, img []byte, opts Options) (*Context, error) {
	m.detects.Add(1)
	if !m.Ready() {
		return nil, ErrNotReady
	}
	if err := sleep(ctx, m.DetectLatency); err != nil {
		return nil, err
	}

	start := time.Now()
	decoded, format, err := Decode(img)
	if err != nil {
		return nil, err
	}
	decodeTime := time.Since(start)

	if m.DetectErr != nil {
		return nil, m.DetectErr
	}

	b := decoded.Bounds()
	regions := make([]TextRegion, 0, len(m.Texts))
	if n := len(m.Texts); n > 0 {
		band := b.Dy() / n
		for i, text := range m.Texts {
			box := image.Rect(b.Min.X, b.Min.Y+i*band, b.Max.X, b.Min.Y+(i+1)*band)
			regions = append(regions, TextRegion{
				Polygon:   BoxPolygon(box),
				Text:      text,
				FontSize:  13,
				Direction: DirectionHorizontal,
				FgColor:   color.RGBA{A: 0xff},
				BgColor:   color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
			})
		}
	}
	reindex(regions)

	return &Context{
		Original: img,
		Image:    decoded,
		Format:   format,
		Regions:  regions,
		Options:  opts,
		Timings: map[string]time.Duration{
			"decode": decodeTime,
			"detect": time.Since(start) - decodeTime,
		},
	}, nil
}

// Render paints c and encodes it in the source format.
func (m *Mock) Render(ctx context.Context, c *Context) ([]byte, error) {
	m.renders.Add(1)
	if !m.Ready() {
		return nil, ErrNotReady
	}
	if err := sleep(ctx, m.RenderLatency); err != nil {
		return nil, err
	}
	if m.RenderErr != nil {
		return nil, m.RenderErr
	}
	return Encode(Paint(c), c.Format)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
