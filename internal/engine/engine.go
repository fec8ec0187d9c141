// Package engine is the boundary to the detection, OCR, inpainting and
// rendering models. Everything behind Engine is treated as an opaque
// function; callers only own caching and sequencing around it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"
)

var (
	// ErrNotReady is returned while the models are still warming up.
	ErrNotReady = errors.New("engine not ready")

	// ErrInvalidImage is returned for bytes that do not decode as an image.
	ErrInvalidImage = errors.New("invalid image")
)

// Direction of a text block.
const (
	DirectionHorizontal = "h"
	DirectionVertical   = "v"
)

// Options carries per-request language hints.
type Options struct {
	SourceLang string
	TargetLang string
}

// Engine runs the model stages for one page.
type Engine interface {
	// Name identifies the engine in logs and status output.
	Name() string

	// Warmup loads models. Ready reports false until it succeeds.
	Warmup(ctx context.Context) error
	Ready() bool

	// Detect runs detection and OCR on the encoded image.
	Detect(ctx context.Context, img []byte, opts Options) (*Context, error)

	// Render inpaints the original text and draws each region's
	// Translation, returning the encoded page.
	Render(ctx context.Context, c *Context) ([]byte, error)
}

// TextRegion is one detected text block.
type TextRegion struct {
	Index       int
	Polygon     []image.Point
	Text        string
	Translation string
	FontSize    int
	Direction   string
	FgColor     color.RGBA
	BgColor     color.RGBA
	StrokeWidth float64
}

// Bounds returns the bounding rectangle of the region polygon.
func (r TextRegion) Bounds() image.Rectangle {
	if len(r.Polygon) == 0 {
		return image.Rectangle{}
	}
	b := image.Rectangle{Min: r.Polygon[0], Max: r.Polygon[0]}
	for _, p := range r.Polygon[1:] {
		b.Min.X = min(b.Min.X, p.X)
		b.Min.Y = min(b.Min.Y, p.Y)
		b.Max.X = max(b.Max.X, p.X)
		b.Max.Y = max(b.Max.Y, p.Y)
	}
	return b
}

// BoxPolygon returns the four corners of r in clockwise order.
func BoxPolygon(r image.Rectangle) []image.Point {
	return []image.Point{
		{X: r.Min.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Max.Y},
		{X: r.Min.X, Y: r.Max.Y},
	}
}

// Context is the in-memory result of detection for one image. It is never
// serialized and must not leave the process that created it.
type Context struct {
	// Original is the encoded input image.
	Original []byte
	// Image is the decoded input.
	Image image.Image
	// Format is the decoder name ("png", "jpeg", ...), reused on output.
	Format string
	// Variants holds engine-owned working images (upscaled, alpha, ...).
	Variants map[string]image.Image
	// Regions are ordered with Index dense in [0, len).
	Regions []TextRegion
	Options Options
	// Timings records per-stage durations of Detect.
	Timings map[string]time.Duration
}

// Texts returns the recognized source text of every region in index order.
func (c *Context) Texts() []string {
	texts := make([]string, len(c.Regions))
	for i, r := range c.Regions {
		texts[i] = r.Text
	}
	return texts
}

// SetTranslations writes translations into regions by index.
// Callers validate indices beforehand; an unknown index is still rejected.
func (c *Context) SetTranslations(byIndex map[int]string) error {
	for idx, text := range byIndex {
		if idx < 0 || idx >= len(c.Regions) {
			return fmt.Errorf("region index %d out of range [0,%d)", idx, len(c.Regions))
		}
		c.Regions[idx].Translation = text
	}
	return nil
}

// reindex assigns dense indices in slice order.
func reindex(regions []TextRegion) {
	for i := range regions {
		regions[i].Index = i
	}
}
