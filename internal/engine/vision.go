package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/providers"
)

const VisionName = "vision"

const visionSystemPrompt = `You locate speech bubbles, captions and sound effects on comic pages.
Return only JSON of the form {"regions":[{"text":"...","box":[x0,y0,x1,y1],"direction":"h","font_size":16}]}.
Coordinates are pixels in the original image with the origin at the top-left.
Use "v" for vertical text. List regions in reading order.`

const visionRegionsSchema = `{
	"type": "object",
	"required": ["regions"],
	"properties": {
		"regions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["text", "box"],
				"properties": {
					"text": {"type": "string"},
					"box": {"type": "array", "items": {"type": "number"}, "minItems": 4, "maxItems": 4},
					"direction": {"enum": ["h", "v", ""]},
					"font_size": {"type": "number", "minimum": 0}
				}
			}
		}
	}
}`

// VisionConfig configures a Vision engine.
type VisionConfig struct {
	// Client talks to an OpenAI-compatible vision model
	Client providers.ChatClient
	// Model overrides the client's default model
	Model string
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// Vision detects and reads text with a multimodal chat model and renders
// by flat-filling region boxes. It stands in for dedicated detection and
// inpainting models behind the same Engine contract.
type Vision struct {
	client providers.ChatClient
	model  string
	logger *slog.Logger
	ready  atomic.Bool
}

// NewVision creates a Vision engine.
func NewVision(cfg VisionConfig) *Vision {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Vision{
		client: cfg.Client,
		model:  cfg.Model,
		logger: cfg.Logger.With("component", "engine", "engine", VisionName),
	}
}

// Name returns the engine identifier.
func (v *Vision) Name() string { return VisionName }

// Ready reports whether Warmup has completed.
func (v *Vision) Ready() bool { return v.ready.Load() }

// Warmup checks the model endpoint when the client supports it.
func (v *Vision) Warmup(ctx context.Context) error {
	if v.client == nil {
		return fmt.Errorf("vision engine has no chat client")
	}
	if hc, ok := v.client.(interface{ HealthCheck(context.Context) error }); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("vision warmup: %w", err)
		}
	}
	v.ready.Store(true)
	v.logger.Info("vision engine ready", "model", v.model)
	return nil
}

type visionRegion struct {
	Text      string    `json:"text"`
	Box       []float64 `json:"box"`
	Direction string    `json:"direction"`
	FontSize  float64   `json:"font_size"`
}

// Detect asks the model for text regions on the page.
func (v *Vision) Detect(ctx context.Context, img []byte, opts Options) (*Context, error) {
	if !v.Ready() {
		return nil, ErrNotReady
	}

	start := time.Now()
	decoded, format, err := Decode(img)
	if err != nil {
		return nil, err
	}
	decodeTime := time.Since(start)

	prompt := "Find every text region on this page."
	if opts.SourceLang != "" {
		prompt += " The text is in " + opts.SourceLang + "."
	}
	result, err := v.client.Chat(ctx, &providers.ChatRequest{
		Model: v.model,
		Messages: []providers.Message{
			{Role: "system", Content: visionSystemPrompt},
			{Role: "user", Content: prompt, Images: [][]byte{img}},
		},
		Schema: json.RawMessage(visionRegionsSchema),
	})
	if err != nil {
		return nil, fmt.Errorf("vision detect: %w", err)
	}
	ocrTime := time.Since(start) - decodeTime

	var parsed struct {
		Regions []visionRegion `json:"regions"`
	}
	if err := json.Unmarshal(result.ParsedJSON, &parsed); err != nil {
		return nil, fmt.Errorf("vision detect: decode regions: %w", err)
	}

	regions := buildRegions(decoded, parsed.Regions)
	v.logger.Debug("detected regions", "count", len(regions), "model", result.Model)

	return &Context{
		Original: img,
		Image:    decoded,
		Format:   format,
		Variants: map[string]image.Image{workingVariant: toRGBA(decoded)},
		Regions:  regions,
		Options:  opts,
		Timings: map[string]time.Duration{
			"decode": decodeTime,
			"ocr":    ocrTime,
		},
	}, nil
}

// buildRegions normalizes model output: text is trimmed and NFC-normalized,
// boxes are clamped to the page, and empty regions are dropped.
func buildRegions(img image.Image, raw []visionRegion) []TextRegion {
	bounds := img.Bounds()
	regions := make([]TextRegion, 0, len(raw))
	for _, r := range raw {
		text := norm.NFC.String(strings.TrimSpace(r.Text))
		if text == "" || len(r.Box) != 4 {
			continue
		}
		box := image.Rect(int(r.Box[0]), int(r.Box[1]), int(r.Box[2]), int(r.Box[3])).Intersect(bounds)
		if box.Empty() {
			continue
		}
		dir := r.Direction
		if dir != DirectionVertical {
			dir = DirectionHorizontal
		}
		bg, fg := sampleColors(img, box)
		regions = append(regions, TextRegion{
			Polygon:   BoxPolygon(box),
			Text:      text,
			FontSize:  int(r.FontSize),
			Direction: dir,
			FgColor:   fg,
			BgColor:   bg,
		})
	}
	reindex(regions)
	return regions
}

// Render paints the translations and encodes the page.
func (v *Vision) Render(ctx context.Context, c *Context) ([]byte, error) {
	if !v.Ready() {
		return nil, ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Encode(Paint(c), c.Format)
}
