// Package rpc defines the wire contract between the orchestrator and the
// GPU worker: paths, headers, request and response bodies, and error codes.
package rpc

// Worker routes.
const (
	PathDetect = "/internal/detect"
	PathRender = "/internal/render"
	PathPage   = "/internal/page"
)

// Multipart form fields accepted by detect and page.
const (
	FieldImage      = "image"
	FieldSourceLang = "source_lang"
	FieldTargetLang = "target_lang"
)

// Response headers on image-bytes responses.
const (
	HeaderPipelineMode       = "X-Pipeline-Mode"
	HeaderRenderElapsedMS    = "X-Render-Elapsed-Ms"
	HeaderRegionsCount       = "X-Regions-Count"
	HeaderTranslator         = "X-Translator"
	HeaderTranslatorModel    = "X-Translator-Model"
	HeaderTranslatorFallback = "X-Translator-Fallback"
	HeaderTaskID             = "X-Task-Id"
)

// PipelineMode tells how a page image was produced.
type PipelineMode string

const (
	ModeSplit    PipelineMode = "split"
	ModeUnified  PipelineMode = "unified"
	ModeFallback PipelineMode = "fallback_to_unified"
)

// Region is the serializable summary of one detected text block.
type Region struct {
	RegionIndex int      `json:"region_index"`
	Text        string   `json:"text"`
	Polygon     [][2]int `json:"polygon"`
	FontSize    int      `json:"font_size"`
	Direction   string   `json:"direction"`
	FgColor     [3]uint8 `json:"fg_color"`
	BgColor     [3]uint8 `json:"bg_color"`
	StrokeWidth float64  `json:"stroke_width"`
}

// DetectResponse is returned by POST /internal/detect.
type DetectResponse struct {
	TaskID       string           `json:"task_id"`
	TTLSeconds   int              `json:"ttl_seconds"`
	ImageHash    string           `json:"image_hash"`
	RegionsCount int              `json:"regions_count"`
	Regions      []Region         `json:"regions"`
	ElapsedMS    int64            `json:"elapsed_ms"`
	Timings      map[string]int64 `json:"timings,omitempty"`
}

// TranslatedRegion pairs a region index with its translated text.
type TranslatedRegion struct {
	RegionIndex int    `json:"region_index"`
	Translation string `json:"translation"`
}

// RenderRequest is the body of POST /internal/render.
// Translator, Model and FallbackUsed are echoed back as headers only.
type RenderRequest struct {
	TaskID            string             `json:"task_id"`
	ImageHash         string             `json:"image_hash"`
	TranslatedRegions []TranslatedRegion `json:"translated_regions"`
	Translator        string             `json:"translator,omitempty"`
	Model             string             `json:"model,omitempty"`
	FallbackUsed      bool               `json:"fallback_used,omitempty"`
}
