package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// renderEnvelopeSchema covers the fields needed to find the task. The
// translations are checked separately once the task is known to be live.
const renderEnvelopeSchema = `{
	"type": "object",
	"required": ["task_id", "image_hash"],
	"properties": {
		"task_id": {"type": "string", "minLength": 1},
		"image_hash": {"type": "string", "minLength": 1},
		"translator": {"type": "string"},
		"model": {"type": "string"},
		"fallback_used": {"type": "boolean"}
	}
}`

const translatedRegionsSchema = `{
	"type": ["array", "null"],
	"items": {
		"type": "object",
		"required": ["region_index", "translation"],
		"properties": {
			"region_index": {"type": "integer"},
			"translation": {"type": "string"}
		}
	}
}`

var (
	renderSchemaOnce sync.Once
	envelopeSchema   *jsonschema.Schema
	regionsSchema    *jsonschema.Schema
	renderSchemaErr  error
)

func compiledRenderSchemas() (*jsonschema.Schema, *jsonschema.Schema, error) {
	renderSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("render_envelope.json", strings.NewReader(renderEnvelopeSchema)); err != nil {
			renderSchemaErr = fmt.Errorf("failed to load render schema: %w", err)
			return
		}
		if err := compiler.AddResource("translated_regions.json", strings.NewReader(translatedRegionsSchema)); err != nil {
			renderSchemaErr = fmt.Errorf("failed to load regions schema: %w", err)
			return
		}
		if envelopeSchema, renderSchemaErr = compiler.Compile("render_envelope.json"); renderSchemaErr != nil {
			return
		}
		regionsSchema, renderSchemaErr = compiler.Compile("translated_regions.json")
	})
	return envelopeSchema, regionsSchema, renderSchemaErr
}

// RenderBody is a render request whose translations have not been checked.
type RenderBody struct {
	TaskID       string
	ImageHash    string
	Translator   string
	Model        string
	FallbackUsed bool

	regions json.RawMessage
}

// DecodeRenderRequest checks the task fields of body. The translations are
// left raw so a lookup of the task can run before their shape is judged;
// see RenderBody.Regions.
func DecodeRenderRequest(body []byte) (*RenderBody, error) {
	envelope, _, err := compiledRenderSchemas()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, Errorf(CodeRenderInputInvalid, "malformed JSON: %v", err)
	}
	if err := envelope.Validate(doc); err != nil {
		return nil, Errorf(CodeRenderInputInvalid, "%v", err)
	}

	var raw struct {
		TaskID            string          `json:"task_id"`
		ImageHash         string          `json:"image_hash"`
		TranslatedRegions json.RawMessage `json:"translated_regions"`
		Translator        string          `json:"translator"`
		Model             string          `json:"model"`
		FallbackUsed      bool            `json:"fallback_used"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, Errorf(CodeRenderInputInvalid, "decode: %v", err)
	}
	return &RenderBody{
		TaskID:       raw.TaskID,
		ImageHash:    raw.ImageHash,
		Translator:   raw.Translator,
		Model:        raw.Model,
		FallbackUsed: raw.FallbackUsed,
		regions:      raw.TranslatedRegions,
	}, nil
}

// Regions decodes the translations. A missing or null list is empty.
// Shape errors are reported as RENDER_INPUT_INVALID.
func (b *RenderBody) Regions() ([]TranslatedRegion, error) {
	trimmed := bytes.TrimSpace(b.regions)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	_, schema, err := compiledRenderSchemas()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, Errorf(CodeRenderInputInvalid, "malformed translated_regions: %v", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, Errorf(CodeRenderInputInvalid, "translated_regions: %v", err)
	}

	var regions []TranslatedRegion
	if err := json.Unmarshal(trimmed, &regions); err != nil {
		return nil, Errorf(CodeRenderInputInvalid, "decode translated_regions: %v", err)
	}
	return regions, nil
}
