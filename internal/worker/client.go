package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/engine"
	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/rpc"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL of the worker (e.g. http://127.0.0.1:8090)
	BaseURL string
	// AuthToken is sent as a bearer token when set
	AuthToken string
	// Timeout bounds each detect, render and page call (default: 120s)
	Timeout time.Duration
	// HTTPClient overrides the default client
	HTTPClient *http.Client
}

// Client calls a worker over HTTP. Worker failures come back as *rpc.Error;
// transport failures are returned unclassified.
type Client struct {
	baseURL    string
	auth       string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a worker client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		auth:       BearerHeader(cfg.AuthToken),
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
	}
}

// Detect uploads img and returns the cached task handle.
func (c *Client) Detect(ctx context.Context, img []byte, opts engine.Options) (*rpc.DetectResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, contentType, err := imageForm(img, opts)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, rpc.PathDetect, contentType, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	var out rpc.DetectResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode detect response: %w", err)
	}
	return &out, nil
}

// Render submits translations for a detected task.
func (c *Client) Render(ctx context.Context, req *rpc.RenderRequest) (*Rendered, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal render request: %w", err)
	}
	resp, err := c.do(ctx, rpc.PathRender, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return renderedFrom(resp)
}

// Page runs the unified single call.
func (c *Client) Page(ctx context.Context, img []byte, opts engine.Options) (*Rendered, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, contentType, err := imageForm(img, opts)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, rpc.PathPage, contentType, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return renderedFrom(resp)
}

func (c *Client) do(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.auth != "" {
		req.Header.Set("Authorization", c.auth)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", path, err)
	}
	return resp, nil
}

// readResponse returns the body of a 2xx response, or the worker's
// classified error.
func readResponse(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 400 {
		return data, nil
	}

	var errResp rpc.ErrorResponse
	if json.Unmarshal(data, &errResp) == nil && errResp.Code != "" {
		return nil, &rpc.Error{Code: errResp.Code, Message: errResp.Error}
	}
	msg := strings.TrimSpace(string(data))
	if errResp.Error != "" {
		msg = errResp.Error
	}
	return nil, &rpc.Error{Code: rpc.CodeFromStatus(resp.StatusCode), Message: msg}
}

func renderedFrom(resp *http.Response) (*Rendered, error) {
	data, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	h := resp.Header
	out := &Rendered{
		Image:       data,
		ContentType: h.Get("Content-Type"),
		Mode:        rpc.PipelineMode(h.Get(rpc.HeaderPipelineMode)),
		Translator:  h.Get(rpc.HeaderTranslator),
		Model:       h.Get(rpc.HeaderTranslatorModel),
	}
	out.RegionsCount, _ = strconv.Atoi(h.Get(rpc.HeaderRegionsCount))
	if ms, err := strconv.ParseInt(h.Get(rpc.HeaderRenderElapsedMS), 10, 64); err == nil {
		out.Elapsed = time.Duration(ms) * time.Millisecond
	}
	out.FallbackUsed, _ = strconv.ParseBool(h.Get(rpc.HeaderTranslatorFallback))
	return out, nil
}

func imageForm(img []byte, opts engine.Options) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile(rpc.FieldImage, "page")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(img); err != nil {
		return nil, "", fmt.Errorf("failed to write image: %w", err)
	}
	if opts.SourceLang != "" {
		mw.WriteField(rpc.FieldSourceLang, opts.SourceLang)
	}
	if opts.TargetLang != "" {
		mw.WriteField(rpc.FieldTargetLang, opts.TargetLang)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// WriteRendered writes r as an image response with its metadata headers.
func WriteRendered(w http.ResponseWriter, r *Rendered) {
	h := w.Header()
	h.Set("Content-Type", r.ContentType)
	h.Set(rpc.HeaderPipelineMode, string(r.Mode))
	h.Set(rpc.HeaderRenderElapsedMS, strconv.FormatInt(r.Elapsed.Milliseconds(), 10))
	h.Set(rpc.HeaderRegionsCount, strconv.Itoa(r.RegionsCount))
	if r.Translator != "" {
		h.Set(rpc.HeaderTranslator, r.Translator)
	}
	if r.Model != "" {
		h.Set(rpc.HeaderTranslatorModel, r.Model)
	}
	h.Set(rpc.HeaderTranslatorFallback, strconv.FormatBool(r.FallbackUsed))
	w.WriteHeader(http.StatusOK)
	w.Write(r.Image)
}

// WriteError writes err as the worker's JSON error body with the status of
// its code.
func WriteError(w http.ResponseWriter, err error) {
	code, msg := rpc.CodeInternal, err.Error()
	var rerr *rpc.Error
	if errors.As(err, &rerr) {
		code, msg = rerr.Code, rerr.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code.HTTPStatus())
	json.NewEncoder(w).Encode(rpc.ErrorResponse{Error: msg, Code: code})
}
