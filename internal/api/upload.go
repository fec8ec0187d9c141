package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// FormFile is one file part of a multipart upload.
type FormFile struct {
	Field string
	Path  string
}

// RawResponse is a successful non-JSON response, e.g. image bytes.
type RawResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// Upload posts files and fields as multipart/form-data and decodes the
// JSON response.
func (c *Client) Upload(ctx context.Context, path string, files []FormFile, fields map[string]string, result any) error {
	resp, err := c.postForm(ctx, path, files, fields)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, result)
}

// UploadRaw posts a multipart form and returns the raw body. Responses with
// a status of 400 or above are returned as errors.
func (c *Client) UploadRaw(ctx context.Context, path string, files []FormFile, fields map[string]string) (*RawResponse, error) {
	resp, err := c.postForm(ctx, path, files, fields)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return readRaw(resp)
}

// GetRaw performs a GET request and returns the raw body.
func (c *Client) GetRaw(ctx context.Context, path string) (*RawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return readRaw(resp)
}

func (c *Client) postForm(ctx context.Context, path string, files []FormFile, fields map[string]string) (*http.Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		if err := addFile(mw, f); err != nil {
			return nil, err
		}
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func addFile(mw *multipart.Writer, f FormFile) error {
	src, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Path, err)
	}
	defer src.Close()

	part, err := mw.CreateFormFile(f.Field, filepath.Base(f.Path))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("failed to copy %s: %w", f.Path, err)
	}
	return nil
}

func readRaw(resp *http.Response) (*RawResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, statusError(resp.StatusCode, body)
	}
	return &RawResponse{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
