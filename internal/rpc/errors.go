package rpc

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a worker failure class on the wire.
type Code string

const (
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeNotReady           Code = "NOT_READY"
	CodeCacheMiss          Code = "CACHE_MISS"
	CodeTaskExpired        Code = "TASK_EXPIRED"
	CodeImageHashMismatch  Code = "IMAGE_HASH_MISMATCH"
	CodeRenderInputInvalid Code = "RENDER_INPUT_INVALID"
	CodeInvalidImage       Code = "INVALID_IMAGE"
	CodeBusy               Code = "BUSY"
	CodeTranslationFailed  Code = "TRANSLATION_FAILED"
	CodeInternal           Code = "INTERNAL"
)

// HTTPStatus returns the status code the worker answers with for c.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotReady:
		return http.StatusServiceUnavailable
	case CodeCacheMiss:
		return http.StatusNotFound
	case CodeTaskExpired:
		return http.StatusGone
	case CodeImageHashMismatch:
		return http.StatusUnprocessableEntity
	case CodeRenderInputInvalid, CodeInvalidImage:
		return http.StatusBadRequest
	case CodeBusy:
		return http.StatusTooManyRequests
	case CodeTranslationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeFromStatus recovers a code from a bare status when the response body
// carries none. 400 maps to RENDER_INPUT_INVALID because it is the only
// 400 the render endpoint produces. A bare 502 is more likely a proxy than
// the worker, so it stays INTERNAL.
func CodeFromStatus(status int) Code {
	switch status {
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusServiceUnavailable:
		return CodeNotReady
	case http.StatusNotFound:
		return CodeCacheMiss
	case http.StatusGone:
		return CodeTaskExpired
	case http.StatusUnprocessableEntity:
		return CodeImageHashMismatch
	case http.StatusBadRequest:
		return CodeRenderInputInvalid
	case http.StatusTooManyRequests:
		return CodeBusy
	default:
		return CodeInternal
	}
}

// TriggersFallback reports whether the split path lost its cached context.
// Only these codes are recovered by re-running the page through the unified path.
func (c Code) TriggersFallback() bool {
	switch c {
	case CodeCacheMiss, CodeTaskExpired, CodeImageHashMismatch:
		return true
	}
	return false
}

// Retryable reports whether the caller should back off and try again.
func (c Code) Retryable() bool {
	return c == CodeNotReady || c == CodeBusy
}

// Fatal reports whether c indicates a configuration or caller bug.
func (c Code) Fatal() bool {
	switch c {
	case CodeUnauthorized, CodeRenderInputInvalid, CodeInvalidImage:
		return true
	}
	return false
}

// Error is a classified worker failure.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds an *Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code of the first *Error in err's chain.
// Returns "" when err carries no classification.
func CodeOf(err error) Code {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Code
	}
	return ""
}

// ErrorResponse is the JSON body of every failed worker call.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  Code   `json:"code,omitempty"`
}
