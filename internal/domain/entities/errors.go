package entities

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure aborts the run; callers distinguish kinds with errors.Is.
var (
	ErrUpstreamRequest  = errors.New("upstream request failed")
	ErrReleaseNotFound  = errors.New("release not found")
	ErrAssetNotFound    = errors.New("asset not found")
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrShasumNotFound   = errors.New("shasum not found")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrStreamWrite      = errors.New("stream write failed")
	ErrRegistry         = errors.New("registry error")
	ErrUpload           = errors.New("upload failed")
	ErrInvalidPlatform  = errors.New("invalid platform identifier")
	ErrInvalidTag       = errors.New("invalid release tag")
	ErrSignature        = errors.New("signature verification failed")
)

// HTTPError is a non-success response from the source host or the registry.
// Message carries the response body verbatim.
type HTTPError struct {
	Kind       error
	Op         string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %v: status %d", e.Op, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v: status %d: %s", e.Op, e.Kind, e.StatusCode, e.Message)
}

// Unwrap exposes the error kind to errors.Is
func (e *HTTPError) Unwrap() error {
	return e.Kind
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
