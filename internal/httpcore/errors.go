// Package httpcore implements the incremental HTTP/1.1 request parser
// (spec component E) and the mmap-backed response builder (spec
// component F). Grounded on original_source's HttpRequest/HttpResponse
// for exact state-machine and response semantics, and on
// shockwave/pkg/shockwave/http11/errors.go for the sentinel-error idiom
// (one errors.New per failure kind, grouped by concern).
package httpcore

import "errors"

// Parser errors.
var (
	ErrBadRequest = errors.New("httpcore: malformed request line")
)

// Responder errors.
var (
	ErrFileMissing   = errors.New("httpcore: file missing or is a directory")
	ErrNotReadable   = errors.New("httpcore: file not world-readable")
	ErrMappingFailed = errors.New("httpcore: mmap failed")
)
