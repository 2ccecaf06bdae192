package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrExtractionFailed  = errors.New("extraction failed")
	ErrAuthRequired      = errors.New("auth required")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrOutputMissing     = errors.New("output missing")
	ErrPreviewFailed     = errors.New("preview failed")
	ErrTimeout           = errors.New("timeout")
)
