package types

import (
	"errors"
	"fmt"
)

// Per-image failure categories. Loaders and extractors wrap one of these so
// the batch builder can count failures by kind.
var (
	ErrUnreadableImage   = errors.New("unreadable image")
	ErrTooLarge          = errors.New("file too large")
	ErrDimensionExceeded = errors.New("image dimensions exceed limit")
	ErrExtraction        = errors.New("feature extraction failed")
)

// Failure reasons used in counters, logs and metrics labels.
const (
	ReasonUnreadable = "unreadable"
	ReasonTooLarge   = "too_large"
	ReasonDimension  = "dimension_exceeded"
	ReasonExtraction = "extraction"
	ReasonSearch     = "search"
)

// FailureReason maps an extraction error to its counter label.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrTooLarge):
		return ReasonTooLarge
	case errors.Is(err, ErrDimensionExceeded):
		return ReasonDimension
	case errors.Is(err, ErrUnreadableImage):
		return ReasonUnreadable
	default:
		return ReasonExtraction
	}
}

// ImageError attaches the offending path to a categorized failure.
type ImageError struct {
	Path string
	Kind error
	Err  error
}

func (e *ImageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Path, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Path, e.Kind, e.Err)
}

// Is reports whether target is the failure category.
func (e *ImageError) Is(target error) bool {
	return target == e.Kind
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// NewImageError builds an ImageError; cause may be nil.
func NewImageError(path string, kind, cause error) error {
	return &ImageError{Path: path, Kind: kind, Err: cause}
}
