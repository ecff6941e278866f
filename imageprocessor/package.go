// Package imageprocessor loads images defensively and turns them into
// embeddings with a frozen convolutional backbone.
package imageprocessor

import "gocv.io/x/gocv"

// ImageLoader is the interface that all image loaders must implement
type ImageLoader interface {
	// Decode turns the raw file bytes into a 3-channel BGR Mat. The caller
	// owns the returned Mat.
	Decode(path string, data []byte) (gocv.Mat, error)
}
