package imageprocessor

import (
	"errors"
	"fmt"

	"imagematch/embedding"
	"imagematch/types"
)

// FeatureExtractor maps an image path to a unit-length embedding. Decoding
// and preprocessing run concurrently; only the backbone call is serialized.
type FeatureExtractor struct {
	loader       *Loader
	preprocessor *Preprocessor
	backbone     Backbone
	dim          int
}

// ExtractorOptions groups everything a FeatureExtractor needs
type ExtractorOptions struct {
	Loader     LoaderOptions
	Preprocess PreprocessOptions
	Dim        int
}

// NewFeatureExtractor wires a loader and preprocessor around backbone
func NewFeatureExtractor(options ExtractorOptions, backbone Backbone) (*FeatureExtractor, error) {
	if backbone == nil {
		return nil, errors.New("backbone is required")
	}
	if options.Dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", options.Dim)
	}
	pre, err := NewPreprocessor(options.Preprocess)
	if err != nil {
		return nil, err
	}
	return &FeatureExtractor{
		loader:       NewLoader(options.Loader),
		preprocessor: pre,
		backbone:     backbone,
		dim:          options.Dim,
	}, nil
}

// Dim implements embedding.Extractor
func (e *FeatureExtractor) Dim() int { return e.dim }

// Extract implements embedding.Extractor
func (e *FeatureExtractor) Extract(path string) (types.Embedding, error) {
	img, err := e.loader.LoadSanitized(path)
	if err != nil {
		img.Close()
		return nil, err
	}
	defer img.Close()

	blob, err := e.preprocessor.Blob(img)
	if err != nil {
		blob.Close()
		return nil, types.NewImageError(path, types.ErrExtraction, err)
	}
	defer blob.Close()

	raw, err := e.backbone.Forward(blob)
	if err != nil {
		return nil, types.NewImageError(path, types.ErrExtraction, err)
	}
	if len(raw) != e.dim {
		return nil, types.NewImageError(path, types.ErrExtraction,
			fmt.Errorf("backbone returned %d features, want %d", len(raw), e.dim))
	}
	return embedding.Normalize(raw), nil
}

// Close releases the backbone
func (e *FeatureExtractor) Close() error {
	return e.backbone.Close()
}
