package imageprocessor

import (
	"fmt"
	"os"

	"imagematch/logging"
	"imagematch/types"

	"gocv.io/x/gocv"
)

// DimensionProbe reports image dimensions without decoding pixels.
type DimensionProbe interface {
	Dimensions(path string) (width, height int, err error)
}

// LoaderOptions defines the limits applied before and after decoding
type LoaderOptions struct {
	MaxFileBytes int64
	MaxDimension int

	// Probe, when set, is consulted for formats whose headers Go cannot read.
	Probe DimensionProbe
}

// Loader reads image files into sanitized 3-channel Mats.
type Loader struct {
	options  LoaderOptions
	registry *ImageLoaderRegistry
}

// NewLoader creates a Loader with the default loader registry
func NewLoader(options LoaderOptions) *Loader {
	return &Loader{options: options, registry: NewImageLoaderRegistry()}
}

// LoadSanitized returns the image at path as a 3-channel BGR Mat owned by
// the caller. Files over MaxFileBytes are rejected before they are read and
// images wider or taller than MaxDimension before their pixels are decoded
// when the header allows it. All failures are *types.ImageError and come
// with an unallocated Mat, so nothing native is held for a rejected file.
func (l *Loader) LoadSanitized(path string) (gocv.Mat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return gocv.Mat{}, types.NewImageError(path, types.ErrUnreadableImage, err)
	}
	if !info.Mode().IsRegular() {
		return gocv.Mat{}, types.NewImageError(path, types.ErrUnreadableImage, fmt.Errorf("not a regular file"))
	}
	if l.options.MaxFileBytes > 0 && info.Size() > l.options.MaxFileBytes {
		return gocv.Mat{}, types.NewImageError(path, types.ErrTooLarge,
			fmt.Errorf("%d bytes exceeds %d", info.Size(), l.options.MaxFileBytes))
	}
	if info.Size() == 0 {
		return gocv.Mat{}, types.NewImageError(path, types.ErrUnreadableImage, fmt.Errorf("empty file"))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return gocv.Mat{}, types.NewImageError(path, types.ErrUnreadableImage, err)
	}

	if w, h, ok := l.headerDimensions(path, data); ok && l.exceeds(w, h) {
		return gocv.Mat{}, types.NewImageError(path, types.ErrDimensionExceeded,
			fmt.Errorf("%dx%d exceeds %d", w, h, l.options.MaxDimension))
	}

	img, err := l.registry.Decode(path, data)
	if err != nil {
		img.Close()
		return gocv.Mat{}, types.NewImageError(path, types.ErrUnreadableImage, err)
	}

	if l.exceeds(img.Cols(), img.Rows()) {
		w, h := img.Cols(), img.Rows()
		img.Close()
		return gocv.Mat{}, types.NewImageError(path, types.ErrDimensionExceeded,
			fmt.Errorf("%dx%d exceeds %d", w, h, l.options.MaxDimension))
	}

	logging.DebugLog("Loaded %s (%dx%d)", path, img.Cols(), img.Rows())
	return img, nil
}

func (l *Loader) exceeds(width, height int) bool {
	limit := l.options.MaxDimension
	return limit > 0 && (width > limit || height > limit)
}

func (l *Loader) headerDimensions(path string, data []byte) (int, int, bool) {
	if w, h, ok := goImageConfig(data); ok {
		return w, h, true
	}
	if l.options.Probe == nil {
		return 0, 0, false
	}
	w, h, err := l.options.Probe.Dimensions(path)
	if err != nil {
		logging.DebugLog("Dimension probe failed for %s: %v", path, err)
		return 0, 0, false
	}
	return w, h, true
}
