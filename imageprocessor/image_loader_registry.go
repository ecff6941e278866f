package imageprocessor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"imagematch/logging"

	"gocv.io/x/gocv"
)

// ImageLoaderRegistry maintains a registry of image loaders
type ImageLoaderRegistry struct {
	loaders       map[string]ImageLoader
	defaultLoader ImageLoader
	mutex         sync.RWMutex
}

// NewImageLoaderRegistry creates a registry with a loader for every
// supported extension
func NewImageLoaderRegistry() *ImageLoaderRegistry {
	registry := &ImageLoaderRegistry{
		loaders: make(map[string]ImageLoader),
	}

	opencvFirst := &StandardImageLoader{}
	goFirst := &StandardImageLoader{PreferGo: true}
	for ext, format := range formatExtensions {
		if needsGoDecoder(format) {
			registry.RegisterLoader(ext, goFirst)
		} else {
			registry.RegisterLoader(ext, opencvFirst)
		}
	}
	registry.defaultLoader = opencvFirst

	return registry
}

// RegisterLoader registers a new loader for a specific file extension
func (r *ImageLoaderRegistry) RegisterLoader(ext string, loader ImageLoader) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.loaders[strings.ToLower(ext)] = loader
}

// GetLoader returns the appropriate loader for the given path
func (r *ImageLoaderRegistry) GetLoader(path string) ImageLoader {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if loader, ok := r.loaders[strings.ToLower(filepath.Ext(path))]; ok {
		return loader
	}
	return r.defaultLoader
}

// Decode decodes data using the loader registered for path
func (r *ImageLoaderRegistry) Decode(path string, data []byte) (gocv.Mat, error) {
	return r.GetLoader(path).Decode(path, data)
}

// StandardImageLoader decodes with OpenCV and falls back to Go's image
// packages. PreferGo reverses the order for formats OpenCV often lacks.
type StandardImageLoader struct {
	PreferGo bool
}

// Decode implements ImageLoader
func (l *StandardImageLoader) Decode(path string, data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.Mat{}, fmt.Errorf("empty file")
	}

	decoders := []func([]byte) (gocv.Mat, error){decodeOpenCV, decodeGo}
	if l.PreferGo {
		decoders[0], decoders[1] = decoders[1], decoders[0]
	}

	var firstErr error
	for _, decode := range decoders {
		img, err := decode(data)
		if err == nil {
			if err = ensureBGR(&img); err == nil {
				return img, nil
			}
		}
		img.Close()
		if firstErr == nil {
			firstErr = err
		}
		logging.DebugLog("Decoder failed for %s: %v", path, err)
	}
	return gocv.Mat{}, firstErr
}

func decodeOpenCV(data []byte) (gocv.Mat, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor|gocv.IMReadIgnoreOrientation)
	if err != nil {
		return img, err
	}
	if img.Empty() {
		return img, fmt.Errorf("opencv could not decode image")
	}
	return img, nil
}

func decodeGo(data []byte) (gocv.Mat, error) {
	goImg, err := tryGoImagePackages(data)
	if err != nil {
		return gocv.Mat{}, err
	}
	return gocvMatFromGoImage(goImg)
}
