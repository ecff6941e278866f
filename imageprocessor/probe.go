package imageprocessor

import (
	"fmt"
	"sync"

	"github.com/barasher/go-exiftool"
)

// ExifProbe reads image dimensions from metadata through a long-running
// exiftool process.
type ExifProbe struct {
	et *exiftool.Exiftool
	mu sync.Mutex
}

// NewExifProbe starts exiftool. It fails when the binary is not installed.
func NewExifProbe() (*ExifProbe, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize exiftool: %w", err)
	}
	return &ExifProbe{et: et}, nil
}

// Dimensions implements DimensionProbe
func (p *ExifProbe) Dimensions(path string) (int, int, error) {
	p.mu.Lock()
	fileInfos := p.et.ExtractMetadata(path)
	p.mu.Unlock()

	if len(fileInfos) == 0 {
		return 0, 0, fmt.Errorf("no metadata extracted")
	}
	fileInfo := fileInfos[0]
	if fileInfo.Err != nil {
		return 0, 0, fileInfo.Err
	}

	width, err := fileInfo.GetInt("ImageWidth")
	if err != nil {
		return 0, 0, fmt.Errorf("ImageWidth: %w", err)
	}
	height, err := fileInfo.GetInt("ImageHeight")
	if err != nil {
		return 0, 0, fmt.Errorf("ImageHeight: %w", err)
	}
	return int(width), int(height), nil
}

// Close stops the exiftool process
func (p *ExifProbe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.et.Close()
}
