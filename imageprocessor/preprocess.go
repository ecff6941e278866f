package imageprocessor

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Preprocessing strategies
const (
	StrategyCenterCrop = "center-crop"
	StrategyResize     = "resize"
)

// ImageNet statistics in RGB order
var (
	imageNetMean = [3]float32{0.485, 0.456, 0.406}
	imageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// PreprocessOptions defines the geometry of the network input
type PreprocessOptions struct {
	Strategy   string
	InputSize  int
	ResizeSize int
}

// Preprocessor turns a BGR image into a normalized NCHW float blob.
type Preprocessor struct {
	options PreprocessOptions
}

// NewPreprocessor validates options and returns a Preprocessor
func NewPreprocessor(options PreprocessOptions) (*Preprocessor, error) {
	if options.InputSize <= 0 {
		return nil, fmt.Errorf("input size must be positive, got %d", options.InputSize)
	}
	switch options.Strategy {
	case StrategyResize:
	case StrategyCenterCrop, "":
		options.Strategy = StrategyCenterCrop
		if options.ResizeSize < options.InputSize {
			return nil, fmt.Errorf("resize size %d smaller than input size %d", options.ResizeSize, options.InputSize)
		}
	default:
		return nil, fmt.Errorf("unknown preprocessing strategy %q", options.Strategy)
	}
	return &Preprocessor{options: options}, nil
}

// Blob returns a 1x3xSxS float32 blob in RGB order with ImageNet mean and
// std applied. The caller owns the returned Mat.
func (p *Preprocessor) Blob(img gocv.Mat) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.Mat{}, fmt.Errorf("empty image")
	}

	size := p.options.InputSize
	fitted := gocv.NewMat()
	defer fitted.Close()

	switch p.options.Strategy {
	case StrategyResize:
		gocv.Resize(img, &fitted, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)
	default:
		if err := p.centerCrop(img, &fitted); err != nil {
			return gocv.Mat{}, err
		}
	}

	blob := gocv.BlobFromImage(fitted, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	if err := normalizeBlob(&blob, size*size); err != nil {
		blob.Close()
		return gocv.Mat{}, err
	}
	return blob, nil
}

// centerCrop scales the shorter side to ResizeSize and cuts the central
// InputSize square.
func (p *Preprocessor) centerCrop(img gocv.Mat, dst *gocv.Mat) error {
	w, h := img.Cols(), img.Rows()
	short := p.options.ResizeSize
	var nw, nh int
	if w <= h {
		nw = short
		nh = int(float64(short) * float64(h) / float64(w))
	} else {
		nh = short
		nw = int(float64(short) * float64(w) / float64(h))
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(nw, nh), 0, 0, gocv.InterpolationLinear)

	size := p.options.InputSize
	left := int(math.Round(float64(nw-size) / 2))
	top := int(math.Round(float64(nh-size) / 2))
	if left < 0 || top < 0 {
		return fmt.Errorf("resized image %dx%d smaller than crop %d", nw, nh, size)
	}

	region := resized.Region(image.Rect(left, top, left+size, top+size))
	defer region.Close()
	region.CopyTo(dst)
	return nil
}

func normalizeBlob(blob *gocv.Mat, plane int) error {
	data, err := blob.DataPtrFloat32()
	if err != nil {
		return fmt.Errorf("blob data: %w", err)
	}
	if len(data) != 3*plane {
		return fmt.Errorf("blob has %d values, want %d", len(data), 3*plane)
	}
	for c := 0; c < 3; c++ {
		ch := data[c*plane : (c+1)*plane]
		mean, std := imageNetMean[c], imageNetStd[c]
		for i := range ch {
			ch[i] = (ch[i] - mean) / std
		}
	}
	return nil
}
