package imageprocessor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"runtime"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"gocv.io/x/gocv"
)

// Decode the image with Go's image packages
func tryGoImagePackages(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// goImageConfig reads the header dimensions without decoding pixels.
func goImageConfig(data []byte) (width, height int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// Convert a Go image to a 3-channel BGR Mat. Alpha is dropped without
// compositing and palette or gray sources are expanded to colour.
func gocvMatFromGoImage(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return gocv.Mat{}, fmt.Errorf("empty image bounds %v", bounds)
	}

	data := make([]byte, 0, width*height*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			data = append(data, c.B, c.G, c.R)
		}
	}

	// NewMatFromBytes aliases data; clone so the Mat owns its pixels.
	view, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, data)
	if err != nil {
		return gocv.Mat{}, err
	}
	mat := view.Clone()
	view.Close()
	runtime.KeepAlive(data)
	return mat, nil
}

// ensureBGR converts 1- and 4-channel Mats to 3-channel BGR in place.
func ensureBGR(img *gocv.Mat) error {
	var code gocv.ColorConversionCode
	switch img.Channels() {
	case 3:
		return nil
	case 1:
		code = gocv.ColorGrayToBGR
	case 4:
		code = gocv.ColorBGRAToBGR
	default:
		return fmt.Errorf("unsupported channel count %d", img.Channels())
	}

	converted := gocv.NewMat()
	gocv.CvtColor(*img, &converted, code)
	img.Close()
	*img = converted
	return nil
}
