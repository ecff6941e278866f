package imageprocessor

import (
	"path/filepath"
	"strings"
)

// FormatType represents a known image format type
type FormatType string

// Known image format constants
const (
	FormatUnknown FormatType = "unknown"
	FormatJPEG    FormatType = "jpeg"
	FormatPNG     FormatType = "png"
	FormatGIF     FormatType = "gif"
	FormatTIFF    FormatType = "tiff"
	FormatBMP     FormatType = "bmp"
	FormatWEBP    FormatType = "webp"
)

// Map of extensions to format types
var formatExtensions = map[string]FormatType{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".bmp":  FormatBMP,
	".webp": FormatWEBP,
}

// GetFileFormat returns the format type based on file extension
func GetFileFormat(path string) FormatType {
	ext := strings.ToLower(filepath.Ext(path))
	format, exists := formatExtensions[ext]
	if !exists {
		return FormatUnknown
	}
	return format
}

// UnknownExtensions returns the entries of exts with no dedicated decoder.
// Files with those extensions are still handed to OpenCV.
func UnknownExtensions(exts []string) []string {
	var unknown []string
	for _, ext := range exts {
		if GetFileFormat("x"+ext) == FormatUnknown {
			unknown = append(unknown, ext)
		}
	}
	return unknown
}

// needsGoDecoder reports formats OpenCV builds commonly lack.
func needsGoDecoder(format FormatType) bool {
	return format == FormatGIF || format == FormatWEBP || format == FormatTIFF
}
