package imgpress

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Format identifies an image encoding the codec can read or write.
type Format string

const (
	FormatJPEG Format = "JPEG"
	FormatPNG  Format = "PNG"
	FormatWEBP Format = "WEBP"
	FormatBMP  Format = "BMP"
	FormatTIFF Format = "TIFF"
)

// imageExtensions is the set of file extensions recognised as images,
// compared case-insensitively.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tiff", ".webp"}

// ParseFormat parses a target format name case-insensitively.
// An unrecognised name is a configuration error.
func ParseFormat(name string) (Format, error) {
	switch strings.ToUpper(name) {
	case "JPEG", "JPG":
		return FormatJPEG, nil
	case "PNG":
		return FormatPNG, nil
	case "WEBP":
		return FormatWEBP, nil
	case "BMP":
		return FormatBMP, nil
	case "TIFF":
		return FormatTIFF, nil
	}
	return "", fmt.Errorf("unsupported target format: %q", name)
}

// Extension returns the canonical file extension for the format,
// including the leading dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	case FormatWEBP:
		return ".webp"
	case FormatBMP:
		return ".bmp"
	case FormatTIFF:
		return ".tiff"
	}
	return ""
}

// FormatFromPath derives the format of a file from its extension.
// Returns the empty Format for unrecognised extensions.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".png":
		return FormatPNG
	case ".webp":
		return FormatWEBP
	case ".bmp":
		return FormatBMP
	case ".tiff":
		return FormatTIFF
	}
	return ""
}

// IsImageFile returns true if the file extension is a recognised image format.
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(imageExtensions, ext)
}
