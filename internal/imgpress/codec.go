package imgpress

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Codec decodes image files and encodes rasters to disk.
type Codec interface {
	// Decode reads and decodes the image at path, picking the decoder
	// from the file extension.
	Decode(path string) (image.Image, error)
	// Encode writes the image to path in the given format and returns
	// the number of bytes written. A failed encode leaves no file behind.
	Encode(img image.Image, path string, format Format, params EncodeParams) (int64, error)
	// EncodedSize encodes the image to a counter without touching the
	// filesystem and returns the resulting size.
	EncodedSize(img image.Image, format Format, params EncodeParams) (int64, error)
}

// fileCodec implements the Codec interface on the local filesystem.
type fileCodec struct{}

// NewCodec creates a new Codec instance.
func NewCodec() Codec {
	return &fileCodec{}
}

// Decode reads and decodes the image at path.
func (c *fileCodec) Decode(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(file)
	case ".png":
		img, err = png.Decode(file)
	case ".bmp":
		img, err = bmp.Decode(file)
	case ".tiff":
		img, err = tiff.Decode(file)
	case ".webp":
		img, err = webp.Decode(file)
	default:
		return nil, fmt.Errorf("unsupported input format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Encode writes the image to path and returns the bytes written.
func (c *fileCodec) Encode(img image.Image, path string, format Format, params EncodeParams) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	counter := &countingWriter{w: file}
	if err := encodeTo(counter, img, format, params); err != nil {
		file.Close()
		os.Remove(path)
		return 0, err
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return 0, err
	}
	return counter.n, nil
}

// EncodedSize encodes the image to a counter and returns the size.
func (c *fileCodec) EncodedSize(img image.Image, format Format, params EncodeParams) (int64, error) {
	counter := &countingWriter{w: io.Discard}
	if err := encodeTo(counter, img, format, params); err != nil {
		return 0, err
	}
	return counter.n, nil
}

// encodeTo writes the image to w in the given format.
//
// image/jpeg only emits baseline JPEGs, and the webp encoder exposes no
// effort knob, so Progressive and Method are accepted but have no effect
// on the emitted bytes.
func encodeTo(w io.Writer, img image.Image, format Format, params EncodeParams) error {
	switch format {
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: params.Quality})
	case FormatPNG:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if params.Optimize {
			encoder.CompressionLevel = png.BestCompression
		}
		return encoder.Encode(w, img)
	case FormatWEBP:
		return webp.Encode(w, img, &webp.Options{Quality: float32(params.Quality)})
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		opts := &tiff.Options{}
		if params.Optimize {
			opts.Compression = tiff.Deflate
			opts.Predictor = true
		}
		return tiff.Encode(w, img, opts)
	}
	return fmt.Errorf("unsupported target format: %q", format)
}

// countingWriter counts the bytes passed through to the underlying writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
