package imgpress

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// EncodeParams are the format-specific knobs passed to the encode step.
type EncodeParams struct {
	// Quality is the lossy encode quality (JPEG, WEBP).
	Quality int
	// Progressive requests progressive scans (JPEG).
	Progressive bool
	// Optimize requests the slower, smaller encoder settings.
	Optimize bool
	// Method is the WEBP compression effort (6 = slowest, best).
	Method int
}

// ImageTransformer applies colour-mode normalisation and resizing to a
// decoded image and derives the encode parameters for the target format.
type ImageTransformer struct {
	cfg    Config
	target Format
}

// NewImageTransformer creates a transformer for a validated Config.
func NewImageTransformer(cfg Config) *ImageTransformer {
	return &ImageTransformer{cfg: cfg, target: cfg.TargetFormat()}
}

// Transform normalises the colour mode, resizes within the configured
// bounds, and returns the image together with the encode parameters.
func (t *ImageTransformer) Transform(img image.Image) (image.Image, EncodeParams) {
	if t.target == FormatJPEG && needsFlatten(img) {
		img = flattenOntoWhite(img)
	}
	img = t.resize(img)
	return img, t.encodeParams()
}

// needsFlatten reports whether the image carries an alpha or palette
// channel that JPEG cannot represent.
func needsFlatten(img image.Image) bool {
	switch img.(type) {
	case *image.Paletted:
		return true
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64:
		return true
	}
	return false
}

// flattenOntoWhite composites the image onto an opaque white background
// of the same dimensions. Transparent regions become white; palette
// images without alpha are flattened unchanged.
func flattenOntoWhite(img image.Image) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Over)
	return dst
}

// resize applies the width cap and then the height cap, each preserving
// aspect ratio. The two caps are sequential constraints, not a single
// bounding box: the height pass scales the width-capped intermediate.
func (t *ImageTransformer) resize(img image.Image) image.Image {
	if t.cfg.MaxWidth == 0 && t.cfg.MaxHeight == 0 {
		return img
	}

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	targetWidth, targetHeight := width, height

	if t.cfg.MaxWidth > 0 && targetWidth > t.cfg.MaxWidth {
		ratio := float64(t.cfg.MaxWidth) / float64(targetWidth)
		targetHeight = int(float64(targetHeight) * ratio)
		targetWidth = t.cfg.MaxWidth
	}

	if t.cfg.MaxHeight > 0 && targetHeight > t.cfg.MaxHeight {
		ratio := float64(t.cfg.MaxHeight) / float64(targetHeight)
		targetWidth = int(float64(targetWidth) * ratio)
		targetHeight = t.cfg.MaxHeight
	}

	if targetWidth == width && targetHeight == height {
		return img
	}
	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos)
}

// encodeParams derives the format-specific encode knobs.
func (t *ImageTransformer) encodeParams() EncodeParams {
	params := EncodeParams{Optimize: t.cfg.Optimize}
	switch t.target {
	case FormatJPEG:
		params.Quality = t.cfg.Quality
		params.Progressive = t.cfg.Progressive
	case FormatPNG:
		params.Optimize = true
	case FormatWEBP:
		params.Quality = t.cfg.Quality
		params.Method = 6
	}
	return params
}
