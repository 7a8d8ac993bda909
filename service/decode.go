package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"slices"

	_ "github.com/gen2brain/avif"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
)

// Decode parses data into an opaque RGB image. Anything that is not a
// readable image in one of formats, or that declares more than maxPixels
// pixels, fails with ErrDecode.
func Decode(data []byte, formats []string, autoOrient bool, maxPixels int) (*image.NRGBA, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if !slices.Contains(formats, format) {
		return nil, format, fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
	}
	// decoders allocate the declared size up front, before any pixel data is read
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, format, fmt.Errorf("%w %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(autoOrient))
	if err != nil {
		return nil, format, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, format, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return ToRGB(img), format, nil
}

// ToRGB converts any color model to NRGBA with every pixel opaque. Alpha is
// dropped, not composited, so the straight color channels are kept as-is.
func ToRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
