//go:build imagick

package raster

import (
	"fmt"
	"image"

	"gopkg.in/gographics/imagick.v3/imagick"
)

func init() {
	fallbackDecoder = decodeWithImagick
}

// decodeWithImagick reads formats the Go codecs do not cover (PSD, XCF, AVIF...)
// through ImageMagick and exports them as 8-bit RGBA.
func decodeWithImagick(path string) (image.Image, error) {
	imagick.Initialize()
	defer imagick.Terminate()

	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	if err := mw.ReadImage(path); err != nil {
		return nil, fmt.Errorf("imagick read: %w", err)
	}

	w, h := mw.GetImageWidth(), mw.GetImageHeight()
	px, err := mw.ExportImagePixels(0, 0, w, h, "RGBA", imagick.PIXEL_CHAR)
	if err != nil {
		return nil, fmt.Errorf("imagick export: %w", err)
	}
	buf, ok := px.([]byte)
	if !ok || len(buf) != int(w)*int(h)*4 {
		return nil, fmt.Errorf("imagick export: unexpected pixel buffer")
	}

	return &image.NRGBA{
		Pix:    buf,
		Stride: int(w) * 4,
		Rect:   image.Rect(0, 0, int(w), int(h)),
	}, nil
}
