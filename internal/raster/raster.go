package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync/atomic"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode is wrapped by every Load failure.
var ErrDecode = errors.New("template decode failed")

// fallbackDecoder is consulted when the registered image codecs reject a file.
// It is nil unless the binary is built with the imagick tag.
var fallbackDecoder func(path string) (image.Image, error)

var builtinFormats = []string{"png", "jpeg", "gif", "bmp", "tiff", "webp"}

// Formats lists the template formats this binary can decode.
func Formats() []string {
	out := append([]string(nil), builtinFormats...)
	if fallbackDecoder != nil {
		out = append(out, "imagemagick")
	}
	return out
}

// Raster is an immutable, fully materialized template image.
// Pixels are stored non-premultiplied so the reported RGB matches the file.
type Raster struct {
	img *image.NRGBA
}

// Load decodes the image at path into a Raster.
func Load(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		if fallbackDecoder != nil {
			if alt, altErr := fallbackDecoder(path); altErr == nil {
				return FromImage(alt), nil
			}
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	return FromImage(img), nil
}

// FromImage copies src into a new Raster whose origin is (0,0).
func FromImage(src image.Image) *Raster {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &Raster{img: dst}
}

// Width returns the raster width in pixels.
func (r *Raster) Width() int {
	if r == nil || r.img == nil {
		return 0
	}
	return r.img.Rect.Dx()
}

// Height returns the raster height in pixels.
func (r *Raster) Height() int {
	if r == nil || r.img == nil {
		return 0
	}
	return r.img.Rect.Dy()
}

// Contains reports whether (x, y) addresses a pixel of the raster.
func (r *Raster) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < r.Width() && y < r.Height()
}

// Lookup returns the color at (x, y), or the zero color when (x, y) is out of range.
func (r *Raster) Lookup(x, y int) color.NRGBA {
	if !r.Contains(x, y) {
		return color.NRGBA{}
	}
	i := r.img.PixOffset(x, y)
	p := r.img.Pix[i : i+4 : i+4]
	return color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

// Holder publishes the active raster to readers on other goroutines.
// Each stored Raster stays immutable; reloads replace it wholesale.
type Holder struct {
	cur atomic.Pointer[Raster]
}

// NewHolder returns a Holder serving r.
func NewHolder(r *Raster) *Holder {
	h := &Holder{}
	h.cur.Store(r)
	return h
}

// Current returns the active raster. It may be nil on a zero Holder.
func (h *Holder) Current() *Raster {
	if h == nil {
		return nil
	}
	return h.cur.Load()
}

// Swap installs r and returns the previous raster.
func (h *Holder) Swap(r *Raster) *Raster {
	return h.cur.Swap(r)
}
