package coords

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pixelpick/internal/sample"
)

// TileUnit is the legacy scale separating a tile index from its pixel offset.
// It is used when the sender does not report a tile size.
const TileUnit = 1000

// ErrBadOrigin is wrapped by ParseOrigin failures.
var ErrBadOrigin = errors.New("origin must be tileX,tileY,pxX,pyY")

// Origin is the global tile/pixel position of the template's (0,0) pixel.
type Origin struct {
	TileX  int `json:"tile_x"`
	TileY  int `json:"tile_y"`
	PixelX int `json:"pixel_x"`
	PixelY int `json:"pixel_y"`
}

// ParseOrigin parses "tileX,tileY,pxX,pyY". Blank parts are skipped and each
// part may carry surrounding whitespace.
func ParseOrigin(input string) (Origin, error) {
	var parts []string
	for _, p := range strings.Split(input, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) != 4 {
		return Origin{}, fmt.Errorf("%w: got %q", ErrBadOrigin, input)
	}

	var vals [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Origin{}, fmt.Errorf("%w: %q is not an integer", ErrBadOrigin, p)
		}
		vals[i] = v
	}
	return Origin{TileX: vals[0], TileY: vals[1], PixelX: vals[2], PixelY: vals[3]}, nil
}

func (o Origin) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", o.TileX, o.TileY, o.PixelX, o.PixelY)
}

// Global folds a tile index and pixel offset into one axis coordinate.
func Global(tile, pixel, unit int) int {
	return tile*unit + pixel
}

// UnitFor returns the scale to use for s: its reported tile size, or TileUnit
// when the sender left it out.
func UnitFor(s sample.TileSample) int {
	if s.TileSize > 0 {
		return s.TileSize
	}
	return TileUnit
}

// Resolve maps s into template coordinates relative to o, using the sample's
// own tile size as the scale.
func Resolve(o Origin, s sample.TileSample) (relX, relY int) {
	return ResolveWithUnit(o, s, UnitFor(s))
}

// ResolveWithUnit maps s relative to o with an explicit scale.
func ResolveWithUnit(o Origin, s sample.TileSample, unit int) (relX, relY int) {
	gx := Global(s.TileX, s.PixelX, unit)
	gy := Global(s.TileY, s.PixelY, unit)
	ox := Global(o.TileX, o.PixelX, unit)
	oy := Global(o.TileY, o.PixelY, unit)
	return gx - ox, gy - oy
}

// Mapper binds an origin to a scale policy. A zero Unit derives the scale
// from each sample; a positive Unit pins it.
type Mapper struct {
	Origin Origin
	Unit   int
}

// Resolve maps s into template coordinates.
func (m Mapper) Resolve(s sample.TileSample) (relX, relY int) {
	if m.Unit > 0 {
		return ResolveWithUnit(m.Origin, s, m.Unit)
	}
	return Resolve(m.Origin, s)
}
