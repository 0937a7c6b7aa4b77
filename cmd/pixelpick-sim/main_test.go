package main

import (
	"testing"

	"pixelpick/internal/coords"
)

func TestSweepResolvesToTemplateOffsets(t *testing.T) {
	cases := []struct {
		name     string
		origin   coords.Origin
		tileSize int
	}{
		{"legacy unit", coords.Origin{TileX: 10, TileY: 20, PixelX: 5, PixelY: 5}, 1000},
		{"tile boundary", coords.Origin{TileX: 3, TileY: 0, PixelX: 0, PixelY: 1}, 512},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			script := sweep(tc.origin, 8, 8, 4, tc.tileSize, false)
			if len(script) != 16 {
				t.Fatalf("expected 16 samples, got %d", len(script))
			}
			first := script[0]
			relX, relY := coords.Resolve(tc.origin, first)
			if relX != -4 || relY != -4 {
				t.Fatalf("first sample resolves to (%d,%d), want (-4,-4)", relX, relY)
			}
			if first.PixelX < 0 || first.PixelX >= tc.tileSize || first.PixelY < 0 || first.PixelY >= tc.tileSize {
				t.Fatalf("pixel offsets must stay inside the tile: %+v", first)
			}
			last := script[len(script)-1]
			relX, relY = coords.Resolve(tc.origin, last)
			if relX != 8 || relY != 8 {
				t.Fatalf("last sample resolves to (%d,%d), want (8,8)", relX, relY)
			}
		})
	}
}

func TestSweepLeadsWithFailures(t *testing.T) {
	script := sweep(coords.Origin{}, 4, 4, 4, 1000, true)
	if script[0].Valid || script[0].Reason != "canvas_not_found" || script[1].Reason != "map_not_found" {
		t.Fatalf("unexpected leading samples %+v %+v", script[0], script[1])
	}
}

func TestFloorDivMod(t *testing.T) {
	cases := []struct{ a, b, div, mod int }{
		{7, 5, 1, 2},
		{-1, 5, -1, 4},
		{-5, 5, -1, 0},
		{0, 5, 0, 0},
	}
	for _, tc := range cases {
		if d, m := floorDiv(tc.a, tc.b), floorMod(tc.a, tc.b); d != tc.div || m != tc.mod {
			t.Fatalf("floor(%d,%d) = %d,%d want %d,%d", tc.a, tc.b, d, m, tc.div, tc.mod)
		}
	}
}
