package sampler

import (
	"pixelpick/internal/coords"
	"pixelpick/internal/raster"
	"pixelpick/internal/sample"
	"pixelpick/internal/tracker"
)

// Resolve turns the latest store read into an Outcome. ok is the freshness
// flag returned by the store. It does no I/O and takes no locks.
func Resolve(s sample.TileSample, ok bool, m coords.Mapper, r *raster.Raster) tracker.Outcome {
	if !ok {
		return tracker.NoData{}
	}
	if !s.Valid {
		return tracker.SourceFailure{Reason: s.Normalize().Reason}
	}

	relX, relY := m.Resolve(s)
	if !r.Contains(relX, relY) {
		return tracker.OutOfBounds{CellX: s.CellX, CellY: s.CellY, RelX: relX, RelY: relY}
	}
	return tracker.Sampled{
		CellX: s.CellX,
		CellY: s.CellY,
		RelX:  relX,
		RelY:  relY,
		Color: r.Lookup(relX, relY),
	}
}
