package tracker

import "image/color"

// Kind names an Outcome variant.
type Kind string

const (
	KindNoData        Kind = "no_data"
	KindSourceFailure Kind = "source_failure"
	KindOutOfBounds   Kind = "out_of_bounds"
	KindSampled       Kind = "sampled"
)

// Outcome is the result of one sampling cycle. The set of implementations is
// closed: NoData, SourceFailure, OutOfBounds and Sampled.
type Outcome interface {
	Kind() Kind
	outcome()
}

// NoData means nothing fresh has been received.
type NoData struct{}

// SourceFailure means the sender reported it could not resolve a position.
type SourceFailure struct {
	Reason string
}

// OutOfBounds means the position resolved outside the template.
type OutOfBounds struct {
	CellX, CellY int
	RelX, RelY   int
}

// Sampled is an in-bounds position and the template color under it.
type Sampled struct {
	CellX, CellY int
	RelX, RelY   int
	Color        color.NRGBA
}

func (NoData) Kind() Kind        { return KindNoData }
func (SourceFailure) Kind() Kind { return KindSourceFailure }
func (OutOfBounds) Kind() Kind   { return KindOutOfBounds }
func (Sampled) Kind() Kind       { return KindSampled }

func (NoData) outcome()        {}
func (SourceFailure) outcome() {}
func (OutOfBounds) outcome()   {}
func (Sampled) outcome()       {}
