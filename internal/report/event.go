package report

import (
	"encoding/json"
	"fmt"
	"image/color"
	"time"

	"pixelpick/internal/tracker"
)

// Event is a surfaced outcome with its place in the run.
type Event struct {
	Seq     uint64
	RunID   string
	At      time.Time
	Outcome tracker.Outcome
}

// Sink consumes surfaced events. Report must not block for long; it runs on
// the sampling goroutine.
type Sink interface {
	Report(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event)

func (f SinkFunc) Report(ev Event) { f(ev) }

// Multi fans an event out to every sink in order.
type Multi []Sink

func (m Multi) Report(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Report(ev)
		}
	}
}

// Position carries the coordinates of out-of-bounds and sampled events.
type Position struct {
	CellX int `json:"cell_x"`
	CellY int `json:"cell_y"`
	RelX  int `json:"rel_x"`
	RelY  int `json:"rel_y"`
}

// Color is the sampled template pixel.
type Color struct {
	R   uint8  `json:"r"`
	G   uint8  `json:"g"`
	B   uint8  `json:"b"`
	A   uint8  `json:"a"`
	Hex string `json:"hex"`
}

// Record is the flat wire and storage form of an Event.
type Record struct {
	Seq      uint64       `json:"seq"`
	RunID    string       `json:"run_id"`
	At       time.Time    `json:"at"`
	Kind     tracker.Kind `json:"kind"`
	Reason   string       `json:"reason,omitempty"`
	Position *Position    `json:"position,omitempty"`
	Color    *Color       `json:"color,omitempty"`
}

// Record flattens the event.
func (e Event) Record() Record {
	rec := Record{Seq: e.Seq, RunID: e.RunID, At: e.At}
	if e.Outcome == nil {
		return rec
	}
	rec.Kind = e.Outcome.Kind()
	switch o := e.Outcome.(type) {
	case tracker.SourceFailure:
		rec.Reason = o.Reason
	case tracker.OutOfBounds:
		rec.Position = &Position{CellX: o.CellX, CellY: o.CellY, RelX: o.RelX, RelY: o.RelY}
	case tracker.Sampled:
		rec.Position = &Position{CellX: o.CellX, CellY: o.CellY, RelX: o.RelX, RelY: o.RelY}
		rec.Color = newColor(o.Color)
	}
	return rec
}

// MarshalJSON encodes the event as its Record.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Record())
}

func newColor(c color.NRGBA) *Color {
	return &Color{R: c.R, G: c.G, B: c.B, A: c.A, Hex: fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)}
}
