package tracker

import (
	"image/color"
	"testing"
)

func feed(tr *Tracker, outcomes ...Outcome) []bool {
	got := make([]bool, len(outcomes))
	for i, o := range outcomes {
		got[i] = tr.Observe(o)
	}
	return got
}

func expectEmits(t *testing.T, got []bool, want ...bool) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("emit[%d] = %v, want %v (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestIdenticalSampledReportedOnce(t *testing.T) {
	s := Sampled{RelX: 5, RelY: 5, Color: color.NRGBA{R: 10, G: 20, B: 30, A: 255}}
	expectEmits(t, feed(New(), s, s), true, false)
}

func TestFailureReasonChange(t *testing.T) {
	got := feed(New(),
		SourceFailure{Reason: "canvas_not_found"},
		SourceFailure{Reason: "canvas_not_found"},
		SourceFailure{Reason: "map_not_found"},
	)
	expectEmits(t, got, true, false, true)
}

func TestNoDataReportedOnceThenSilent(t *testing.T) {
	expectEmits(t, feed(New(), NoData{}, NoData{}, NoData{}), true, false, false)
}

func TestNoDataReportedAgainAfterData(t *testing.T) {
	s := Sampled{RelX: 1, RelY: 1}
	expectEmits(t, feed(New(), NoData{}, s, NoData{}, NoData{}), true, true, true, false)
}

func TestOutOfBoundsCellChange(t *testing.T) {
	a := OutOfBounds{CellX: 100, CellY: 100, RelX: 195, RelY: 0}
	b := OutOfBounds{CellX: 101, CellY: 100, RelX: 196, RelY: 0}
	expectEmits(t, feed(New(), a, a, b, b, a), true, false, true, false, true)
}

func TestSampledIgnoresCellJitter(t *testing.T) {
	c := color.NRGBA{R: 1, G: 2, B: 3, A: 255}
	a := Sampled{CellX: 10, CellY: 10, RelX: 2, RelY: 1, Color: c}
	b := Sampled{CellX: 11, CellY: 10, RelX: 2, RelY: 1, Color: c}
	expectEmits(t, feed(New(), a, b), true, false)
}

func TestSampledColorChangeAtSamePixel(t *testing.T) {
	a := Sampled{RelX: 2, RelY: 1, Color: color.NRGBA{R: 1, A: 255}}
	b := Sampled{RelX: 2, RelY: 1, Color: color.NRGBA{R: 2, A: 255}}
	expectEmits(t, feed(New(), a, b), true, true)
}

func TestFailureSuppressedAcrossNoDataGap(t *testing.T) {
	f := SourceFailure{Reason: "canvas_not_found"}
	expectEmits(t, feed(New(), f, NoData{}, f), true, true, false)
}

func TestSampledSuppressedAcrossNoDataGap(t *testing.T) {
	s := Sampled{RelX: 5, RelY: 5, Color: color.NRGBA{R: 10, G: 20, B: 30, A: 255}}
	expectEmits(t, feed(New(), s, NoData{}, s), true, true, false)
}

func TestFailureResurfacesAfterDataResumes(t *testing.T) {
	f := SourceFailure{Reason: "mouse_outside_canvas"}
	s := Sampled{RelX: 3, RelY: 3}
	expectEmits(t, feed(New(), f, s, f), true, true, true)
}

func TestSampledSuppressedAcrossFailure(t *testing.T) {
	s := Sampled{RelX: 3, RelY: 3}
	f := SourceFailure{Reason: "map_not_found"}
	expectEmits(t, feed(New(), s, f, s), true, true, false)
}

func TestReturningFromOutsideTemplateIsReported(t *testing.T) {
	s := Sampled{RelX: 3, RelY: 3}
	oob := OutOfBounds{CellX: -1, CellY: -1, RelX: -1, RelY: -1}
	expectEmits(t, feed(New(), s, oob, s, oob), true, true, true, true)
}

func TestOutOfBoundsSuppressedAcrossNoDataGap(t *testing.T) {
	oob := OutOfBounds{CellX: 200, CellY: 0, RelX: 200, RelY: 0}
	expectEmits(t, feed(New(), oob, NoData{}, oob), true, true, false)
}

func TestResetForcesNextReport(t *testing.T) {
	tr := New()
	s := Sampled{RelX: 3, RelY: 3}
	tr.Observe(s)
	tr.Reset()
	if !tr.Observe(s) {
		t.Fatalf("expected report after Reset")
	}
	if reported, suppressed := tr.Counts(); reported != 2 || suppressed != 0 {
		t.Fatalf("unexpected counts reported=%d suppressed=%d", reported, suppressed)
	}
}

func TestNilOutcomeIgnored(t *testing.T) {
	tr := New()
	if tr.Observe(nil) {
		t.Fatalf("nil outcome must not be reported")
	}
	if tr.Last() != nil {
		t.Fatalf("nil outcome must not be remembered")
	}
}
