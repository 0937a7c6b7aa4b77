package sampler

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"testing"
	"time"

	"pixelpick/internal/coords"
	"pixelpick/internal/raster"
	"pixelpick/internal/report"
	"pixelpick/internal/sample"
	"pixelpick/internal/tracker"
)

var discardLogger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

func gradient(w, h int) *raster.Raster {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	return raster.FromImage(img)
}

type stubStore struct {
	mu     sync.Mutex
	sample sample.TileSample
	ok     bool
	panics bool
}

func (s *stubStore) set(ts sample.TileSample, ok bool) {
	s.mu.Lock()
	s.sample, s.ok = ts, ok
	s.mu.Unlock()
}

func (s *stubStore) Read() (sample.TileSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panics {
		panic("store exploded")
	}
	return s.sample, s.ok
}

type recordingSink struct {
	mu     sync.Mutex
	events []report.Event
}

func (r *recordingSink) Report(ev report.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingSink) snapshot() []report.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]report.Event(nil), r.events...)
}

func TestResolveBounds(t *testing.T) {
	r := gradient(100, 100)
	m := coords.Mapper{Origin: coords.Origin{}}

	cases := []struct {
		relX, relY int
		sampled    bool
	}{
		{0, 0, true},
		{99, 99, true},
		{50, 0, true},
		{-1, 0, false},
		{0, -1, false},
		{100, 0, false},
		{0, 100, false},
		{100, 100, false},
	}
	for _, tc := range cases {
		s := sample.TileSample{Valid: true, PixelX: tc.relX, PixelY: tc.relY}
		out := Resolve(s, true, m, r)
		if _, isSampled := out.(tracker.Sampled); isSampled != tc.sampled {
			t.Fatalf("(%d,%d): got %T, sampled=%v expected", tc.relX, tc.relY, out, tc.sampled)
		}
		if !tc.sampled {
			if _, isOOB := out.(tracker.OutOfBounds); !isOOB {
				t.Fatalf("(%d,%d): expected OutOfBounds, got %T", tc.relX, tc.relY, out)
			}
		}
	}
}

func TestResolveVariants(t *testing.T) {
	r := gradient(10, 10)
	m := coords.Mapper{}

	if _, ok := Resolve(sample.TileSample{Valid: true}, false, m, r).(tracker.NoData); !ok {
		t.Fatalf("expected NoData for stale read")
	}
	out := Resolve(sample.TileSample{Reason: ""}, true, m, r)
	if f, ok := out.(tracker.SourceFailure); !ok || f.Reason != sample.ReasonUnknown {
		t.Fatalf("expected SourceFailure(unknown), got %#v", out)
	}
	if _, ok := Resolve(sample.TileSample{Valid: true}, true, m, nil).(tracker.OutOfBounds); !ok {
		t.Fatalf("expected OutOfBounds without a raster")
	}
}

func TestEndToEndScenario(t *testing.T) {
	store := &stubStore{}
	sink := &recordingSink{}
	origin := coords.Origin{TileX: 10, TileY: 20, PixelX: 5, PixelY: 5}
	l := New(store, coords.Mapper{Origin: origin}, raster.NewHolder(gradient(100, 100)), sink, Options{Logger: discardLogger, RunID: "run"})
	now := time.Now()

	store.set(sample.TileSample{Valid: true, TileX: 10, TileY: 20, PixelX: 7, PixelY: 6, CellX: 10007, CellY: 20006}, true)
	ev, emitted := l.Step(now)
	if !emitted {
		t.Fatalf("expected first sample to be reported")
	}
	got, ok := ev.Outcome.(tracker.Sampled)
	if !ok {
		t.Fatalf("expected Sampled, got %T", ev.Outcome)
	}
	if got.RelX != 2 || got.RelY != 1 || got.Color != (color.NRGBA{R: 2, G: 1, B: 7, A: 255}) {
		t.Fatalf("unexpected sampled outcome %+v", got)
	}
	if ev.Seq != 1 || ev.RunID != "run" {
		t.Fatalf("unexpected event metadata %+v", ev)
	}

	if _, emitted := l.Step(now); emitted {
		t.Fatalf("identical sample must be suppressed")
	}

	store.set(sample.TileSample{Valid: true, TileX: 10, TileY: 20, PixelX: 200, PixelY: 5, CellX: 10200, CellY: 20005}, true)
	ev, emitted = l.Step(now)
	oob, ok := ev.Outcome.(tracker.OutOfBounds)
	if !emitted || !ok || oob.RelX != 195 {
		t.Fatalf("expected OutOfBounds at relX=195, got %+v emitted=%v", ev.Outcome, emitted)
	}

	if n := len(sink.snapshot()); n != 2 {
		t.Fatalf("expected 2 sink deliveries, got %d", n)
	}
}

func TestNoDataReportedOnce(t *testing.T) {
	sink := &recordingSink{}
	l := New(&stubStore{}, coords.Mapper{}, raster.NewHolder(gradient(4, 4)), sink, Options{Logger: discardLogger})
	for i := 0; i < 5; i++ {
		l.Step(time.Now())
	}
	events := sink.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected one NoData report, got %d", len(events))
	}
	if _, ok := events[0].Outcome.(tracker.NoData); !ok {
		t.Fatalf("expected NoData, got %T", events[0].Outcome)
	}
}

func TestStepRecoversFromPanic(t *testing.T) {
	store := &stubStore{panics: true}
	sink := &recordingSink{}
	l := New(store, coords.Mapper{}, raster.NewHolder(gradient(4, 4)), sink, Options{Logger: discardLogger})

	if _, emitted := l.Step(time.Now()); emitted {
		t.Fatalf("panicking cycle must not emit")
	}
	store.mu.Lock()
	store.panics = false
	store.mu.Unlock()
	if _, emitted := l.Step(time.Now()); !emitted {
		t.Fatalf("loop should keep working after a fault")
	}
	if st := l.Stats(); st.Faults != 1 || st.Cycles != 2 || st.Reported != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestTemplateSwapResurfacesPosition(t *testing.T) {
	store := &stubStore{}
	store.set(sample.TileSample{Valid: true, PixelX: 1, PixelY: 1}, true)
	holder := raster.NewHolder(gradient(4, 4))
	sink := &recordingSink{}
	l := New(store, coords.Mapper{}, holder, sink, Options{Logger: discardLogger})

	l.Step(time.Now())
	if _, emitted := l.Step(time.Now()); emitted {
		t.Fatalf("expected suppression before the swap")
	}
	holder.Swap(gradient(8, 8))
	if _, emitted := l.Step(time.Now()); !emitted {
		t.Fatalf("expected report after the template changed")
	}
	if _, emitted := l.Step(time.Now()); emitted {
		t.Fatalf("swap must resurface the position exactly once")
	}
	if n := len(sink.snapshot()); n != 2 {
		t.Fatalf("expected 2 reports, got %d", n)
	}
}

func TestIntervalFloor(t *testing.T) {
	l := New(&stubStore{}, coords.Mapper{}, nil, nil, Options{Interval: time.Millisecond})
	if l.Interval() != MinInterval {
		t.Fatalf("expected floor %v, got %v", MinInterval, l.Interval())
	}
	l = New(&stubStore{}, coords.Mapper{}, nil, nil, Options{})
	if l.Interval() != DefaultInterval {
		t.Fatalf("expected default %v, got %v", DefaultInterval, l.Interval())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	sink := &recordingSink{}
	l := New(&stubStore{}, coords.Mapper{}, raster.NewHolder(gradient(4, 4)), sink, Options{Interval: MinInterval, Logger: discardLogger})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
	if len(sink.snapshot()) != 1 {
		t.Fatalf("expected exactly one NoData report, got %d", len(sink.snapshot()))
	}
}
