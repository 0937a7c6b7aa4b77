package sampler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"pixelpick/internal/coords"
	"pixelpick/internal/raster"
	"pixelpick/internal/report"
	"pixelpick/internal/sample"
	"pixelpick/internal/tracker"
)

const (
	// MinInterval is the fastest allowed tick.
	MinInterval = 50 * time.Millisecond
	// DefaultInterval is used when no interval is configured.
	DefaultInterval = 100 * time.Millisecond
)

// Reader is the read side of the sample store.
type Reader interface {
	Read() (sample.TileSample, bool)
}

// Options tunes a Loop.
type Options struct {
	Interval time.Duration
	RunID    string
	Logger   *slog.Logger
}

// Loop drives one resolve-track-report cycle per tick.
type Loop struct {
	store    Reader
	mapper   coords.Mapper
	template *raster.Holder
	sink     report.Sink
	tracker  *tracker.Tracker
	interval time.Duration
	runID    string
	log      *slog.Logger

	seq        uint64
	lastTmpl   *raster.Raster
	cycles     atomic.Uint64
	faults     atomic.Uint64
	reported   atomic.Uint64
	lastReport atomic.Pointer[report.Event]
}

// New builds a Loop. A nil sink discards events.
func New(store Reader, mapper coords.Mapper, template *raster.Holder, sink report.Sink, opts Options) *Loop {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if interval < MinInterval {
		interval = MinInterval
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = report.SinkFunc(func(report.Event) {})
	}
	return &Loop{
		store:    store,
		mapper:   mapper,
		template: template,
		sink:     sink,
		tracker:  tracker.New(),
		interval: interval,
		runID:    opts.RunID,
		log:      log,
	}
}

// Interval returns the effective tick interval.
func (l *Loop) Interval() time.Duration { return l.interval }

// Run ticks until ctx is cancelled. A cycle is never interrupted; cancellation
// is observed before the next one starts.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.log.Info("sampling loop started", "interval", l.interval.String(), "run_id", l.runID)
	defer l.log.Info("sampling loop stopped", "cycles", l.cycles.Load(), "faults", l.faults.Load())

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
			l.Step(now)
		}
	}
}

// Step runs a single cycle and reports whether it surfaced an event.
// Panics inside the cycle are logged and swallowed.
func (l *Loop) Step(now time.Time) (ev report.Event, emitted bool) {
	defer func() {
		if r := recover(); r != nil {
			l.faults.Add(1)
			l.log.Error("sampling cycle panic", "error", r, "stack", string(debug.Stack()))
			ev, emitted = report.Event{}, false
		}
	}()
	l.cycles.Add(1)

	tmpl := l.template.Current()
	if tmpl != l.lastTmpl {
		// a reloaded template resurfaces the current position
		if l.lastTmpl != nil {
			l.tracker.Reset()
		}
		l.lastTmpl = tmpl
	}

	s, ok := l.store.Read()
	outcome := Resolve(s, ok, l.mapper, tmpl)
	if !l.tracker.Observe(outcome) {
		return report.Event{}, false
	}

	l.seq++
	ev = report.Event{Seq: l.seq, RunID: l.runID, At: now, Outcome: outcome}
	last := ev
	l.lastReport.Store(&last)
	l.reported.Add(1)
	l.sink.Report(ev)
	return ev, true
}

// Stats is a snapshot of loop counters.
type Stats struct {
	Cycles   uint64        `json:"cycles"`
	Faults   uint64        `json:"faults"`
	Reported uint64        `json:"reported"`
	Interval string        `json:"interval"`
	Last     *report.Event `json:"last,omitempty"`
}

// Stats returns loop counters. Safe to call from any goroutine.
func (l *Loop) Stats() Stats {
	return Stats{
		Cycles:   l.cycles.Load(),
		Faults:   l.faults.Load(),
		Reported: l.reported.Load(),
		Interval: l.interval.String(),
		Last:     l.lastReport.Load(),
	}
}
