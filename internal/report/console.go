package report

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"pixelpick/internal/tracker"
)

var failureHints = map[string]string{
	"canvas_not_found": "hint: check that the page has a map canvas, e.g. #map canvas.maplibregl-canvas",
	"map_not_found":    "hint: look up the map object name in the browser console and set window.__bmPickerMap, or add it to the userscript's map name list",
}

// Console prints one human-readable line per event.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Report(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range Lines(ev.Outcome) {
		fmt.Fprintln(c.w, line)
	}
}

// Lines renders an outcome for operators, hints included.
func Lines(o tracker.Outcome) []string {
	switch o := o.(type) {
	case tracker.NoData:
		return []string{"waiting for browser coordinates..."}
	case tracker.SourceFailure:
		lines := []string{fmt.Sprintf("cannot resolve position: %s", o.Reason)}
		if hint, ok := failureHints[o.Reason]; ok {
			lines = append(lines, hint)
		}
		return lines
	case tracker.OutOfBounds:
		return []string{fmt.Sprintf("pixel (%d,%d) is outside the template (template: %d,%d)", o.CellX, o.CellY, o.RelX, o.RelY)}
	case tracker.Sampled:
		line := fmt.Sprintf("pixel (%d,%d) template (%d,%d) RGB(%d,%d,%d)", o.CellX, o.CellY, o.RelX, o.RelY, o.Color.R, o.Color.G, o.Color.B)
		if o.Color.A != 255 {
			line += fmt.Sprintf(" alpha=%d", o.Color.A)
		}
		return []string{line}
	default:
		return nil
	}
}

// Logger records each event as a structured debug entry.
type Logger struct {
	log *slog.Logger
}

// NewLogger returns a Logger sink.
func NewLogger(log *slog.Logger) *Logger {
	return &Logger{log: log}
}

func (l *Logger) Report(ev Event) {
	if l.log == nil {
		return
	}
	rec := ev.Record()
	attrs := []any{"seq", rec.Seq, "run_id", rec.RunID, "kind", string(rec.Kind)}
	if rec.Reason != "" {
		attrs = append(attrs, "reason", rec.Reason)
	}
	if p := rec.Position; p != nil {
		attrs = append(attrs, "cell_x", p.CellX, "cell_y", p.CellY, "rel_x", p.RelX, "rel_y", p.RelY)
	}
	if c := rec.Color; c != nil {
		attrs = append(attrs, "color", c.Hex, "alpha", c.A)
	}
	l.log.Debug("sample event", attrs...)
}
