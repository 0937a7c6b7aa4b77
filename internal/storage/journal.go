package storage

import (
	"context"
	"log/slog"
	"sync/atomic"

	"pixelpick/internal/report"
)

const journalBuffer = 256

// Journal is a report.Sink that persists events on its own goroutine so the
// sampling loop never waits on disk.
type Journal struct {
	store   *Store
	log     *slog.Logger
	queue   chan report.Record
	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewJournal wraps store. Call Run to start writing.
func NewJournal(store *Store, log *slog.Logger) *Journal {
	if log == nil {
		log = slog.Default()
	}
	return &Journal{store: store, log: log, queue: make(chan report.Record, journalBuffer)}
}

// Report enqueues ev, dropping it when the writer is behind.
func (j *Journal) Report(ev report.Event) {
	select {
	case j.queue <- ev.Record():
	default:
		if j.dropped.Add(1) == 1 {
			j.log.Warn("journal queue full, dropping events")
		}
	}
}

// Run writes queued events until ctx is done, then drains what is already queued.
func (j *Journal) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-j.queue:
			j.write(rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-j.queue:
					j.write(rec)
				default:
					return nil
				}
			}
		}
	}
}

func (j *Journal) write(rec report.Record) {
	if err := j.store.RecordEvent(rec); err != nil {
		j.failed.Add(1)
		j.log.Error("journal write failed", "seq", rec.Seq, "error", err)
		return
	}
	j.written.Add(1)
}

// JournalStats reports journal throughput.
type JournalStats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

// Stats returns a snapshot of the counters.
func (j *Journal) Stats() JournalStats {
	return JournalStats{Written: j.written.Load(), Dropped: j.dropped.Load(), Failed: j.failed.Load()}
}
