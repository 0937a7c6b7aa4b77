package report

import (
	"log/slog"
	"sync"
)

const subscriberBuffer = 16

// Broadcaster fans events out to live subscribers (SSE, websocket, gRPC).
// Slow subscribers lose events rather than stall the sampling loop.
type Broadcaster struct {
	log       *slog.Logger
	mu        sync.Mutex
	subs      map[int]chan Event
	nextSubID int
	closed    bool
	dropped   uint64
}

// NewBroadcaster returns a Broadcaster with no subscribers.
func NewBroadcaster(log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{log: log, subs: make(map[int]chan Event)}
}

// Report delivers ev to every subscriber without blocking.
func (b *Broadcaster) Report(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped++
			b.log.Warn("event channel full", "subscriber", id, "seq", ev.Seq)
		}
	}
}

// Subscribe returns a channel of events and an unsubscribe function.
// The channel is closed on unsubscribe or Close.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextSubID
	b.nextSubID++
	b.subs[id] = ch
	unsub := func() {
		b.mu.Lock()
		if c, ok := b.subs[id]; ok {
			close(c)
			delete(b.subs, id)
		}
		b.mu.Unlock()
	}
	return ch, unsub
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Broadcaster) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close ends every subscription. Later subscriptions receive a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
