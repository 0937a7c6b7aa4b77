package sample

import (
	"sync"
	"time"
)

// StalenessWindow is how long a sample stays readable after it was received.
const StalenessWindow = 3 * time.Second

// Store holds the most recent sample and when it arrived.
// It is the only shared mutable state between ingress and the sampling loop.
type Store struct {
	mu         sync.Mutex
	latest     TileSample
	receivedAt time.Time
	has        bool
	writes     uint64

	window time.Duration
	now    func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWindow overrides the staleness window.
func WithWindow(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.window = d
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{window: StalenessWindow, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write replaces the current sample. The last writer to take the lock wins.
func (s *Store) Write(ts TileSample) {
	s.mu.Lock()
	s.latest = ts
	s.receivedAt = s.now()
	s.has = true
	s.writes++
	s.mu.Unlock()
}

// Read returns the latest sample if one was written within the staleness window.
func (s *Store) Read() (TileSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has {
		return TileSample{}, false
	}
	if s.now().Sub(s.receivedAt) > s.window {
		return TileSample{}, false
	}
	return s.latest, true
}

// Stats is a point-in-time view of the store for status reporting.
type Stats struct {
	Writes         uint64    `json:"writes"`
	LastReceivedAt time.Time `json:"last_received_at"`
	Fresh          bool      `json:"fresh"`
}

// Stats returns write counters and freshness.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Writes:         s.writes,
		LastReceivedAt: s.receivedAt,
		Fresh:          s.has && s.now().Sub(s.receivedAt) <= s.window,
	}
}
