package sample

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestReadEmptyStore(t *testing.T) {
	s := NewStore()
	if _, ok := s.Read(); ok {
		t.Fatalf("expected no data from empty store")
	}
}

func TestFreshnessBoundary(t *testing.T) {
	cases := []struct {
		name  string
		age   time.Duration
		fresh bool
	}{
		{"immediate", 0, true},
		{"2.9s", 2900 * time.Millisecond, true},
		{"exactly window", StalenessWindow, true},
		{"3.1s", 3100 * time.Millisecond, false},
		{"much later", time.Minute, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
			s := NewStore(WithClock(clock.Now))
			s.Write(TileSample{Valid: true, TileX: 1})
			clock.Advance(tc.age)
			got, ok := s.Read()
			if ok != tc.fresh {
				t.Fatalf("fresh = %v, want %v", ok, tc.fresh)
			}
			if ok && got.TileX != 1 {
				t.Fatalf("unexpected sample %+v", got)
			}
		})
	}
}

func TestWriteRefreshesTimestamp(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := NewStore(WithClock(clock.Now))
	s.Write(TileSample{Valid: true, TileX: 1})
	clock.Advance(2 * time.Second)
	s.Write(TileSample{Valid: true, TileX: 2})
	clock.Advance(2 * time.Second)

	got, ok := s.Read()
	if !ok || got.TileX != 2 {
		t.Fatalf("expected second sample to be fresh, got %+v ok=%v", got, ok)
	}
	if st := s.Stats(); st.Writes != 2 || !st.Fresh {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestConcurrentWritesNeverTear(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s.Write(TileSample{Valid: true, TileX: id, TileY: id, CellX: id, CellY: id})
			}
		}(w)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			if got, ok := s.Read(); ok {
				if got.TileX != got.TileY || got.CellX != got.TileX || got.CellY != got.TileX {
					t.Errorf("torn sample %+v", got)
					return
				}
			}
		}
	}()
	wg.Wait()
	<-done
	if st := s.Stats(); st.Writes != 8*500 {
		t.Fatalf("expected %d writes, got %d", 8*500, st.Writes)
	}
}

func TestDecode(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		want    TileSample
		wantErr bool
	}{
		{
			name: "valid",
			body: `{"ok":true,"tileX":10,"tileY":20,"pxX":7,"pyY":6,"tileSize":1000,"cellX":10007,"cellY":20006}`,
			want: TileSample{Valid: true, TileX: 10, TileY: 20, PixelX: 7, PixelY: 6, TileSize: 1000, CellX: 10007, CellY: 20006},
		},
		{
			name: "case insensitive",
			body: `{"OK":true,"TileX":3,"PxX":4}`,
			want: TileSample{Valid: true, TileX: 3, PixelX: 4},
		},
		{
			name: "failure",
			body: `{"ok":false,"reason":"canvas_not_found"}`,
			want: TileSample{Reason: "canvas_not_found"},
		},
		{
			name: "failure without reason",
			body: `{"ok":false}`,
			want: TileSample{Reason: ReasonUnknown},
		},
		{name: "empty", body: ``, wantErr: true},
		{name: "null", body: `null`, wantErr: true},
		{name: "array", body: `[1,2]`, wantErr: true},
		{name: "not json", body: `ok=true`, wantErr: true},
		{name: "fractional coordinate", body: `{"ok":true,"tileX":1.5}`, wantErr: true},
		{name: "string coordinate", body: `{"ok":true,"tileX":"1"}`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(strings.NewReader(tc.body))
			if tc.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("expected ErrMalformed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestDecodeRejectsOversizedBody(t *testing.T) {
	body := `{"ok":true,"reason":"` + strings.Repeat("x", MaxPayloadBytes) + `"}`
	if _, err := Decode(strings.NewReader(body)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for oversized body, got %v", err)
	}
}
