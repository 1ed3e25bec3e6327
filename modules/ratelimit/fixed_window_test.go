package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"httperrors/modules/clock"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestLimiter(t *testing.T, window time.Duration, max int64) (*FixedWindowRateLimiter, *clock.ManualClock) {
	t.Helper()
	clk := clock.NewManualClock(epoch)
	l, err := NewFixedWindow(clk, Config{Window: window, MaxRequests: max})
	if err != nil {
		t.Fatalf("NewFixedWindow: %v", err)
	}
	return l, clk
}

func decide(t *testing.T, l RateLimiter, key Key) Decision {
	t.Helper()
	d, err := l.Decide(context.Background(), key)
	if err != nil {
		t.Fatalf("Decide(%q): %v", key, err)
	}
	return d
}

func TestNewFixedWindow_RejectsMisconfiguration(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"zero window", Config{Window: 0, MaxRequests: 1}, ErrInvalidWindow},
		{"negative window", Config{Window: -time.Second, MaxRequests: 1}, ErrInvalidWindow},
		{"zero max", Config{Window: time.Second, MaxRequests: 0}, ErrInvalidMaxRequests},
		{"negative max", Config{Window: time.Second, MaxRequests: -3}, ErrInvalidMaxRequests},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFixedWindow(nil, tc.cfg)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDecide_FirstNAllowedThenDenied(t *testing.T) {
	const n = 5
	l, _ := newTestLimiter(t, time.Minute, n)

	for i := 1; i <= n; i++ {
		d := decide(t, l, "k")
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if d.Count != int64(i) {
			t.Fatalf("request %d: count want %d, got %d", i, i, d.Count)
		}
	}
	if d := decide(t, l, "k"); d.Allowed {
		t.Fatalf("request %d should be denied", n+1)
	}
}

func TestDecide_RemainingAndLimit(t *testing.T) {
	const n = 4
	l, _ := newTestLimiter(t, time.Minute, n)

	for k := 1; k <= n; k++ {
		d := decide(t, l, "k")
		if d.Limit != n {
			t.Fatalf("limit want %d, got %d", n, d.Limit)
		}
		if got := d.Remaining(); got != int64(n-k) {
			t.Fatalf("after %d calls remaining want %d, got %d", k, n-k, got)
		}
	}
	if got := decide(t, l, "k").Remaining(); got != 0 {
		t.Fatalf("remaining must not go negative, got %d", got)
	}
}

func TestDecide_DeniedRequestsStillCount(t *testing.T) {
	const n = 3
	l, _ := newTestLimiter(t, time.Minute, n)

	allowed, denied := 0, 0
	for range n + 5 {
		if decide(t, l, "k").Allowed {
			allowed++
		} else {
			denied++
		}
	}
	if allowed != n || denied != 5 {
		t.Fatalf("want %d allowed / 5 denied, got %d / %d", n, allowed, denied)
	}

	w, ok := l.Store().Get("k")
	if !ok {
		t.Fatalf("window missing")
	}
	if w.Count != n+5 {
		t.Fatalf("stored count must not be capped: want %d, got %d", n+5, w.Count)
	}
}

func TestDecide_Rollover(t *testing.T) {
	l, clk := newTestLimiter(t, time.Second, 2)

	for range 4 {
		decide(t, l, "k")
	}
	if decide(t, l, "k").Allowed {
		t.Fatalf("expected denial before rollover")
	}

	// resetAt itself already belongs to the next window
	clk.Advance(time.Second)
	d := decide(t, l, "k")
	if !d.Allowed || d.Count != 1 {
		t.Fatalf("expected fresh window, got %+v", d)
	}
	if want := clk.Now().Add(time.Second); !d.ResetAt.Equal(want) {
		t.Fatalf("resetAt want %v, got %v", want, d.ResetAt)
	}
}

func TestDecide_KeyIsolation(t *testing.T) {
	l, clk := newTestLimiter(t, time.Second, 2)

	a1 := decide(t, l, "a")
	clk.Advance(300 * time.Millisecond)
	b1 := decide(t, l, "b")

	for range 5 {
		decide(t, l, "a")
	}

	b2 := decide(t, l, "b")
	if !b2.Allowed || b2.Count != 2 {
		t.Fatalf("key b affected by key a: %+v", b2)
	}
	if !b2.ResetAt.Equal(b1.ResetAt) || b1.ResetAt.Equal(a1.ResetAt) {
		t.Fatalf("reset instants must be per key: a=%v b=%v", a1.ResetAt, b1.ResetAt)
	}
}

func TestDecide_ConcreteScenario(t *testing.T) {
	l, clk := newTestLimiter(t, 1000*time.Millisecond, 3)

	want := []bool{true, true, true, false}
	var last Decision
	for i, at := range []time.Duration{0, 10, 20, 30} {
		clk.Set(epoch.Add(at * time.Millisecond))
		last = decide(t, l, "A")
		if last.Allowed != want[i] {
			t.Fatalf("call at t=%dms: allowed want %v, got %v", at, want[i], last.Allowed)
		}
	}
	if got := last.RetryAfterSeconds(); got != 1 {
		t.Fatalf("retryAfter want 1s, got %d", got)
	}

	clk.Set(epoch.Add(1050 * time.Millisecond))
	if d := decide(t, l, "A"); !d.Allowed || d.Count != 1 {
		t.Fatalf("expected new window at t=1050ms, got %+v", d)
	}
}

func TestDecide_BoundaryBurst(t *testing.T) {
	l, clk := newTestLimiter(t, time.Second, 3)

	allowed := 0
	clk.Set(epoch.Add(900 * time.Millisecond))
	for range 3 {
		if decide(t, l, "k").Allowed {
			allowed++
		}
	}
	clk.Set(epoch.Add(1900 * time.Millisecond))
	for range 3 {
		if decide(t, l, "k").Allowed {
			allowed++
		}
	}
	if allowed != 6 {
		t.Fatalf("fixed window admits 2x max across a boundary, got %d", allowed)
	}
}

func TestDecide_ConcurrentSameKeyNoLostUpdates(t *testing.T) {
	const (
		max        = 100
		goroutines = 32
		perG       = 50
	)
	l, _ := newTestLimiter(t, time.Hour, max)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range goroutines {
		wg.Go(func() {
			for range perG {
				d, _ := l.Decide(context.Background(), "hot")
				if d.Allowed {
					allowed.Add(1)
				}
			}
		})
	}
	wg.Wait()

	if got := allowed.Load(); got != max {
		t.Fatalf("want exactly %d allowed, got %d", max, got)
	}
	w, _ := l.Store().Get("hot")
	if w.Count != goroutines*perG {
		t.Fatalf("want count %d, got %d", goroutines*perG, w.Count)
	}
}

func TestDecision_RetryAfterSeconds(t *testing.T) {
	cases := []struct {
		left time.Duration
		want int64
	}{
		{0, 0},
		{-time.Second, 0},
		{1 * time.Millisecond, 1},
		{970 * time.Millisecond, 1},
		{1000 * time.Millisecond, 1},
		{1001 * time.Millisecond, 2},
	}
	for _, tc := range cases {
		d := Decision{DecidedAt: epoch, ResetAt: epoch.Add(tc.left)}
		if got := d.RetryAfterSeconds(); got != tc.want {
			t.Fatalf("left=%v: want %d, got %d", tc.left, tc.want, got)
		}
	}
}

func BenchmarkDecide_ManyKeys(b *testing.B) {
	l, err := NewFixedWindow(nil, Config{Window: time.Minute, MaxRequests: 1 << 30})
	if err != nil {
		b.Fatal(err)
	}
	keys := make([]Key, 1024)
	for i := range keys {
		keys[i] = Key(string(rune('a'+i%26)) + string(rune(i)))
	}
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = l.Decide(context.Background(), keys[i%len(keys)])
			i++
		}
	})
}
