package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFakeSleepAdvancesAndRecords(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)
	var hooked []time.Duration
	f.OnSleep = func(d time.Duration) { hooked = append(hooked, d) }

	if err := f.Sleep(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("Sleep error: %v", err)
	}
	f.Advance(time.Second)

	if got := f.Now().Sub(start); got != 3*time.Second {
		t.Fatalf("elapsed = %s, want 3s", got)
	}
	if sleeps := f.Sleeps(); len(sleeps) != 1 || sleeps[0] != 2*time.Second {
		t.Fatalf("sleeps = %v, want [2s]", sleeps)
	}
	if len(hooked) != 1 {
		t.Fatalf("hook calls = %d, want 1", len(hooked))
	}
}

func TestRealSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (Real{}).Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep error = %v, want context.Canceled", err)
	}
}
