package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWaitUntilPastDeadlineReturnsImmediately(t *testing.T) {
	start := time.Now()
	if err := WaitUntil(context.Background(), start.Add(-time.Second)); err != nil {
		t.Fatalf("past deadline should return nil: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("past deadline should not block")
	}
}

func TestWaitUntilHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := WaitUntil(ctx, time.Now().Add(time.Hour))
	if err != context.Canceled {
		t.Fatalf("cancelled wait should return context.Canceled, got %v", err)
	}
}

func TestRunInvokesTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := make(chan time.Time, 4)
	s := New(Options{Name: "test", Interval: 10 * time.Millisecond}, zerolog.Nop())

	go func() {
		_ = s.Run(ctx, func(_ context.Context, tick time.Time) error {
			ticks <- tick
			return nil
		})
	}()

	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("expected a tick within a second")
	}
	cancel()
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Options{Name: "test", Interval: time.Minute}, zerolog.Nop())
	err := s.Run(ctx, func(_ context.Context, _ time.Time) error { return nil })
	if err != context.Canceled {
		t.Fatalf("run should return context.Canceled, got %v", err)
	}
}

func TestNextTickAlignment(t *testing.T) {
	s := New(Options{Name: "test", Interval: 5 * time.Minute, AlignToStart: true}, zerolog.Nop())

	now := time.Date(2026, 8, 25, 12, 2, 30, 0, time.UTC)
	next := s.nextTick(now)
	want := time.Date(2026, 8, 25, 12, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("aligned tick = %v, want %v", next, want)
	}

	unaligned := New(Options{Name: "test", Interval: 5 * time.Minute}, zerolog.Nop())
	if got := unaligned.nextTick(now); !got.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("unaligned tick = %v, want now + interval", got)
	}
}
