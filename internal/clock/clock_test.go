/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRealSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Real{}.Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("sleep did not unwind on cancellation")
	}
}

func TestRealSleepNonPositive(t *testing.T) {
	if err := (Real{}).Sleep(context.Background(), -time.Second); err != nil {
		t.Fatalf("expected nil for negative sleep, got %v", err)
	}
}

func TestFakeSleepAdvances(t *testing.T) {
	start := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)

	if err := f.Sleep(context.Background(), 90*time.Second); err != nil {
		t.Fatalf("sleep: %v", err)
	}
	if err := f.Sleep(context.Background(), -5*time.Second); err != nil {
		t.Fatalf("sleep: %v", err)
	}

	if got := f.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Errorf("now = %s", got)
	}
	sleeps := f.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 90*time.Second || sleeps[1] != 0 {
		t.Errorf("sleeps = %v", sleeps)
	}
}

func TestFakeHookCancels(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	f.OnSleep(func(time.Time, time.Duration) { cancel() })

	if err := f.Sleep(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation from hook, got %v", err)
	}
	if err := f.Sleep(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled context to short-circuit, got %v", err)
	}
	if len(f.Sleeps()) != 1 {
		t.Fatalf("expected one recorded sleep, got %v", f.Sleeps())
	}
}
