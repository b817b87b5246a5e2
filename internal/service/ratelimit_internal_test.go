package service

import (
	"testing"
	"time"
)

func TestAttemptLimiter_RefillsOverTime(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewAttemptLimiter(1, 1)
	l.now = func() time.Time { return now }

	if !l.Allow("k") {
		t.Fatal("first attempt should be allowed")
	}
	if l.Allow("k") {
		t.Fatal("second attempt should be denied")
	}

	now = now.Add(1500 * time.Millisecond)
	if !l.Allow("k") {
		t.Fatal("attempt after refill should be allowed")
	}
}

func TestAttemptLimiter_SweepEvictsIdleKeys(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewAttemptLimiter(1, 3)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(limiterIdleTTL + time.Minute)
	l.Allow("fresh")

	l.sweep()

	if l.Len() != 1 {
		t.Fatalf("expected 1 tracked key after sweep, got %d", l.Len())
	}
}
