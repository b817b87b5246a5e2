package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/msomdec/people-registry/internal/service"
)

func TestAttemptLimiter_AllowsUpToCapacity(t *testing.T) {
	l := service.NewAttemptLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow("test-key") {
			t.Fatalf("attempt %d should be allowed (bucket not yet empty)", i+1)
		}
	}
	if l.Allow("test-key") {
		t.Fatal("4th attempt should be denied (bucket empty)")
	}
}

func TestAttemptLimiter_DifferentKeysAreIndependent(t *testing.T) {
	l := service.NewAttemptLimiter(1, 1)

	if !l.Allow("ip-a") {
		t.Fatal("ip-a first attempt should be allowed")
	}
	if l.Allow("ip-a") {
		t.Fatal("ip-a second attempt should be denied")
	}
	if !l.Allow("ip-b") {
		t.Fatal("ip-b first attempt should be allowed (independent bucket)")
	}
}

func TestAttemptLimiter_ZeroRateNeverRefills(t *testing.T) {
	l := service.NewAttemptLimiter(0, 2)

	l.Allow("k")
	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("third attempt should be denied (no refill)")
	}
}

func TestAttemptLimiter_ResetRestoresCapacity(t *testing.T) {
	l := service.NewAttemptLimiter(0, 1)

	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("second attempt should be denied")
	}
	l.Reset("k")
	if !l.Allow("k") {
		t.Fatal("attempt after reset should be allowed")
	}
}

func TestAttemptLimiter_RunStopsWithContext(t *testing.T) {
	l := service.NewAttemptLimiter(1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
