package transport

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsBurstThenLimits(t *testing.T) {
	rl := newRateLimiter()

	// The device bucket starts full (burst == perDeviceRate); draining it
	// should succeed without blocking.
	for i := 0; i < perDeviceRate; i++ {
		if err := rl.allow("d073d500aa11"); err != nil {
			t.Fatalf("allow() call %d: %v", i, err)
		}
	}

	// With the bucket drained, the next send has to wait for a token to
	// refill (1/perDeviceRate s, i.e. 50ms).
	start := time.Now()
	if err := rl.allow("d073d500aa11"); err != nil {
		t.Fatalf("allow() after burst: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("allow() after burst returned in %v, want it to wait for a token", elapsed)
	}
}

func TestRateLimiterPerDeviceIsolation(t *testing.T) {
	rl := newRateLimiter()

	// Draining one device's bucket must not affect another device's.
	for i := 0; i < perDeviceRate; i++ {
		_ = rl.allow("d073d500aa11")
	}
	if err := rl.allow("d073d500aa22"); err != nil {
		t.Fatalf("allow() for a fresh device: %v", err)
	}
}
