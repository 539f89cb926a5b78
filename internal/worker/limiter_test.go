package worker

import (
	"fmt"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(0, 1)
	if limiter.Enabled() {
		t.Fatal("expected limiter with zero rate to be disabled")
	}

	for i := 0; i < 100; i++ {
		if !limiter.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected by disabled limiter", i)
		}
	}
	if limiter.Len() != 0 {
		t.Errorf("disabled limiter should not track clients, got %d", limiter.Len())
	}

	var nilLimiter *Limiter
	if !nilLimiter.Allow("x") {
		t.Error("nil limiter should allow everything")
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if !limiter.Allow("10.0.0.1") {
		t.Errorf("first request should pass")
	}

	// Burst 1: token is consumed
	if limiter.Allow("10.0.0.1") {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}

	if !limiter.Allow("10.0.0.2") {
		t.Errorf("expected allow for other client")
	}
}

func TestLimiter_EvictsIdleClients(t *testing.T) {
	limiter := NewLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		limiter.Allow(fmt.Sprintf("10.0.0.%d", i))
	}
	if limiter.Len() != 3 {
		t.Fatalf("expected 3 tracked clients, got %d", limiter.Len())
	}

	now = now.Add(time.Hour)
	limiter.Allow("10.0.0.99")

	if limiter.Len() != 1 {
		t.Errorf("expected idle clients to be evicted, got %d", limiter.Len())
	}
}
