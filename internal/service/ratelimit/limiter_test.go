package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterBurstThenRefill(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("burst of 2 should pass")
	}
	if l.Allow("a") {
		t.Fatalf("third call should be limited")
	}
	if !l.Allow("b") {
		t.Fatalf("keys are independent")
	}

	now = now.Add(1500 * time.Millisecond)
	if !l.Allow("a") {
		t.Fatalf("token should have refilled")
	}
}

func TestLimiterPrune(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l := New(1, 0.01)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(time.Hour)
	if n := l.Prune(time.Minute); n != 1 {
		t.Fatalf("expected 1 pruned bucket, got %d", n)
	}
	if !l.Allow("a") {
		t.Fatalf("pruned key should start full")
	}
}
