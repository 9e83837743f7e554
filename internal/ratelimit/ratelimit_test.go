package ratelimit

import (
	"testing"
	"time"
)

func TestBucketExhaustion(t *testing.T) {
	clock := time.Unix(1000, 0)
	b := NewBucket(1, 3)
	b.now = func() time.Time { return clock }
	b.lastRefill = clock

	for i := 0; i < 3; i++ {
		if !b.Allow(1) {
			t.Fatalf("request %d should be admitted", i)
		}
	}
	if b.Allow(1) {
		t.Fatalf("bucket should be empty after burst")
	}
}

func TestBucketContinuousRefill(t *testing.T) {
	clock := time.Unix(1000, 0)
	b := NewBucket(2, 4)
	b.now = func() time.Time { return clock }
	b.lastRefill = clock

	for i := 0; i < 4; i++ {
		b.Allow(1)
	}
	if b.Allow(1) {
		t.Fatalf("expected empty bucket")
	}

	// Half a second at 2 tokens/second buys exactly one admission.
	clock = clock.Add(500 * time.Millisecond)
	if !b.Allow(1) {
		t.Fatalf("expected refill to admit one request")
	}
	if b.Allow(1) {
		t.Fatalf("expected only one token after partial refill")
	}
}

func TestBucketRefillCappedAtCapacity(t *testing.T) {
	clock := time.Unix(1000, 0)
	b := NewBucket(10, 2)
	b.now = func() time.Time { return clock }
	b.lastRefill = clock

	clock = clock.Add(time.Hour)
	if got := b.Available(); got != 2 {
		t.Fatalf("expected tokens capped at capacity 2, got %f", got)
	}
}

func TestPerSubjectIsolation(t *testing.T) {
	p := NewPerSubject(func() *Bucket { return NewBucket(1, 1) }, 0)

	if !p.Allow("session-a", 1) {
		t.Fatalf("first request for session-a should pass")
	}
	if p.Allow("session-a", 1) {
		t.Fatalf("second request for session-a should be denied")
	}
	if !p.Allow("session-b", 1) {
		t.Fatalf("session-b has its own bucket and should pass")
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 live buckets, got %d", p.Len())
	}
}

func TestPerSubjectSweep(t *testing.T) {
	clock := time.Unix(1000, 0)
	p := NewPerSubject(func() *Bucket { return NewBucket(1, 10) }, time.Minute)
	p.now = func() time.Time { return clock }
	p.lastSwep = clock

	p.Allow("stale", 1)
	clock = clock.Add(2 * time.Minute)
	p.Allow("fresh", 1)

	if p.Len() != 1 {
		t.Fatalf("expected stale bucket swept, got %d buckets", p.Len())
	}
}
