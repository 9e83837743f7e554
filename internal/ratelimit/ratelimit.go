// Package ratelimit provides token-bucket admission control for the inbound
// question path and for outbound calls to the language capability.
package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a continuous-refill token bucket. Refill accrues as
// rate × elapsed time since the last observation, capped at capacity.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// NewBucket creates a full bucket refilling at rate tokens/second up to burst.
func NewBucket(rate, burst float64) *Bucket {
	if burst <= 0 {
		burst = 1
	}
	if rate <= 0 {
		rate = 1
	}
	b := &Bucket{
		tokens:     burst,
		capacity:   burst,
		refillRate: rate,
		now:        time.Now,
	}
	b.lastRefill = b.now()
	return b
}

// Allow consumes cost tokens if available, reporting whether admission
// succeeded. A non-positive cost counts as one token.
func (b *Bucket) Allow(cost float64) bool {
	if cost <= 0 {
		cost = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= cost {
		b.tokens -= cost
		return true
	}
	return false
}

// Available returns the current token count after refill.
func (b *Bucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

func (b *Bucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
	}
	b.lastRefill = now
}

// PerSubject keys independent buckets by subject (session or IP), creating
// them lazily via the factory.
type PerSubject struct {
	mu       sync.Mutex
	buckets  map[string]*subjectBucket
	factory  func() *Bucket
	now      func() time.Time
	maxIdle  time.Duration
	lastSwep time.Time
}

type subjectBucket struct {
	bucket   *Bucket
	lastSeen time.Time
}

// NewPerSubject creates a keyed limiter. Buckets untouched for maxIdle are
// dropped during opportunistic sweeps; zero disables sweeping.
func NewPerSubject(factory func() *Bucket, maxIdle time.Duration) *PerSubject {
	p := &PerSubject{
		buckets: make(map[string]*subjectBucket),
		factory: factory,
		now:     time.Now,
		maxIdle: maxIdle,
	}
	p.lastSwep = p.now()
	return p
}

// Allow consumes cost tokens from the subject's bucket.
func (p *PerSubject) Allow(subject string, cost float64) bool {
	if subject == "" {
		subject = "anonymous"
	}

	p.mu.Lock()
	entry, ok := p.buckets[subject]
	if !ok {
		entry = &subjectBucket{bucket: p.factory()}
		p.buckets[subject] = entry
	}
	now := p.now()
	entry.lastSeen = now
	p.sweepLocked(now)
	p.mu.Unlock()

	return entry.bucket.Allow(cost)
}

// Len reports the number of live buckets.
func (p *PerSubject) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buckets)
}

func (p *PerSubject) sweepLocked(now time.Time) {
	if p.maxIdle <= 0 || now.Sub(p.lastSwep) < p.maxIdle {
		return
	}
	for subject, entry := range p.buckets {
		if now.Sub(entry.lastSeen) > p.maxIdle {
			delete(p.buckets, subject)
		}
	}
	p.lastSwep = now
}
