package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pulsoview/maestro-engine/internal/models"
)

func TestFingerprintNormalization(t *testing.T) {
	bucket := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	qctx := models.QuestionContext{Area: "financeiro"}

	a := Fingerprint("Por que a margem caiu?", qctx, bucket)
	b := Fingerprint("  por que  a MARGEM caiu?  ", qctx, bucket)
	if a != b {
		t.Fatalf("whitespace and casing should not change the fingerprint")
	}

	c := Fingerprint("Por que a margem caiu?", qctx, bucket.Add(time.Hour))
	if a == c {
		t.Fatalf("different time buckets must produce different fingerprints")
	}

	d := Fingerprint("Por que a margem caiu?", models.QuestionContext{Area: "vendas"}, bucket)
	if a == d {
		t.Fatalf("different areas must produce different fingerprints")
	}
}

func TestResponseCacheHitAndExpiry(t *testing.T) {
	clock := time.Unix(1000, 0)
	c := NewResponseCache(time.Hour, nil, nil)
	c.now = func() time.Time { return clock }

	token, wait := c.BeginCompute("k")
	if wait != nil {
		t.Fatalf("first caller must be the leader")
	}
	c.Complete(context.Background(), "k", token, models.OrchestratorResponse{ID: "r1"})

	got, ok := c.Get(context.Background(), "k")
	if !ok || got.ID != "r1" {
		t.Fatalf("expected cached response r1, got %+v ok=%v", got, ok)
	}

	clock = clock.Add(2 * time.Hour)
	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestResponseCacheSingleFlight(t *testing.T) {
	c := NewResponseCache(time.Hour, nil, nil)

	token, wait := c.BeginCompute("k")
	if wait != nil {
		t.Fatalf("leader expected")
	}

	const followers = 8
	var wg sync.WaitGroup
	results := make(chan string, followers)
	for i := 0; i < followers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, followerWait := c.BeginCompute("k")
			if followerWait == nil {
				t.Error("second caller must not become a leader while one is inflight")
				return
			}
			<-followerWait
			resp, ok := c.Get(context.Background(), "k")
			if !ok {
				t.Error("follower should see the leader's result")
				return
			}
			results <- resp.ID
		}()
	}

	c.Complete(context.Background(), "k", token, models.OrchestratorResponse{ID: "leader"})
	wg.Wait()
	close(results)

	count := 0
	for id := range results {
		count++
		if id != "leader" {
			t.Fatalf("follower saw %q, want the leader's response", id)
		}
	}
	if count != followers {
		t.Fatalf("expected %d follower results, got %d", followers, count)
	}
}

func TestResponseCacheAbortReleasesWaiters(t *testing.T) {
	c := NewResponseCache(time.Hour, nil, nil)

	token, _ := c.BeginCompute("k")
	_, wait := c.BeginCompute("k")
	if wait == nil {
		t.Fatalf("expected follower channel")
	}

	c.Abort("k", token)

	select {
	case <-wait:
	case <-time.After(time.Second):
		t.Fatalf("abort must release waiters")
	}

	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Fatalf("aborted computation must not leave a value behind")
	}
	if retryToken, retryWait := c.BeginCompute("k"); retryWait != nil || retryToken == 0 {
		t.Fatalf("retry after abort should become the new leader")
	}
}

func TestResponseCacheStaleTokenIgnored(t *testing.T) {
	c := NewResponseCache(time.Hour, nil, nil)

	token, _ := c.BeginCompute("k")
	c.Abort("k", token)

	fresh, _ := c.BeginCompute("k")
	c.Complete(context.Background(), "k", token, models.OrchestratorResponse{ID: "stale"})

	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Fatalf("stale token must not publish a value")
	}

	c.Complete(context.Background(), "k", fresh, models.OrchestratorResponse{ID: "fresh"})
	got, ok := c.Get(context.Background(), "k")
	if !ok || got.ID != "fresh" {
		t.Fatalf("expected the current leader's value, got %+v ok=%v", got, ok)
	}
}

func TestResponseCacheSweep(t *testing.T) {
	clock := time.Unix(1000, 0)
	c := NewResponseCache(time.Minute, nil, nil)
	c.now = func() time.Time { return clock }

	token, _ := c.BeginCompute("done")
	c.Complete(context.Background(), "done", token, models.OrchestratorResponse{ID: "r"})
	c.BeginCompute("inflight")

	clock = clock.Add(2 * time.Minute)
	c.Sweep()

	if c.Len() != 1 {
		t.Fatalf("sweep should drop expired entries but keep inflight ones, got %d", c.Len())
	}
}
