package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pulsoview/maestro-engine/internal/models"
)

// ResponseCache deduplicates orchestration runs by request fingerprint.
// At most one computation per key is in flight; concurrent callers for the
// same key wait for the leader's result instead of recomputing. An optional
// Provider shares completed answers across replicas.
type ResponseCache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	ttl       time.Duration
	remote    Provider
	logger    *slog.Logger
	nextToken uint64
	now       func() time.Time
}

type entry struct {
	inflight   bool
	token      uint64
	done       chan struct{}
	value      models.OrchestratorResponse
	computedAt time.Time
	expiresAt  time.Time
}

// NewResponseCache creates a cache whose entries live for ttl. remote may be
// nil when no shared backing is configured.
func NewResponseCache(ttl time.Duration, remote Provider, logger *slog.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseCache{
		entries: make(map[string]*entry),
		ttl:     ttl,
		remote:  remote,
		logger:  logger,
		now:     time.Now,
	}
}

// Fingerprint derives the stable cache key for a question: normalized text,
// page context and the time bucket the answer is valid for.
func Fingerprint(question string, qctx models.QuestionContext, bucket time.Time) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(qctx.Area)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(qctx.Page)))
	h.Write([]byte{0})
	h.Write([]byte(bucket.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(h.Sum(nil))
}

// TTL returns the entry lifetime, which matches the fingerprint bucket
// granularity.
func (c *ResponseCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the completed response for key if present and not expired.
// Inflight computations do not count as hits; use BeginCompute to join them.
func (c *ResponseCache) Get(ctx context.Context, key string) (models.OrchestratorResponse, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && !e.inflight {
		if c.now().Before(e.expiresAt) {
			value := e.value
			c.mu.Unlock()
			return value, true
		}
		delete(c.entries, key)
		ok = false
	}
	inflight := ok && e.inflight
	c.mu.Unlock()

	if inflight || c.remote == nil {
		return models.OrchestratorResponse{}, false
	}

	payload, err := c.remote.Get(ctx, key)
	if err != nil {
		if err != ErrCacheMiss {
			c.logger.Warn("shared cache read failed", slog.Any("error", err))
		}
		return models.OrchestratorResponse{}, false
	}
	var value models.OrchestratorResponse
	if err := json.Unmarshal(payload, &value); err != nil {
		c.logger.Warn("shared cache payload malformed", slog.Any("error", err))
		return models.OrchestratorResponse{}, false
	}

	c.mu.Lock()
	if cur, exists := c.entries[key]; !exists || !cur.inflight {
		c.entries[key] = &entry{
			value:      value,
			computedAt: value.RanAt,
			expiresAt:  c.now().Add(c.ttl),
		}
	}
	c.mu.Unlock()
	return value, true
}

// BeginCompute claims the computation for key. The caller is the leader when
// wait is nil and must finish with Complete or Abort. Otherwise wait is
// closed once the current leader finishes, after which the caller should
// retry Get and, on a miss, BeginCompute again.
func (c *ResponseCache) BeginCompute(key string) (token uint64, wait <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		if e.inflight {
			return 0, e.done
		}
		if c.now().Before(e.expiresAt) {
			// Completed entry appeared between Get and BeginCompute; hand the
			// caller an already-closed channel so it re-reads immediately.
			closed := make(chan struct{})
			close(closed)
			return 0, closed
		}
		delete(c.entries, key)
	}

	c.nextToken++
	e := &entry{
		inflight: true,
		token:    c.nextToken,
		done:     make(chan struct{}),
	}
	c.entries[key] = e
	return e.token, nil
}

// Complete publishes the leader's value and releases all waiters. A stale
// token (superseded computation) is ignored.
func (c *ResponseCache) Complete(ctx context.Context, key string, token uint64, value models.OrchestratorResponse) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || !e.inflight || e.token != token {
		c.mu.Unlock()
		return
	}
	now := c.now()
	e.inflight = false
	e.value = value
	e.computedAt = now
	e.expiresAt = now.Add(c.ttl)
	close(e.done)
	c.mu.Unlock()

	if c.remote == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("encode cached response", slog.Any("error", err))
		return
	}
	if err := c.remote.Set(ctx, key, payload, c.ttl); err != nil {
		c.logger.Warn("shared cache write failed", slog.Any("error", err))
	}
}

// Abort releases the inflight marker without publishing a value so a later
// caller can retry the computation.
func (c *ResponseCache) Abort(key string, token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.inflight || e.token != token {
		return
	}
	delete(c.entries, key)
	close(e.done)
}

// Sweep drops expired entries. Inflight computations are left alone.
func (c *ResponseCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if !e.inflight && !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Len reports the number of live entries, inflight included.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
