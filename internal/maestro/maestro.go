// Package maestro is the orchestration core: it resolves intent, fans out
// to the agent pool, runs the evidence check and synthesizes the final
// confidence-annotated response.
package maestro

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pulsoview/maestro-engine/internal/agents"
	"github.com/pulsoview/maestro-engine/internal/cache"
	"github.com/pulsoview/maestro-engine/internal/intent"
	"github.com/pulsoview/maestro-engine/internal/metrics"
	"github.com/pulsoview/maestro-engine/internal/models"
	"github.com/pulsoview/maestro-engine/internal/utils"
)

// ErrEmptyQuestion rejects blank input before any orchestration work.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Config tunes fan-out and the confidence combination.
type Config struct {
	AgentTimeout   time.Duration
	OverallTimeout time.Duration
	// IntentWeight and CauseWeight combine intent confidence with the top
	// surviving cause's confidence into the final 0-100 score. Documented
	// tunables, monotonic in both inputs.
	IntentWeight float64
	CauseWeight  float64
}

func (c *Config) applyDefaults() {
	if c.AgentTimeout <= 0 {
		c.AgentTimeout = 3 * time.Second
	}
	if c.OverallTimeout <= 0 {
		c.OverallTimeout = 10 * time.Second
	}
	if c.IntentWeight <= 0 && c.CauseWeight <= 0 {
		c.IntentWeight = 0.4
		c.CauseWeight = 0.6
	}
}

// Maestro coordinates one orchestration run per question fingerprint.
type Maestro struct {
	logger   *slog.Logger
	resolver *intent.Resolver
	registry *agents.Registry
	checker  *agents.Checker
	cache    *cache.ResponseCache
	cfg      Config
	now      func() time.Time
}

// New constructs the orchestrator core.
func New(logger *slog.Logger, resolver *intent.Resolver, registry *agents.Registry, checker *agents.Checker, respCache *cache.ResponseCache, cfg Config) *Maestro {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Maestro{
		logger:   logger,
		resolver: resolver,
		registry: registry,
		checker:  checker,
		cache:    respCache,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Answer runs the full pipeline for one question. It always produces a
// response for a non-empty question: internal failures degrade confidence,
// they do not surface as errors.
func (m *Maestro) Answer(ctx context.Context, question string, qctx models.QuestionContext) (models.OrchestratorResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return models.OrchestratorResponse{}, ErrEmptyQuestion
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.OverallTimeout)
	defer cancel()

	bucket := utils.TimeBucket(m.now(), m.cache.TTL())
	key := cache.Fingerprint(question, qctx, bucket)

	var token uint64
	for {
		if cached, ok := m.cache.Get(ctx, key); ok {
			metrics.ObserveCacheEvent("hit")
			return cached, nil
		}

		var wait <-chan struct{}
		token, wait = m.cache.BeginCompute(key)
		if wait == nil {
			break
		}
		metrics.ObserveCacheEvent("inflight_wait")
		select {
		case <-wait:
		case <-ctx.Done():
			return models.OrchestratorResponse{}, ctx.Err()
		}
	}
	metrics.ObserveCacheEvent("miss")

	response := m.run(ctx, question, qctx)
	m.cache.Complete(context.WithoutCancel(ctx), key, token, response)
	return response, nil
}

func (m *Maestro) run(ctx context.Context, question string, qctx models.QuestionContext) models.OrchestratorResponse {
	resolved := m.resolver.Resolve(ctx, question, qctx)

	m.logger.Debug("intent resolved",
		slog.String("area", resolved.Area),
		slog.String("source", string(resolved.Source)),
		slog.Float64("confidence", resolved.Confidence))

	if resolved.Area == models.AreaUnknown {
		return m.synthesize(question, resolved, nil)
	}

	findings := m.fanOut(ctx, resolved)
	if m.checker != nil {
		findings = m.checker.Check(ctx, resolved, findings)
	}
	return m.synthesize(question, resolved, findings)
}

type fanResult struct {
	idx     int
	finding models.AgentFinding
}

// fanOut evaluates the matched agents concurrently with a per-agent timeout.
// A failing or timed-out agent contributes an empty finding with confidence
// zero; the others proceed. Results arrive over a channel so the overall
// question deadline holds even when an agent ignores its context: stragglers
// are abandoned and whatever landed in time feeds the synthesis.
func (m *Maestro) fanOut(ctx context.Context, resolved models.Intent) []models.AgentFinding {
	matched := m.registry.Match(resolved.Area)
	if len(matched) == 0 {
		return nil
	}

	findings := make([]models.AgentFinding, len(matched))
	results := make(chan fanResult, len(matched))
	g, gctx := errgroup.WithContext(ctx)
	for i, agent := range matched {
		i, agent := i, agent
		findings[i] = models.AgentFinding{AgentID: agent.ID()}
		g.Go(func() error {
			actx, cancel := context.WithTimeout(gctx, m.cfg.AgentTimeout)
			defer cancel()

			finding, err := agent.Evaluate(actx, resolved)
			if err != nil {
				m.logger.Warn("agent evaluation failed",
					slog.String("agent", agent.ID()), slog.Any("error", err))
				return nil
			}
			finding.AgentID = agent.ID()
			results <- fanResult{idx: i, finding: finding}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	for {
		select {
		case r, ok := <-results:
			if !ok {
				return findings
			}
			findings[r.idx] = r.finding
		case <-ctx.Done():
			m.logger.Warn("question deadline reached, abandoning outstanding agents",
				slog.String("area", resolved.Area))
			return findings
		}
	}
}
