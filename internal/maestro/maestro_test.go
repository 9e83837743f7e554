package maestro

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pulsoview/maestro-engine/internal/agents"
	"github.com/pulsoview/maestro-engine/internal/cache"
	"github.com/pulsoview/maestro-engine/internal/intent"
	"github.com/pulsoview/maestro-engine/internal/models"
)

type stubAgent struct {
	id       string
	priority int
	areas    []string
	finding  models.AgentFinding
	err      error
	calls    atomic.Int64
	block    chan struct{}
	// stall makes Evaluate sleep without watching ctx, like a misbehaving
	// agent that never checks its deadline.
	stall time.Duration
}

func (a *stubAgent) ID() string      { return a.id }
func (a *stubAgent) Priority() int   { return a.priority }
func (a *stubAgent) Areas() []string { return a.areas }

func (a *stubAgent) Evaluate(ctx context.Context, in models.Intent) (models.AgentFinding, error) {
	a.calls.Add(1)
	if a.stall > 0 {
		time.Sleep(a.stall)
	}
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return models.AgentFinding{}, ctx.Err()
		}
	}
	return a.finding, a.err
}

func newTestMaestro(t *testing.T, agent *stubAgent) *Maestro {
	t.Helper()
	resolver := intent.NewResolver(nil, nil, nil, nil, time.Second, 0)
	registry := agents.NewRegistry(nil, agent)
	respCache := cache.NewResponseCache(time.Hour, nil, nil)
	return New(nil, resolver, registry, nil, respCache, Config{})
}

func financeiroAgent(confidence float64) *stubAgent {
	return &stubAgent{
		id:       "financeiro-stub",
		priority: 1,
		areas:    []string{"financeiro"},
		finding: models.AgentFinding{
			Confidence: confidence,
			Causes: []models.Cause{
				{Cause: "Custo de insumos subiu", Metric: "custo_medio", Confidence: confidence},
			},
			Evidence: []models.Evidence{
				{Metric: "custo_medio", Value: 14, Source: "kpi-gateway"},
			},
			Actions: []models.Action{
				{Action: "Renegociar com fornecedores", Rationale: "Custo acima do histórico"},
			},
		},
	}
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	m := newTestMaestro(t, financeiroAgent(0.8))
	if _, err := m.Answer(context.Background(), "   ", models.QuestionContext{}); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
}

func TestAnswerFullPipeline(t *testing.T) {
	agent := financeiroAgent(0.8)
	m := newTestMaestro(t, agent)

	resp, err := m.Answer(context.Background(), "Por que a margem caiu?", models.QuestionContext{})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if len(resp.Synthesis.TopCauses) != 1 {
		t.Fatalf("expected the agent's cause, got %+v", resp.Synthesis.TopCauses)
	}
	if len(resp.Synthesis.ValidationLinks) == 0 {
		t.Fatalf("expected validation links for a resolved area")
	}
	// Heuristic intent 0.45, top cause 0.8: round((0.4*0.45 + 0.6*0.8)*100).
	if resp.Confidence != 66 {
		t.Fatalf("expected confidence 66, got %d", resp.Confidence)
	}
	if resp.Synthesis.Executive == "" {
		t.Fatalf("executive summary must never be empty")
	}
}

func TestAnswerUnknownAreaShortCircuits(t *testing.T) {
	agent := financeiroAgent(0.8)
	m := newTestMaestro(t, agent)

	resp, err := m.Answer(context.Background(), "Qual a previsão do tempo?", models.QuestionContext{})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if agent.calls.Load() != 0 {
		t.Fatalf("agents must not run for unknown areas")
	}
	if resp.Confidence != 0 {
		t.Fatalf("unknown area carries zero confidence, got %d", resp.Confidence)
	}
	if len(resp.Synthesis.TopCauses) != 0 {
		t.Fatalf("unknown area must produce no causes")
	}
}

func TestAnswerCachesByFingerprint(t *testing.T) {
	agent := financeiroAgent(0.8)
	m := newTestMaestro(t, agent)

	first, err := m.Answer(context.Background(), "Por que a margem caiu?", models.QuestionContext{})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	second, err := m.Answer(context.Background(), "por que a MARGEM caiu?", models.QuestionContext{})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	if agent.calls.Load() != 1 {
		t.Fatalf("normalized repeat must be served from cache, agent ran %d times", agent.calls.Load())
	}
	if first.ID != second.ID {
		t.Fatalf("cached answer must be the same response")
	}
}

func TestAnswerSingleFlight(t *testing.T) {
	agent := financeiroAgent(0.8)
	agent.block = make(chan struct{})
	m := newTestMaestro(t, agent)

	const callers = 5
	var wg sync.WaitGroup
	ids := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := m.Answer(context.Background(), "Por que a margem caiu?", models.QuestionContext{})
			if err != nil {
				t.Errorf("answer: %v", err)
				return
			}
			ids <- resp.ID
		}()
	}

	// Let the followers queue up behind the leader before releasing it.
	deadline := time.After(2 * time.Second)
	for agent.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("leader never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(agent.block)
	wg.Wait()
	close(ids)

	if got := agent.calls.Load(); got != 1 {
		t.Fatalf("concurrent identical questions must compute once, got %d runs", got)
	}
	var first string
	for id := range ids {
		if first == "" {
			first = id
		}
		if id != first {
			t.Fatalf("all callers must share one response")
		}
	}
}

func TestAnswerFailingAgentDegrades(t *testing.T) {
	agent := &stubAgent{
		id:       "financeiro-stub",
		priority: 1,
		areas:    []string{"financeiro"},
		err:      errors.New("backend down"),
	}
	m := newTestMaestro(t, agent)

	resp, err := m.Answer(context.Background(), "Por que a margem caiu?", models.QuestionContext{})
	if err != nil {
		t.Fatalf("agent failure must not surface as an error, got %v", err)
	}
	if len(resp.Synthesis.TopCauses) != 0 {
		t.Fatalf("failed agent contributes nothing, got %+v", resp.Synthesis.TopCauses)
	}
	if resp.Confidence >= 50 {
		t.Fatalf("confidence must degrade without causes, got %d", resp.Confidence)
	}
}

func TestAnswerAbandonsAgentIgnoringDeadline(t *testing.T) {
	fast := financeiroAgent(0.8)
	stubborn := &stubAgent{
		id:       "stubborn-stub",
		priority: 2,
		areas:    []string{"financeiro"},
		stall:    2 * time.Second,
		finding: models.AgentFinding{
			Confidence: 0.9,
			Causes:     []models.Cause{{Cause: "Chegou tarde demais", Confidence: 0.9}},
		},
	}
	resolver := intent.NewResolver(nil, nil, nil, nil, time.Second, 0)
	registry := agents.NewRegistry(nil, fast, stubborn)
	respCache := cache.NewResponseCache(time.Hour, nil, nil)
	m := New(nil, resolver, registry, nil, respCache, Config{
		AgentTimeout:   50 * time.Millisecond,
		OverallTimeout: 100 * time.Millisecond,
	})

	start := time.Now()
	resp, err := m.Answer(context.Background(), "Por que a margem caiu?", models.QuestionContext{})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("answer took %v, question deadline not enforced", elapsed)
	}

	var found bool
	for _, c := range resp.Synthesis.TopCauses {
		if c.Cause == "Chegou tarde demais" {
			t.Fatalf("abandoned agent's finding must not reach the synthesis")
		}
		if c.Cause == "Custo de insumos subiu" {
			found = true
		}
	}
	if !found {
		t.Fatalf("fast agent's cause missing from partial synthesis: %+v", resp.Synthesis.TopCauses)
	}

	// The inflight entry is completed with the partial result, so a repeat
	// of the same question is served from cache without waiting again.
	start = time.Now()
	again, err := m.Answer(context.Background(), "Por que a margem caiu?", models.QuestionContext{})
	if err != nil {
		t.Fatalf("repeat answer: %v", err)
	}
	if again.ID != resp.ID {
		t.Fatalf("repeat should hit the cached partial response")
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("cached repeat took %v", elapsed)
	}
}

func TestMergeCausesDedupAndRank(t *testing.T) {
	m := newTestMaestro(t, financeiroAgent(0.8))

	findings := []models.AgentFinding{
		{
			AgentID: "financeiro-stub",
			Causes: []models.Cause{
				{Cause: "Custo de insumos subiu", Confidence: 0.5},
				{Cause: "Queda de conversão", Confidence: 0.7},
			},
		},
		{
			AgentID: "other",
			Causes: []models.Cause{
				// Same cause, different casing: dedup keeps the higher confidence.
				{Cause: "CUSTO DE INSUMOS SUBIU", Confidence: 0.6},
			},
		},
	}

	causes := m.mergeCauses(findings)
	if len(causes) != 2 {
		t.Fatalf("expected 2 deduplicated causes, got %d", len(causes))
	}
	if causes[0].Cause != "Queda de conversão" {
		t.Fatalf("expected highest confidence first, got %q", causes[0].Cause)
	}
	if causes[1].Confidence != 0.6 {
		t.Fatalf("dedup must keep the higher confidence duplicate, got %f", causes[1].Confidence)
	}
}
