package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulsoview/maestro-engine/internal/models"
	"github.com/pulsoview/maestro-engine/internal/ratelimit"
)

type fakeClassifier struct {
	cls  Classification
	err  error
	hits int
}

func (f *fakeClassifier) Classify(ctx context.Context, text, areaHint string) (Classification, error) {
	f.hits++
	return f.cls, f.err
}

func TestResolveUsesModelWhenAvailable(t *testing.T) {
	classifier := &fakeClassifier{cls: Classification{
		Area:       "financeiro",
		Metric:     "margem_bruta",
		Confidence: 0.92,
	}}
	r := NewResolver(nil, classifier, nil, nil, time.Second, 0)

	intent := r.Resolve(context.Background(), "Por que a margem caiu?", models.QuestionContext{})
	if intent.Source != models.IntentSourceModel {
		t.Fatalf("expected model source, got %s", intent.Source)
	}
	if intent.Area != "financeiro" || intent.Metric != "margem_bruta" {
		t.Fatalf("unexpected intent %+v", intent)
	}
	if intent.Confidence != 0.92 {
		t.Fatalf("expected confidence 0.92, got %f", intent.Confidence)
	}
}

func TestResolveFallsBackOnModelError(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("upstream down")}
	r := NewResolver(nil, classifier, nil, nil, time.Second, 0)

	intent := r.Resolve(context.Background(), "Por que a margem caiu?", models.QuestionContext{})
	if intent.Source != models.IntentSourceHeuristic {
		t.Fatalf("expected heuristic fallback, got %s", intent.Source)
	}
	if intent.Area != "financeiro" {
		t.Fatalf("heuristic should map margem to financeiro, got %s", intent.Area)
	}
}

func TestResolveFallsBackOnUnknownModelArea(t *testing.T) {
	classifier := &fakeClassifier{cls: Classification{Area: "marketing", Confidence: 0.9}}
	r := NewResolver(nil, classifier, nil, nil, time.Second, 0)

	intent := r.Resolve(context.Background(), "Por que a margem caiu?", models.QuestionContext{})
	if intent.Source != models.IntentSourceHeuristic {
		t.Fatalf("unknown model area must degrade to heuristic, got %s", intent.Source)
	}
}

func TestResolveFallsBackOnWeakModelConfidence(t *testing.T) {
	classifier := &fakeClassifier{cls: Classification{Area: "financeiro", Confidence: 0.3}}
	r := NewResolver(nil, classifier, nil, nil, time.Second, 0)

	intent := r.Resolve(context.Background(), "Por que a margem caiu?", models.QuestionContext{})
	if intent.Source != models.IntentSourceHeuristic {
		t.Fatalf("classifications below ModelFloor must fall back, got %s", intent.Source)
	}
	if intent.Confidence > HeuristicCap {
		t.Fatalf("fallback confidence %f exceeds heuristic cap", intent.Confidence)
	}
}

func TestResolveModelGateDenialSkipsModel(t *testing.T) {
	classifier := &fakeClassifier{cls: Classification{Area: "financeiro", Confidence: 0.9}}
	gate := ratelimit.NewBucket(1, 1)
	gate.Allow(1) // drain

	r := NewResolver(nil, classifier, nil, gate, time.Second, 0)
	intent := r.Resolve(context.Background(), "Por que a margem caiu?", models.QuestionContext{})
	if classifier.hits != 0 {
		t.Fatalf("classifier must not be called when the gate denies")
	}
	if intent.Source != models.IntentSourceHeuristic {
		t.Fatalf("expected heuristic result, got %s", intent.Source)
	}
}

func TestHeuristicConfidenceStrictlyBelowModelRange(t *testing.T) {
	r := NewResolver(nil, nil, nil, nil, time.Second, 0)

	questions := []string{
		"Por que a margem caiu?",
		"Como está a margem bruta da receita e do faturamento este mês?",
		"Qual o custo médio de compra do fornecedor?",
	}
	for _, q := range questions {
		intent := r.Resolve(context.Background(), q, models.QuestionContext{})
		if intent.Confidence > HeuristicCap {
			t.Fatalf("heuristic confidence %f exceeds cap for %q", intent.Confidence, q)
		}
	}
}

func TestResolveUnknownQuestion(t *testing.T) {
	r := NewResolver(nil, nil, nil, nil, time.Second, 0)

	intent := r.Resolve(context.Background(), "Qual a previsão do tempo?", models.QuestionContext{})
	if intent.Area != models.AreaUnknown {
		t.Fatalf("expected unknown area, got %s", intent.Area)
	}
	if intent.Confidence != 0 {
		t.Fatalf("unknown intent must carry zero confidence, got %f", intent.Confidence)
	}
}

func TestResolveAreaHintBreaksTies(t *testing.T) {
	r := NewResolver(nil, nil, nil, nil, time.Second, 0)

	intent := r.Resolve(context.Background(), "Por que isso piorou?", models.QuestionContext{Area: "compras"})
	if intent.Area != "compras" {
		t.Fatalf("page hint should carry the match to compras, got %s", intent.Area)
	}
}

func TestResolveTimeWindowFromPeriodKeyword(t *testing.T) {
	r := NewResolver(nil, nil, nil, nil, time.Second, 0)
	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	intent := r.Resolve(context.Background(), "Como foram as vendas hoje?", models.QuestionContext{})
	if got := intent.TimeWindow.End.Sub(intent.TimeWindow.Start); got != 24*time.Hour {
		t.Fatalf("hoje should resolve to a 24h window, got %s", got)
	}

	intent = r.Resolve(context.Background(), "Como foram as vendas no mês?", models.QuestionContext{})
	if got := intent.TimeWindow.End.Sub(intent.TimeWindow.Start); got != 30*24*time.Hour {
		t.Fatalf("mês should resolve to a 30d window, got %s", got)
	}
}

func TestNormalizeStripsAccents(t *testing.T) {
	if got := Normalize("  Conversão  de   VENDAS "); got != "conversao de vendas" {
		t.Fatalf("got %q", got)
	}
}

func TestVocabularyWordBoundaries(t *testing.T) {
	v := DefaultVocabulary()
	// "compraria" contains "compra" but not as a word.
	m := v.Match("eu compraria um carro", "")
	if m.Area == "compras" {
		t.Fatalf("substring inside a longer word must not match")
	}
}
