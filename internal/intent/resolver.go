package intent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pulsoview/maestro-engine/internal/kpi"
	"github.com/pulsoview/maestro-engine/internal/models"
	"github.com/pulsoview/maestro-engine/internal/ratelimit"
)

const (
	// HeuristicCap bounds heuristic confidence strictly below ModelFloor,
	// so a model-resolved intent always outranks a keyword match for the
	// same question.
	HeuristicCap = 0.6

	// ModelFloor is the minimum model-reported confidence the resolver
	// accepts. Weaker classifications fall through to the heuristic path.
	ModelFloor = 0.65
)

// Resolver turns a free-text question into an Intent. The external model is
// tried first; any failure, timeout, denial or absence degrades to the
// deterministic keyword matcher. Resolve never returns an error: a question
// that maps to nothing yields an unknown-area intent with confidence zero.
type Resolver struct {
	logger     *slog.Logger
	classifier Classifier
	vocab      *Vocabulary
	modelGate  *ratelimit.Bucket
	timeout    time.Duration
	window     time.Duration
	now        func() time.Time
}

// NewResolver constructs a resolver. classifier may be nil when the model
// capability is globally disabled; modelGate may be nil to skip outbound
// quota checks.
func NewResolver(logger *slog.Logger, classifier Classifier, vocab *Vocabulary, modelGate *ratelimit.Bucket, timeout, defaultWindow time.Duration) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if defaultWindow <= 0 {
		defaultWindow = 7 * 24 * time.Hour
	}
	return &Resolver{
		logger:     logger,
		classifier: classifier,
		vocab:      vocab,
		modelGate:  modelGate,
		timeout:    timeout,
		window:     defaultWindow,
		now:        time.Now,
	}
}

// Resolve produces the Intent for a question plus optional page context.
func (r *Resolver) Resolve(ctx context.Context, question string, qctx models.QuestionContext) models.Intent {
	if cls, ok := r.tryModel(ctx, question, qctx); ok {
		entities := cls.Entities
		if entities == nil {
			entities = map[string]string{}
		}
		return models.Intent{
			Area:       cls.Area,
			Metric:     cls.Metric,
			TimeWindow: r.timeWindow(question),
			Entities:   entities,
			Confidence: kpi.Clamp(cls.Confidence, 0, 1),
			Source:     models.IntentSourceModel,
		}
	}

	return r.heuristic(question, qctx)
}

func (r *Resolver) tryModel(ctx context.Context, question string, qctx models.QuestionContext) (Classification, bool) {
	if r.classifier == nil {
		return Classification{}, false
	}
	if r.modelGate != nil && !r.modelGate.Allow(1) {
		r.logger.Debug("model quota exhausted, using heuristic resolver")
		return Classification{}, false
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cls, err := r.classifier.Classify(cctx, question, qctx.Area)
	if err != nil {
		r.logger.Warn("model classification failed", slog.Any("error", err))
		return Classification{}, false
	}
	if cls.Area == "" || !r.vocab.HasArea(cls.Area) {
		return Classification{}, false
	}
	if cls.Confidence < ModelFloor {
		r.logger.Debug("model confidence below floor, using heuristic resolver",
			slog.Float64("confidence", cls.Confidence))
		return Classification{}, false
	}
	return cls, true
}

func (r *Resolver) heuristic(question string, qctx models.QuestionContext) models.Intent {
	match := r.vocab.Match(question, qctx.Area)
	if match.Area == "" {
		return models.Intent{
			Area:       models.AreaUnknown,
			TimeWindow: r.timeWindow(question),
			Confidence: 0,
			Source:     models.IntentSourceHeuristic,
		}
	}

	confidence := 0.25 + 0.1*float64(match.Hits)
	if match.Metric != "" {
		confidence += 0.1
	}
	confidence = kpi.Clamp(confidence, 0, HeuristicCap)

	entities := map[string]string{}
	if match.Keyword != "" {
		entities["keyword"] = match.Keyword
	}
	if match.Metric != "" {
		entities["metric"] = match.Metric
	}
	if period := periodKeyword(question); period != "" {
		entities["period"] = period
	}

	return models.Intent{
		Area:       match.Area,
		Metric:     match.Metric,
		TimeWindow: r.timeWindow(question),
		Entities:   entities,
		Confidence: confidence,
		Source:     models.IntentSourceHeuristic,
	}
}

func (r *Resolver) timeWindow(question string) models.TimeWindow {
	end := r.now().UTC()
	span := r.window
	switch periodKeyword(question) {
	case "hoje":
		span = 24 * time.Hour
	case "ontem":
		span = 48 * time.Hour
	case "semana":
		span = 7 * 24 * time.Hour
	case "mes":
		span = 30 * 24 * time.Hour
	case "trimestre":
		span = 90 * 24 * time.Hour
	}
	return models.TimeWindow{Start: end.Add(-span), End: end}
}

func periodKeyword(question string) string {
	text := Normalize(question)
	for _, period := range []string{"hoje", "ontem", "semana", "trimestre", "mes"} {
		if strings.Contains(text, period) {
			return period
		}
	}
	return ""
}
