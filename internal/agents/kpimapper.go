package agents

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/pulsoview/maestro-engine/internal/kpi"
	"github.com/pulsoview/maestro-engine/internal/models"
)

// KPIMapper is the generic fallback agent. It scans the indicator catalog
// for the intent's area and flags metrics whose latest value deviates from
// the trailing baseline by more than the configured number of standard
// deviations, ranked by deviation magnitude.
type KPIMapper struct {
	logger  *slog.Logger
	gateway kpi.Gateway
	catalog *kpi.Catalog
	sigma   float64
}

// NewKPIMapper constructs the fallback agent.
func NewKPIMapper(logger *slog.Logger, gateway kpi.Gateway, catalog *kpi.Catalog, sigma float64) *KPIMapper {
	if logger == nil {
		logger = slog.Default()
	}
	if sigma <= 0 {
		sigma = 2.0
	}
	return &KPIMapper{logger: logger, gateway: gateway, catalog: catalog, sigma: sigma}
}

func (a *KPIMapper) ID() string { return "kpi-mapper" }

func (a *KPIMapper) Priority() int { return 10 }

// Areas is empty: the mapper is not registered for any specific domain and
// only runs as the registry fallback.
func (a *KPIMapper) Areas() []string { return nil }

type deviationCandidate struct {
	indicator kpi.Indicator
	snapshot  kpi.Snapshot
}

// Evaluate flags catalog indicators for the intent's area that moved beyond
// the sigma threshold within the intent's time window.
func (a *KPIMapper) Evaluate(ctx context.Context, intent models.Intent) (models.AgentFinding, error) {
	finding := models.AgentFinding{AgentID: a.ID()}

	indicators := a.catalog.ByArea(intent.Area)
	if len(indicators) == 0 {
		return finding, nil
	}

	candidates := make([]deviationCandidate, 0, len(indicators))
	for _, indicator := range indicators {
		if err := ctx.Err(); err != nil {
			return models.AgentFinding{AgentID: a.ID()}, err
		}
		series, err := a.gateway.Query(ctx, indicator.Area, indicator.Metric, intent.TimeWindow)
		if err != nil {
			a.logger.Debug("kpi query failed", slog.String("metric", indicator.Metric), slog.Any("error", err))
			continue
		}
		snapshot, ok := kpi.Analyze(series)
		if !ok {
			continue
		}
		if math.Abs(snapshot.Score) < a.sigma {
			continue
		}
		candidates = append(candidates, deviationCandidate{indicator: indicator, snapshot: snapshot})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return math.Abs(candidates[i].snapshot.Score) > math.Abs(candidates[j].snapshot.Score)
	})

	for _, c := range candidates {
		finding.Causes = append(finding.Causes, models.Cause{
			Cause:      DescribeDeviation(c.indicator, c.snapshot),
			Metric:     c.indicator.Metric,
			Confidence: DeviationConfidence(c.snapshot.Score),
		})
		finding.Evidence = append(finding.Evidence, models.Evidence{
			Metric: c.indicator.Metric,
			Value:  c.snapshot.Latest,
			Unit:   c.indicator.Unit,
			Source: "kpi-gateway",
		})
	}

	if len(candidates) > 0 {
		top := candidates[0]
		finding.Actions = append(finding.Actions, models.Action{
			Action:    fmt.Sprintf("Investigar a variação de %s", top.indicator.Label),
			Rationale: fmt.Sprintf("Desvio de %.1f desvios-padrão sobre a média do período", math.Abs(top.snapshot.Score)),
		})
		finding.Confidence = finding.Causes[0].Confidence
	}

	return finding, nil
}

// DescribeDeviation renders a deviation snapshot as a human-readable cause.
func DescribeDeviation(indicator kpi.Indicator, snapshot kpi.Snapshot) string {
	verb := "subiu"
	if snapshot.Score < 0 {
		verb = "caiu"
	}
	return fmt.Sprintf("%s %s %.1f%% em relação à média do período", indicator.Label, verb, math.Abs(snapshot.ChangePct))
}

// DeviationConfidence scales a sigma score into a bounded local confidence.
func DeviationConfidence(score float64) float64 {
	return kpi.Clamp(0.35+math.Abs(score)/10, 0, 0.9)
}
