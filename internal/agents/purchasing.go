package agents

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/pulsoview/maestro-engine/internal/kpi"
	"github.com/pulsoview/maestro-engine/internal/models"
)

// Purchasing evaluates questions about the compras domain. It reads the
// purchase KPIs and translates cost and lead-time pressure into supplier
// oriented causes and actions.
type Purchasing struct {
	logger  *slog.Logger
	gateway kpi.Gateway
	catalog *kpi.Catalog
	sigma   float64
}

// NewPurchasing constructs the purchasing agent.
func NewPurchasing(logger *slog.Logger, gateway kpi.Gateway, catalog *kpi.Catalog, sigma float64) *Purchasing {
	if logger == nil {
		logger = slog.Default()
	}
	if sigma <= 0 {
		sigma = 1.5
	}
	return &Purchasing{logger: logger, gateway: gateway, catalog: catalog, sigma: sigma}
}

func (a *Purchasing) ID() string { return "purchasing" }

func (a *Purchasing) Priority() int { return 1 }

func (a *Purchasing) Areas() []string { return []string{"compras"} }

// Evaluate inspects cost and lead-time indicators for supplier pressure.
func (a *Purchasing) Evaluate(ctx context.Context, intent models.Intent) (models.AgentFinding, error) {
	finding := models.AgentFinding{AgentID: a.ID()}

	supplier := intent.Entities["fornecedor"]

	for _, indicator := range a.catalog.ByArea("compras") {
		if err := ctx.Err(); err != nil {
			return models.AgentFinding{AgentID: a.ID()}, err
		}
		series, err := a.gateway.Query(ctx, indicator.Area, indicator.Metric, intent.TimeWindow)
		if err != nil {
			a.logger.Debug("purchasing query failed", slog.String("metric", indicator.Metric), slog.Any("error", err))
			continue
		}
		snapshot, ok := kpi.Analyze(series)
		if !ok || math.Abs(snapshot.Score) < a.sigma {
			continue
		}

		cause, action := a.interpret(indicator, snapshot, supplier)
		if cause.Cause == "" {
			continue
		}
		finding.Causes = append(finding.Causes, cause)
		finding.Evidence = append(finding.Evidence, models.Evidence{
			Metric: indicator.Metric,
			Value:  snapshot.Latest,
			Unit:   indicator.Unit,
			Source: "kpi-gateway",
		})
		if action.Action != "" {
			finding.Actions = append(finding.Actions, action)
		}
		if cause.Confidence > finding.Confidence {
			finding.Confidence = cause.Confidence
		}
	}

	return finding, nil
}

func (a *Purchasing) interpret(indicator kpi.Indicator, snapshot kpi.Snapshot, supplier string) (models.Cause, models.Action) {
	confidence := kpi.Clamp(0.4+math.Abs(snapshot.Score)/8, 0, 0.9)

	switch indicator.Metric {
	case "custo_medio":
		if snapshot.Score <= 0 {
			return models.Cause{}, models.Action{}
		}
		cause := fmt.Sprintf("Aumento de %.1f%% no custo médio de compra pressionando a margem", math.Abs(snapshot.ChangePct))
		if supplier != "" {
			cause = fmt.Sprintf("%s (fornecedor %s)", cause, supplier)
		}
		return models.Cause{Cause: cause, Metric: indicator.Metric, Confidence: confidence},
			models.Action{
				Action:    "Renegociar condições com os principais fornecedores",
				Rationale: "Custo médio de compra acima do padrão histórico",
			}
	case "prazo_entrega":
		if snapshot.Score <= 0 {
			return models.Cause{}, models.Action{}
		}
		return models.Cause{
				Cause:      fmt.Sprintf("Prazo médio de entrega %.1f%% acima do histórico, elevando custo de reposição", math.Abs(snapshot.ChangePct)),
				Metric:     indicator.Metric,
				Confidence: confidence * 0.9,
			},
			models.Action{
				Action:    "Avaliar fornecedores alternativos para itens críticos",
				Rationale: "Atraso recorrente encarece reposição emergencial",
			}
	default:
		return models.Cause{
			Cause:      DescribeDeviation(indicator, snapshot),
			Metric:     indicator.Metric,
			Confidence: confidence * 0.8,
		}, models.Action{}
	}
}
