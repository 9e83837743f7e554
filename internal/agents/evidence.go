package agents

import (
	"context"
	"log/slog"
	"math"

	"github.com/pulsoview/maestro-engine/internal/kpi"
	"github.com/pulsoview/maestro-engine/internal/models"
)

// Checker re-validates every cause/evidence pair against the KPI gateway
// after the other agents have finished. It only holds or lowers confidence,
// never raises it, and removes claims the data directly contradicts.
type Checker struct {
	logger  *slog.Logger
	gateway kpi.Gateway
	// tolerancePct is the relative difference within which a claim counts
	// as corroborated.
	tolerancePct float64
	// contradictionPct is the relative difference beyond which a claim is
	// discarded outright.
	contradictionPct float64
	// unverifiedFactor scales down claims no data point could corroborate.
	unverifiedFactor float64
}

// NewChecker constructs the evidence checker with default tolerances.
func NewChecker(logger *slog.Logger, gateway kpi.Gateway) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		logger:           logger,
		gateway:          gateway,
		tolerancePct:     0.05,
		contradictionPct: 0.5,
		unverifiedFactor: 0.6,
	}
}

// Check returns a copy of findings with confidences adjusted. The intent
// supplies the area and window claims are checked against.
func (c *Checker) Check(ctx context.Context, intent models.Intent, findings []models.AgentFinding) []models.AgentFinding {
	observed := make(map[string]*float64)

	checked := make([]models.AgentFinding, 0, len(findings))
	for _, finding := range findings {
		out := models.AgentFinding{AgentID: finding.AgentID, Actions: finding.Actions}

		for _, cause := range finding.Causes {
			verdict := c.verify(ctx, intent, cause, finding.Evidence, observed)
			switch verdict {
			case verdictContradicted:
				c.logger.Debug("cause contradicted by data, dropping",
					slog.String("agent", finding.AgentID), slog.String("metric", cause.Metric))
				continue
			case verdictUnverified:
				cause.Confidence *= c.unverifiedFactor
			}
			out.Causes = append(out.Causes, cause)
			if cause.Confidence > out.Confidence {
				out.Confidence = cause.Confidence
			}
		}

		for _, ev := range finding.Evidence {
			if c.evidenceSurvives(ev, out.Causes) {
				out.Evidence = append(out.Evidence, ev)
			}
		}

		if out.Confidence > finding.Confidence {
			out.Confidence = finding.Confidence
		}
		checked = append(checked, out)
	}
	return checked
}

type verdict int

const (
	verdictCorroborated verdict = iota
	verdictUnverified
	verdictContradicted
)

func (c *Checker) verify(ctx context.Context, intent models.Intent, cause models.Cause, evidence []models.Evidence, observed map[string]*float64) verdict {
	if cause.Metric == "" {
		return verdictUnverified
	}

	var claimed *float64
	for _, ev := range evidence {
		if ev.Metric == cause.Metric {
			v := ev.Value
			claimed = &v
			break
		}
	}
	if claimed == nil {
		return verdictUnverified
	}

	latest, ok := c.observe(ctx, intent, cause.Metric, observed)
	if !ok {
		return verdictUnverified
	}

	scale := math.Max(math.Abs(latest), 1e-9)
	diff := math.Abs(latest-*claimed) / scale
	switch {
	case diff <= c.tolerancePct:
		return verdictCorroborated
	case diff > c.contradictionPct:
		return verdictContradicted
	default:
		return verdictUnverified
	}
}

func (c *Checker) observe(ctx context.Context, intent models.Intent, metric string, cache map[string]*float64) (float64, bool) {
	if v, ok := cache[metric]; ok {
		if v == nil {
			return 0, false
		}
		return *v, true
	}

	series, err := c.gateway.Query(ctx, intent.Area, metric, intent.TimeWindow)
	if err != nil {
		c.logger.Debug("evidence check query failed", slog.String("metric", metric), slog.Any("error", err))
		cache[metric] = nil
		return 0, false
	}
	point, ok := series.Latest()
	if !ok {
		cache[metric] = nil
		return 0, false
	}
	v := point.Value
	cache[metric] = &v
	return v, true
}

func (c *Checker) evidenceSurvives(ev models.Evidence, causes []models.Cause) bool {
	for _, cause := range causes {
		if cause.Metric == "" || cause.Metric == ev.Metric {
			return true
		}
	}
	return false
}
