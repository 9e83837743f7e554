// Package alerts watches the monitored KPI catalog and raises
// IntelligentAlert records independent of any user question.
package alerts

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/pulsoview/maestro-engine/internal/agents"
	"github.com/pulsoview/maestro-engine/internal/kpi"
	"github.com/pulsoview/maestro-engine/internal/metrics"
	"github.com/pulsoview/maestro-engine/internal/models"
)

// Thresholds classifies deviation magnitude (in standard deviations) into
// severity bands. Must satisfy P0 >= P1 >= P2.
type Thresholds struct {
	P0 float64
	P1 float64
	P2 float64
}

// Classify maps an absolute deviation score to a severity band. Below the
// P2 band no alert is warranted.
func (t Thresholds) Classify(score float64) (models.Severity, bool) {
	magnitude := math.Abs(score)
	switch {
	case magnitude >= t.P0:
		return models.SeverityP0, true
	case magnitude >= t.P1:
		return models.SeverityP1, true
	case magnitude >= t.P2:
		return models.SeverityP2, true
	default:
		return "", false
	}
}

// Engine runs the scheduled monitoring scan. Probable causes are derived
// statistically, never from the language capability, so alerting keeps
// working when the model is offline.
type Engine struct {
	logger     *slog.Logger
	gateway    kpi.Gateway
	catalog    *kpi.Catalog
	store      *Store
	thresholds Thresholds
	window     time.Duration
	now        func() time.Time
}

// NewEngine constructs the alert engine.
func NewEngine(logger *slog.Logger, gateway kpi.Gateway, catalog *kpi.Catalog, store *Store, thresholds Thresholds, window time.Duration) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Engine{
		logger:     logger,
		gateway:    gateway,
		catalog:    catalog,
		store:      store,
		thresholds: thresholds,
		window:     window,
		now:        time.Now,
	}
}

// Scan evaluates every monitored indicator once, creating alerts for new
// deviations and refreshing the snapshot of still-open ones. It returns the
// alerts created during this cycle.
func (e *Engine) Scan(ctx context.Context) ([]models.IntelligentAlert, error) {
	now := e.now().UTC()
	window := models.TimeWindow{Start: now.Add(-e.window), End: now}

	created := make([]models.IntelligentAlert, 0)
	for _, indicator := range e.catalog.All() {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		series, err := e.gateway.Query(ctx, indicator.Area, indicator.Metric, window)
		if err != nil {
			e.logger.Warn("scan query failed",
				slog.String("metric", indicator.Metric), slog.Any("error", err))
			continue
		}
		snapshot, ok := kpi.Analyze(series)
		if !ok {
			continue
		}
		severity, alerting := e.thresholds.Classify(snapshot.Score)
		if !alerting {
			continue
		}

		variation := models.Variation{
			Current:  snapshot.Latest,
			Previous: snapshot.Previous,
			Change:   snapshot.Latest - snapshot.Previous,
			Unit:     indicator.Unit,
		}
		impact := e.estimateImpact(indicator, snapshot, severity)

		if open, exists := e.store.OpenByIndicator(indicator.Label); exists {
			if err := e.store.Refresh(open.ID, variation, impact, now); err != nil {
				e.logger.Warn("alert refresh failed", slog.String("alert", open.ID), slog.Any("error", err))
			}
			continue
		}

		alert := models.IntelligentAlert{
			ID:            uuid.NewString(),
			Timestamp:     now,
			Indicator:     models.Indicator{Label: indicator.Label, Area: indicator.Area},
			Severity:      severity,
			Variation:     variation,
			Impact:        impact,
			ProbableCause: agents.DescribeDeviation(indicator, snapshot),
			Confidence:    int(math.Round(agents.DeviationConfidence(snapshot.Score) * 100)),
			Status:        models.AlertStatusNew,
			UpdatedAt:     now,
		}
		e.store.Insert(alert)
		created = append(created, alert)
		metrics.ObserveAlertCreated(string(severity))

		e.logger.Info("alert raised",
			slog.String("indicator", indicator.Label),
			slog.String("severity", string(severity)),
			slog.Float64("score", snapshot.Score))
	}

	return created, nil
}

// Run executes scan cycles on the given interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Scan(ctx); err != nil && ctx.Err() == nil {
				e.logger.Error("alert scan failed", slog.Any("error", err))
			}
		}
	}
}

func (e *Engine) estimateImpact(indicator kpi.Indicator, snapshot kpi.Snapshot, severity models.Severity) models.Impact {
	impact := models.Impact{}
	switch severity {
	case models.SeverityP0:
		impact.Estimated = "alto"
	case models.SeverityP1:
		impact.Estimated = "moderado"
	default:
		impact.Estimated = "baixo"
	}
	if indicator.UnitCost > 0 {
		impact.Financial = math.Abs(snapshot.Latest-snapshot.Mean) * indicator.UnitCost
	}
	return impact
}
