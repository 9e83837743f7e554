// Package briefing produces the periodic executive digest of alerts, open
// cases and headline KPI movements.
package briefing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pulsoview/maestro-engine/internal/kpi"
	"github.com/pulsoview/maestro-engine/internal/metrics"
	"github.com/pulsoview/maestro-engine/internal/models"
	"github.com/pulsoview/maestro-engine/internal/utils"
)

// AlertLister is the alert-store slice the generator reads.
type AlertLister interface {
	ListSince(t time.Time) []models.IntelligentAlert
}

// CaseLister is the case-manager slice the generator reads.
type CaseLister interface {
	ChangedSince(t time.Time) []models.OperationalCase
}

// Config controls briefing cadence and the lookback used for headline deltas.
type Config struct {
	Period time.Duration
	Window time.Duration
}

func (c *Config) applyDefaults() {
	if c.Period <= 0 {
		c.Period = 24 * time.Hour
	}
	if c.Window <= 0 {
		c.Window = 7 * 24 * time.Hour
	}
}

// Generator assembles briefings on demand or on a fixed cadence.
type Generator struct {
	logger  *slog.Logger
	gateway kpi.Gateway
	catalog *kpi.Catalog
	alerts  AlertLister
	cases   CaseLister
	cfg     Config

	mu     sync.RWMutex
	latest *models.Briefing
}

// NewGenerator wires a briefing generator. gateway may be nil, in which case
// headline deltas are skipped.
func NewGenerator(logger *slog.Logger, gateway kpi.Gateway, catalog *kpi.Catalog, alerts AlertLister, cases CaseLister, cfg Config) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Generator{
		logger:  logger,
		gateway: gateway,
		catalog: catalog,
		alerts:  alerts,
		cases:   cases,
		cfg:     cfg,
	}
}

// Generate builds the briefing for the period containing now. The briefing
// id is derived from the period bounds, so regenerating over the same period
// yields the same id.
func (g *Generator) Generate(ctx context.Context, now time.Time) (models.Briefing, error) {
	periodStart := utils.TimeBucket(now, g.cfg.Period)
	periodEnd := periodStart.Add(g.cfg.Period)

	b := models.Briefing{
		ID:          briefingID(periodStart, periodEnd),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		GeneratedAt: now.UTC(),
	}

	if g.alerts != nil {
		b.Alerts = g.alerts.ListSince(periodStart)
	}
	if g.cases != nil {
		b.Cases = g.cases.ChangedSince(periodStart)
	}
	b.Headlines = g.headlineDeltas(ctx, now)
	b.Summary = summarize(b)

	g.mu.Lock()
	g.latest = &b
	g.mu.Unlock()

	metrics.ObserveBriefing()
	g.logger.Info("briefing generated",
		slog.String("briefing", b.ID),
		slog.Int("alerts", len(b.Alerts)),
		slog.Int("cases", len(b.Cases)),
		slog.Int("headlines", len(b.Headlines)))
	return b, nil
}

// Latest returns the most recently generated briefing, if any.
func (g *Generator) Latest() (models.Briefing, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.latest == nil {
		return models.Briefing{}, false
	}
	return *g.latest, true
}

// Run regenerates briefings once per period until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) {
	if _, err := g.Generate(ctx, time.Now()); err != nil {
		g.logger.Error("initial briefing failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(g.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if _, err := g.Generate(ctx, t); err != nil {
				g.logger.Error("briefing failed", slog.Any("error", err))
			}
		}
	}
}

func (g *Generator) headlineDeltas(ctx context.Context, now time.Time) []models.KPIDelta {
	if g.gateway == nil || g.catalog == nil {
		return nil
	}

	window := models.TimeWindow{Start: now.Add(-g.cfg.Window), End: now}
	out := make([]models.KPIDelta, 0)
	for _, indicator := range g.catalog.Headlines() {
		series, err := g.gateway.Query(ctx, indicator.Area, indicator.Metric, window)
		if err != nil {
			g.logger.Warn("headline query failed",
				slog.String("metric", indicator.Metric),
				slog.Any("error", err))
			continue
		}
		snapshot, ok := kpi.Analyze(series)
		if !ok {
			continue
		}
		out = append(out, models.KPIDelta{
			Label:     indicator.Label,
			Area:      indicator.Area,
			Metric:    indicator.Metric,
			Current:   snapshot.Latest,
			Baseline:  snapshot.Mean,
			ChangePct: snapshot.ChangePct,
			Unit:      indicator.Unit,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return abs(out[i].ChangePct) > abs(out[j].ChangePct)
	})
	return out
}

func briefingID(start, end time.Time) string {
	sum := sha256.Sum256([]byte(start.UTC().Format(time.RFC3339) + "|" + end.UTC().Format(time.RFC3339)))
	return "briefing-" + hex.EncodeToString(sum[:8])
}

func summarize(b models.Briefing) string {
	var sb strings.Builder

	critical := 0
	for _, alert := range b.Alerts {
		if alert.Severity == models.SeverityP0 {
			critical++
		}
	}

	switch {
	case len(b.Alerts) == 0:
		sb.WriteString("Nenhum alerta novo no período.")
	case critical > 0:
		fmt.Fprintf(&sb, "%d alertas no período, sendo %d críticos.", len(b.Alerts), critical)
	default:
		fmt.Fprintf(&sb, "%d alertas no período, nenhum crítico.", len(b.Alerts))
	}

	open := 0
	for _, c := range b.Cases {
		if c.Status != models.CaseStatusResolved {
			open++
		}
	}
	if open > 0 {
		fmt.Fprintf(&sb, " %d casos em andamento.", open)
	}

	if len(b.Headlines) > 0 {
		top := b.Headlines[0]
		direction := "subiu"
		if top.ChangePct < 0 {
			direction = "caiu"
		}
		fmt.Fprintf(&sb, " Maior movimento: %s %s %.1f%% em relação à média.",
			top.Label, direction, abs(top.ChangePct))
	}

	return sb.String()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
