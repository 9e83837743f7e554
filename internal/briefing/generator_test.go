package briefing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pulsoview/maestro-engine/internal/kpi"
	"github.com/pulsoview/maestro-engine/internal/models"
)

type fakeAlerts struct{ alerts []models.IntelligentAlert }

func (f *fakeAlerts) ListSince(t time.Time) []models.IntelligentAlert { return f.alerts }

type fakeCases struct{ cases []models.OperationalCase }

func (f *fakeCases) ChangedSince(t time.Time) []models.OperationalCase { return f.cases }

type fakeGateway struct{ series map[string]models.TimeSeries }

func (f *fakeGateway) Query(ctx context.Context, area, metric string, window models.TimeWindow) (models.TimeSeries, error) {
	ts, ok := f.series[metric]
	if !ok {
		return models.TimeSeries{}, errors.New("unknown metric")
	}
	return ts, nil
}

func sampled(values ...float64) models.TimeSeries {
	ts := models.TimeSeries{}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		ts.Points = append(ts.Points, models.MetricPoint{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Value:     v,
		})
	}
	return ts
}

func TestGenerateBuildsDigest(t *testing.T) {
	gateway := &fakeGateway{series: map[string]models.TimeSeries{
		"margem_bruta": sampled(30, 31, 29, 30, 24),
	}}
	catalog := kpi.NewCatalog([]kpi.Indicator{
		{Area: "financeiro", Metric: "margem_bruta", Label: "Margem bruta", Unit: "%", Headline: true},
	})
	alerts := &fakeAlerts{alerts: []models.IntelligentAlert{
		{ID: "a1", Severity: models.SeverityP0},
		{ID: "a2", Severity: models.SeverityP2},
	}}
	cases := &fakeCases{cases: []models.OperationalCase{
		{ID: "c1", Status: models.CaseStatusInvestigating},
	}}

	g := NewGenerator(nil, gateway, catalog, alerts, cases, Config{Period: 24 * time.Hour})
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	b, err := g.Generate(context.Background(), now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(b.Alerts) != 2 || len(b.Cases) != 1 {
		t.Fatalf("digest should embed the period's alerts and cases, got %d/%d", len(b.Alerts), len(b.Cases))
	}
	if len(b.Headlines) != 1 || b.Headlines[0].Metric != "margem_bruta" {
		t.Fatalf("expected the headline delta, got %+v", b.Headlines)
	}
	if !strings.Contains(b.Summary, "críticos") {
		t.Fatalf("summary should call out critical alerts, got %q", b.Summary)
	}
	if !b.PeriodStart.Before(now) || !b.PeriodEnd.After(now) {
		t.Fatalf("period %s..%s must contain now", b.PeriodStart, b.PeriodEnd)
	}
}

func TestGenerateIdempotentPerPeriod(t *testing.T) {
	g := NewGenerator(nil, nil, nil, &fakeAlerts{}, &fakeCases{}, Config{Period: 24 * time.Hour})

	morning := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	nextDay := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)

	b1, _ := g.Generate(context.Background(), morning)
	b2, _ := g.Generate(context.Background(), evening)
	b3, _ := g.Generate(context.Background(), nextDay)

	if b1.ID != b2.ID {
		t.Fatalf("same period must yield the same briefing id: %s vs %s", b1.ID, b2.ID)
	}
	if b1.ID == b3.ID {
		t.Fatalf("different periods must yield different ids")
	}
}

func TestLatest(t *testing.T) {
	g := NewGenerator(nil, nil, nil, &fakeAlerts{}, &fakeCases{}, Config{})

	if _, ok := g.Latest(); ok {
		t.Fatalf("no briefing exists before the first generation")
	}
	b, _ := g.Generate(context.Background(), time.Now())
	latest, ok := g.Latest()
	if !ok || latest.ID != b.ID {
		t.Fatalf("latest should return the generated briefing")
	}
}

func TestSummaryQuietPeriod(t *testing.T) {
	g := NewGenerator(nil, nil, nil, &fakeAlerts{}, &fakeCases{}, Config{})
	b, _ := g.Generate(context.Background(), time.Now())
	if !strings.Contains(b.Summary, "Nenhum alerta") {
		t.Fatalf("quiet period summary unexpected: %q", b.Summary)
	}
}
