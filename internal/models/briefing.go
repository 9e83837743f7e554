package models

import "time"

// KPIDelta is a headline indicator movement included in a briefing.
type KPIDelta struct {
	Label     string  `json:"label"`
	Area      string  `json:"area"`
	Metric    string  `json:"metric"`
	Current   float64 `json:"current"`
	Baseline  float64 `json:"baseline"`
	ChangePct float64 `json:"change_pct"`
	Unit      string  `json:"unit,omitempty"`
}

// Briefing is the periodic digest of alerts, cases and headline KPI deltas.
// For a given period it is idempotent: regenerating over the same underlying
// data yields the same digest.
type Briefing struct {
	ID          string             `json:"id"`
	PeriodStart time.Time          `json:"period_start"`
	PeriodEnd   time.Time          `json:"period_end"`
	GeneratedAt time.Time          `json:"generated_at"`
	Summary     string             `json:"summary"`
	Alerts      []IntelligentAlert `json:"alerts,omitempty"`
	Cases       []OperationalCase  `json:"cases,omitempty"`
	Headlines   []KPIDelta         `json:"headlines,omitempty"`
}
