package models

import "time"

// Severity is the alert criticality tier derived from deviation magnitude.
type Severity string

const (
	SeverityP0 Severity = "P0"
	SeverityP1 Severity = "P1"
	SeverityP2 Severity = "P2"
)

// Rank orders severities so P0 > P1 > P2 comparisons stay in one place.
func (s Severity) Rank() int {
	switch s {
	case SeverityP0:
		return 3
	case SeverityP1:
		return 2
	case SeverityP2:
		return 1
	default:
		return 0
	}
}

// AlertStatus tracks the lifecycle of an IntelligentAlert. Transitions are
// forward-only: new -> investigating -> acknowledged -> resolved.
type AlertStatus string

const (
	AlertStatusNew           AlertStatus = "new"
	AlertStatusInvestigating AlertStatus = "investigating"
	AlertStatusAcknowledged  AlertStatus = "acknowledged"
	AlertStatusResolved      AlertStatus = "resolved"
)

// Rank orders alert statuses along the lifecycle.
func (s AlertStatus) Rank() int {
	switch s {
	case AlertStatusNew:
		return 0
	case AlertStatusInvestigating:
		return 1
	case AlertStatusAcknowledged:
		return 2
	case AlertStatusResolved:
		return 3
	default:
		return -1
	}
}

// Indicator names the monitored KPI an alert fired on.
type Indicator struct {
	Label string `json:"label"`
	Area  string `json:"area"`
}

// Variation snapshots the metric movement that triggered an alert.
// Frozen at creation; refreshed in place only for still-open alerts.
type Variation struct {
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
	Change   float64 `json:"change"`
	Unit     string  `json:"unit,omitempty"`
}

// Impact estimates the business effect of a deviation.
type Impact struct {
	Estimated string  `json:"estimated"`
	Financial float64 `json:"financial,omitempty"`
}

// IntelligentAlert records a detected KPI deviation. Alerts are never
// deleted, only status-transitioned.
type IntelligentAlert struct {
	ID            string      `json:"id"`
	Timestamp     time.Time   `json:"timestamp"`
	Indicator     Indicator   `json:"indicator"`
	Severity      Severity    `json:"severity"`
	Variation     Variation   `json:"variation"`
	Impact        Impact      `json:"impact"`
	ProbableCause string      `json:"probable_cause"`
	Confidence    int         `json:"confidence"`
	Status        AlertStatus `json:"status"`
	UpdatedAt     time.Time   `json:"updated_at"`
}
