package models

import "time"

// IntentSource identifies which resolver path produced an Intent.
type IntentSource string

const (
	IntentSourceModel     IntentSource = "model"
	IntentSourceHeuristic IntentSource = "heuristic"
)

// AreaUnknown marks questions that no resolver path could map to a business area.
const AreaUnknown = "unknown"

// TimeWindow bounds the KPI window a question or scan refers to.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// QuestionContext carries optional page context sent along with a question.
type QuestionContext struct {
	Area string `json:"area,omitempty"`
	Page string `json:"page,omitempty"`
}

// Intent is the structured interpretation of a free-text question. It is
// produced once per question and consumed read-only by every agent.
type Intent struct {
	Area       string            `json:"area"`
	Metric     string            `json:"metric,omitempty"`
	TimeWindow TimeWindow        `json:"time_window"`
	Entities   map[string]string `json:"entities,omitempty"`
	Confidence float64           `json:"confidence"`
	Source     IntentSource      `json:"source"`
}

// Cause is a candidate explanation emitted by an agent. Metric links the
// claim back to the indicator it was derived from so the evidence checker
// can corroborate it against the KPI gateway.
type Cause struct {
	Cause      string  `json:"cause"`
	Metric     string  `json:"metric,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Evidence is a numerical data point backing one or more causes.
type Evidence struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	Source string  `json:"source"`
}

// Action is a suggested follow-up emitted by an agent.
type Action struct {
	Action    string `json:"action"`
	Rationale string `json:"rationale,omitempty"`
}

// AgentFinding is the read-only output of a single agent evaluation.
type AgentFinding struct {
	AgentID    string     `json:"agent_id"`
	Causes     []Cause    `json:"causes,omitempty"`
	Evidence   []Evidence `json:"evidence,omitempty"`
	Actions    []Action   `json:"actions,omitempty"`
	Confidence float64    `json:"confidence"`
}

// ValidationLink points the caller at a dashboard surface where the
// synthesized claim can be inspected.
type ValidationLink struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// Synthesis is the merged, ranked answer built from agent findings.
type Synthesis struct {
	Executive         string           `json:"executive"`
	TopCauses         []Cause          `json:"top_causes"`
	NumericalEvidence []Evidence       `json:"numerical_evidence"`
	SuggestedActions  []Action         `json:"suggested_actions"`
	ValidationLinks   []ValidationLink `json:"validation_links"`
}

// OrchestratorResponse is the final answer for one question. Immutable once
// returned; cached under the request fingerprint.
type OrchestratorResponse struct {
	ID         string    `json:"id"`
	Synthesis  Synthesis `json:"synthesis"`
	Confidence int       `json:"confidence"`
	RanAt      time.Time `json:"ran_at"`
}
