package models

import "time"

// CaseSource records how an operational case was opened.
type CaseSource string

const (
	CaseSourceAlert   CaseSource = "alert"
	CaseSourceManual  CaseSource = "manual"
	CaseSourceRoutine CaseSource = "routine"
)

// CaseStatus is the investigation lifecycle of an operational case.
type CaseStatus string

const (
	CaseStatusOpen          CaseStatus = "aberto"
	CaseStatusInvestigating CaseStatus = "em_investigacao"
	CaseStatusValidated     CaseStatus = "validado"
	CaseStatusResolved      CaseStatus = "resolvido"
)

// HypothesisStatus tracks the review state of a single hypothesis.
type HypothesisStatus string

const (
	HypothesisPending   HypothesisStatus = "pending"
	HypothesisConfirmed HypothesisStatus = "confirmed"
	HypothesisRejected  HypothesisStatus = "rejected"
)

// Hypothesis is one candidate explanation under investigation in a case.
type Hypothesis struct {
	ID         string           `json:"id"`
	Hypothesis string           `json:"hypothesis"`
	Confidence float64          `json:"confidence"`
	Status     HypothesisStatus `json:"status"`
	Evidence   []string         `json:"evidence,omitempty"`
}

// EvidenceItem is an appended-only piece of supporting data on a case.
type EvidenceItem struct {
	Description string    `json:"description"`
	Metric      string    `json:"metric,omitempty"`
	Value       float64   `json:"value,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

// ChecklistItem is a validation step toggled independently of case status.
type ChecklistItem struct {
	ID   string `json:"id"`
	Item string `json:"item"`
	Done bool   `json:"done"`
}

// OperationalCase is a structured investigation record for a detected issue.
type OperationalCase struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title"`
	Source              CaseSource      `json:"source"`
	AlertID             string          `json:"alert_id,omitempty"`
	Timestamp           time.Time       `json:"timestamp"`
	Status              CaseStatus      `json:"status"`
	Hypotheses          []Hypothesis    `json:"hypotheses"`
	Evidence            []EvidenceItem  `json:"evidence,omitempty"`
	ValidationChecklist []ChecklistItem `json:"validation_checklist,omitempty"`
	UpdatedAt           time.Time       `json:"updated_at"`
}
