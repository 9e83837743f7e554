// Package cases tracks operational investigation cases through their
// hypothesis-validation workflow.
package cases

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsoview/maestro-engine/internal/models"
)

// ErrNotFound signals an unknown case or hypothesis id.
var ErrNotFound = errors.New("case not found")

// AlertSource is the slice of the alert store the case manager needs: it
// seeds hypotheses from an alert's probable cause and flips the alert to
// investigating once a case is opened against it.
type AlertSource interface {
	Get(id string) (models.IntelligentAlert, error)
	Transition(id string, status models.AlertStatus) error
}

// OpenRequest describes how a new case should be created.
type OpenRequest struct {
	Title   string
	Source  models.CaseSource
	AlertID string
	// ExtraCauses adds agent-style candidate causes as pending hypotheses.
	ExtraCauses []models.Cause
}

// Manager owns the case store. Writes to the same case are serialized per
// case id; different cases proceed concurrently.
type Manager struct {
	logger *slog.Logger
	alerts AlertSource
	now    func() time.Time

	mu    sync.RWMutex
	cases map[string]*caseEntry
}

type caseEntry struct {
	mu sync.Mutex
	c  models.OperationalCase
}

// NewManager constructs the case manager. alerts may be nil when cases are
// only opened manually.
func NewManager(logger *slog.Logger, alerts AlertSource) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger,
		alerts: alerts,
		now:    time.Now,
		cases:  make(map[string]*caseEntry),
	}
}

// Open creates a case in the aberto state, seeding hypotheses from the
// source alert's probable cause (when present) plus any extra candidates.
func (m *Manager) Open(req OpenRequest) (models.OperationalCase, error) {
	if req.Title == "" {
		return models.OperationalCase{}, fmt.Errorf("case title is required")
	}
	if req.Source == "" {
		req.Source = models.CaseSourceManual
	}

	now := m.now().UTC()
	c := models.OperationalCase{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Source:    req.Source,
		AlertID:   req.AlertID,
		Timestamp: now,
		Status:    models.CaseStatusOpen,
		UpdatedAt: now,
		ValidationChecklist: []models.ChecklistItem{
			{ID: uuid.NewString(), Item: "Conferir os dados do indicador na origem"},
			{ID: uuid.NewString(), Item: "Confirmar a causa com a área responsável"},
			{ID: uuid.NewString(), Item: "Registrar ação corretiva"},
		},
	}

	if req.AlertID != "" {
		if m.alerts == nil {
			return models.OperationalCase{}, fmt.Errorf("alert source not configured")
		}
		alert, err := m.alerts.Get(req.AlertID)
		if err != nil {
			return models.OperationalCase{}, fmt.Errorf("open case from alert: %w", err)
		}
		if alert.ProbableCause != "" {
			c.Hypotheses = append(c.Hypotheses, models.Hypothesis{
				ID:         uuid.NewString(),
				Hypothesis: alert.ProbableCause,
				Confidence: float64(alert.Confidence) / 100,
				Status:     models.HypothesisPending,
			})
		}
		if err := m.alerts.Transition(req.AlertID, models.AlertStatusInvestigating); err != nil {
			// Already past investigating is fine; anything else is worth a log line.
			m.logger.Debug("alert transition skipped", slog.String("alert", req.AlertID), slog.Any("error", err))
		}
	}

	for _, cause := range req.ExtraCauses {
		if cause.Cause == "" {
			continue
		}
		c.Hypotheses = append(c.Hypotheses, models.Hypothesis{
			ID:         uuid.NewString(),
			Hypothesis: cause.Cause,
			Confidence: cause.Confidence,
			Status:     models.HypothesisPending,
		})
	}

	m.mu.Lock()
	m.cases[c.ID] = &caseEntry{c: c}
	m.mu.Unlock()

	m.logger.Info("case opened",
		slog.String("case", c.ID),
		slog.String("source", string(c.Source)),
		slog.Int("hypotheses", len(c.Hypotheses)))
	return cloneCase(c), nil
}

// Get returns a copy of the case for id or ErrNotFound.
func (m *Manager) Get(id string) (models.OperationalCase, error) {
	entry, err := m.entry(id)
	if err != nil {
		return models.OperationalCase{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneCase(entry.c), nil
}

// List returns all cases, newest first.
func (m *Manager) List() []models.OperationalCase {
	m.mu.RLock()
	entries := make([]*caseEntry, 0, len(m.cases))
	for _, entry := range m.cases {
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	out := make([]models.OperationalCase, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		out = append(out, cloneCase(entry.c))
		entry.mu.Unlock()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// ChangedSince returns cases opened or updated after t.
func (m *Manager) ChangedSince(t time.Time) []models.OperationalCase {
	out := make([]models.OperationalCase, 0)
	for _, c := range m.List() {
		if c.UpdatedAt.After(t) {
			out = append(out, c)
		}
	}
	return out
}

// ValidateHypothesis confirms or rejects one hypothesis. Reviewing any
// hypothesis moves an aberto case to em_investigacao; confirming one moves
// the case to validado. A resolvido case is closed to further validation.
func (m *Manager) ValidateHypothesis(caseID, hypothesisID string, confirmed bool) (models.OperationalCase, error) {
	entry, err := m.entry(caseID)
	if err != nil {
		return models.OperationalCase{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.c.Status == models.CaseStatusResolved {
		return models.OperationalCase{}, fmt.Errorf("case %s already resolved", caseID)
	}

	idx := -1
	for i := range entry.c.Hypotheses {
		if entry.c.Hypotheses[i].ID == hypothesisID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.OperationalCase{}, fmt.Errorf("hypothesis %s: %w", hypothesisID, ErrNotFound)
	}

	if confirmed {
		entry.c.Hypotheses[idx].Status = models.HypothesisConfirmed
	} else {
		entry.c.Hypotheses[idx].Status = models.HypothesisRejected
	}

	if confirmed {
		entry.c.Status = models.CaseStatusValidated
	} else if entry.c.Status == models.CaseStatusOpen {
		entry.c.Status = models.CaseStatusInvestigating
	}
	entry.c.UpdatedAt = m.now().UTC()

	return cloneCase(entry.c), nil
}

// ToggleChecklist flips one checklist item. Checklist state never affects
// case status.
func (m *Manager) ToggleChecklist(caseID, itemID string, done bool) (models.OperationalCase, error) {
	entry, err := m.entry(caseID)
	if err != nil {
		return models.OperationalCase{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	for i := range entry.c.ValidationChecklist {
		if entry.c.ValidationChecklist[i].ID == itemID {
			entry.c.ValidationChecklist[i].Done = done
			entry.c.UpdatedAt = m.now().UTC()
			return cloneCase(entry.c), nil
		}
	}
	return models.OperationalCase{}, fmt.Errorf("checklist item %s: %w", itemID, ErrNotFound)
}

// AddEvidence appends a supporting data point to the case. Evidence is
// append-only.
func (m *Manager) AddEvidence(caseID string, item models.EvidenceItem) (models.OperationalCase, error) {
	entry, err := m.entry(caseID)
	if err != nil {
		return models.OperationalCase{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	item.AddedAt = m.now().UTC()
	entry.c.Evidence = append(entry.c.Evidence, item)
	entry.c.UpdatedAt = item.AddedAt
	return cloneCase(entry.c), nil
}

// Resolve closes the case. Only an explicit external action lands here.
func (m *Manager) Resolve(caseID string) (models.OperationalCase, error) {
	entry, err := m.entry(caseID)
	if err != nil {
		return models.OperationalCase{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.c.Status = models.CaseStatusResolved
	entry.c.UpdatedAt = m.now().UTC()
	return cloneCase(entry.c), nil
}

func (m *Manager) entry(id string) (*caseEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.cases[id]
	if !ok {
		return nil, fmt.Errorf("case %s: %w", id, ErrNotFound)
	}
	return entry, nil
}

func cloneCase(c models.OperationalCase) models.OperationalCase {
	out := c
	out.Hypotheses = append([]models.Hypothesis(nil), c.Hypotheses...)
	for i := range out.Hypotheses {
		out.Hypotheses[i].Evidence = append([]string(nil), out.Hypotheses[i].Evidence...)
	}
	out.Evidence = append([]models.EvidenceItem(nil), c.Evidence...)
	out.ValidationChecklist = append([]models.ChecklistItem(nil), c.ValidationChecklist...)
	return out
}
