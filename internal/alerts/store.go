package alerts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pulsoview/maestro-engine/internal/models"
)

// ErrNotFound signals an unknown alert id.
var ErrNotFound = errors.New("alert not found")

// Filter narrows alert listings. Zero values match everything.
type Filter struct {
	Severity models.Severity
	// Query is a free-text match on indicator label and probable cause.
	Query string
	// Since keeps only alerts created or updated after this instant.
	Since time.Time
}

// Store keeps alerts in memory. Alerts are never deleted, only
// status-transitioned; creation-time fields stay frozen outside the
// explicit open-alert refresh path.
type Store struct {
	mu     sync.RWMutex
	alerts map[string]*models.IntelligentAlert
	order  []string
}

// NewStore creates an empty alert store.
func NewStore() *Store {
	return &Store{alerts: make(map[string]*models.IntelligentAlert)}
}

// Insert registers a new alert.
func (s *Store) Insert(alert models.IntelligentAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := alert
	s.alerts[alert.ID] = &copied
	s.order = append(s.order, alert.ID)
}

// Get returns the alert for id or ErrNotFound.
func (s *Store) Get(id string) (models.IntelligentAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alert, ok := s.alerts[id]
	if !ok {
		return models.IntelligentAlert{}, ErrNotFound
	}
	return *alert, nil
}

// List returns alerts matching the filter, newest first.
func (s *Store) List(filter Filter) []models.IntelligentAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.IntelligentAlert, 0, len(s.order))
	for _, id := range s.order {
		alert := s.alerts[id]
		if filter.Severity != "" && alert.Severity != filter.Severity {
			continue
		}
		if !matchesQuery(*alert, filter.Query) {
			continue
		}
		if !filter.Since.IsZero() && !alert.UpdatedAt.After(filter.Since) {
			continue
		}
		out = append(out, *alert)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// ListSince returns alerts created or updated after t.
func (s *Store) ListSince(t time.Time) []models.IntelligentAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.IntelligentAlert, 0)
	for _, id := range s.order {
		alert := s.alerts[id]
		if alert.UpdatedAt.After(t) {
			out = append(out, *alert)
		}
	}
	return out
}

// OpenByIndicator finds a non-resolved alert for the given indicator label.
func (s *Store) OpenByIndicator(label string) (models.IntelligentAlert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		alert := s.alerts[id]
		if alert.Indicator.Label == label && alert.Status != models.AlertStatusResolved {
			return *alert, true
		}
	}
	return models.IntelligentAlert{}, false
}

// Refresh updates the variation/impact snapshot of a still-open alert.
func (s *Store) Refresh(id string, variation models.Variation, impact models.Impact, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return ErrNotFound
	}
	if alert.Status == models.AlertStatusResolved {
		return fmt.Errorf("alert %s already resolved", id)
	}
	alert.Variation = variation
	alert.Impact = impact
	alert.UpdatedAt = now
	return nil
}

// Transition moves an alert along its lifecycle. Backward transitions are
// rejected; transitioning to the current status is a no-op.
func (s *Store) Transition(id string, status models.AlertStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return ErrNotFound
	}
	if status.Rank() < alert.Status.Rank() {
		return fmt.Errorf("cannot transition alert %s from %s back to %s", id, alert.Status, status)
	}
	if status != alert.Status {
		alert.Status = status
		alert.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func matchesQuery(alert models.IntelligentAlert, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(alert.Indicator.Label), query) ||
		strings.Contains(strings.ToLower(alert.ProbableCause), query)
}
