// Package agents holds the domain-specialized evaluators the maestro fans
// out to, plus the registry that selects them by declared area.
package agents

import (
	"context"
	"sort"
	"strings"

	"github.com/pulsoview/maestro-engine/internal/models"
)

// Agent is a domain-specialized evaluator. Evaluate consumes a read-only
// intent and emits candidate causes, numerical evidence and suggested
// actions, each tagged with a local confidence. Agents must not share
// mutable state; a failing agent returns an error and contributes nothing.
type Agent interface {
	// ID identifies the agent in findings and logs.
	ID() string
	// Priority breaks ranking ties between causes of equal confidence.
	// Lower values win.
	Priority() int
	// Areas declares which business areas the agent handles.
	Areas() []string
	// Evaluate produces the agent's finding for one intent.
	Evaluate(ctx context.Context, intent models.Intent) (models.AgentFinding, error)
}

// Registry is the declared-domain dispatch table, built once at startup.
type Registry struct {
	agents   []Agent
	fallback Agent
	byArea   map[string][]Agent
}

// NewRegistry indexes agents by their declared areas. fallback runs when no
// registered agent covers the intent's area.
func NewRegistry(fallback Agent, agents ...Agent) *Registry {
	r := &Registry{
		agents:   agents,
		fallback: fallback,
		byArea:   make(map[string][]Agent),
	}
	for _, agent := range agents {
		for _, area := range agent.Areas() {
			key := strings.ToLower(area)
			r.byArea[key] = append(r.byArea[key], agent)
		}
	}
	for _, list := range r.byArea {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() < list[j].Priority()
		})
	}
	return r
}

// Match returns the agents whose declared domain intersects the area, or
// the fallback agent when none do. Unknown areas match nothing.
func (r *Registry) Match(area string) []Agent {
	if area == "" || area == models.AreaUnknown {
		return nil
	}
	if matched := r.byArea[strings.ToLower(area)]; len(matched) > 0 {
		return append([]Agent(nil), matched...)
	}
	if r.fallback == nil {
		return nil
	}
	return []Agent{r.fallback}
}

// PriorityOf reports the declared priority for an agent id, defaulting to
// the lowest rank for unknown ids so late-joining findings never outrank
// registered agents on ties.
func (r *Registry) PriorityOf(agentID string) int {
	for _, agent := range r.agents {
		if agent.ID() == agentID {
			return agent.Priority()
		}
	}
	if r.fallback != nil && r.fallback.ID() == agentID {
		return r.fallback.Priority()
	}
	return int(^uint(0) >> 1)
}
