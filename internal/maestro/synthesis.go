package maestro

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/pulsoview/maestro-engine/internal/intent"
	"github.com/pulsoview/maestro-engine/internal/kpi"
	"github.com/pulsoview/maestro-engine/internal/models"
)

const (
	maxTopCauses = 5
	maxEvidence  = 8
	maxActions   = 5
)

func (m *Maestro) synthesize(question string, resolved models.Intent, findings []models.AgentFinding) models.OrchestratorResponse {
	causes := m.mergeCauses(findings)
	evidence := mergeEvidence(findings)
	actions := mergeActions(findings)

	topCauseConfidence := 0.0
	if len(causes) > 0 {
		topCauseConfidence = causes[0].Confidence
	}

	confidence := int(math.Round(kpi.Clamp(
		m.cfg.IntentWeight*resolved.Confidence+m.cfg.CauseWeight*topCauseConfidence,
		0, 1) * 100))

	return models.OrchestratorResponse{
		ID: uuid.NewString(),
		Synthesis: models.Synthesis{
			Executive:         executiveSummary(question, resolved, causes),
			TopCauses:         causes,
			NumericalEvidence: evidence,
			SuggestedActions:  actions,
			ValidationLinks:   validationLinks(resolved),
		},
		Confidence: confidence,
		RanAt:      m.now().UTC(),
	}
}

type rankedCause struct {
	cause    models.Cause
	priority int
}

// mergeCauses deduplicates causes by a case-insensitive normalized key and
// ranks them by descending confidence, ties broken by the owning agent's
// declared priority.
func (m *Maestro) mergeCauses(findings []models.AgentFinding) []models.Cause {
	byKey := make(map[string]rankedCause)
	order := make([]string, 0)

	for _, finding := range findings {
		priority := m.registry.PriorityOf(finding.AgentID)
		for _, cause := range finding.Causes {
			key := intent.Normalize(cause.Cause)
			if key == "" {
				continue
			}
			existing, seen := byKey[key]
			if !seen {
				byKey[key] = rankedCause{cause: cause, priority: priority}
				order = append(order, key)
				continue
			}
			if cause.Confidence > existing.cause.Confidence ||
				(cause.Confidence == existing.cause.Confidence && priority < existing.priority) {
				byKey[key] = rankedCause{cause: cause, priority: priority}
			}
		}
	}

	ranked := make([]rankedCause, 0, len(order))
	for _, key := range order {
		ranked = append(ranked, byKey[key])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].cause.Confidence != ranked[j].cause.Confidence {
			return ranked[i].cause.Confidence > ranked[j].cause.Confidence
		}
		return ranked[i].priority < ranked[j].priority
	})

	causes := make([]models.Cause, 0, len(ranked))
	for _, rc := range ranked {
		causes = append(causes, rc.cause)
		if len(causes) == maxTopCauses {
			break
		}
	}
	return causes
}

func mergeEvidence(findings []models.AgentFinding) []models.Evidence {
	seen := make(map[string]struct{})
	evidence := make([]models.Evidence, 0)
	for _, finding := range findings {
		for _, ev := range finding.Evidence {
			key := intent.Normalize(ev.Metric)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			evidence = append(evidence, ev)
			if len(evidence) == maxEvidence {
				return evidence
			}
		}
	}
	return evidence
}

func mergeActions(findings []models.AgentFinding) []models.Action {
	seen := make(map[string]struct{})
	actions := make([]models.Action, 0)
	for _, finding := range findings {
		for _, action := range finding.Actions {
			key := intent.Normalize(action.Action)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			actions = append(actions, action)
			if len(actions) == maxActions {
				return actions
			}
		}
	}
	return actions
}

// executiveSummary is templated, never model-generated, so synthesis works
// with the language capability fully offline.
func executiveSummary(question string, resolved models.Intent, causes []models.Cause) string {
	if resolved.Area == models.AreaUnknown {
		return fmt.Sprintf("Não foi possível identificar a área de negócio para %q. Reformule a pergunta ou selecione uma área no painel.", question)
	}
	if len(causes) == 0 {
		return fmt.Sprintf("Nenhum desvio relevante encontrado em %s para o período analisado.", resolved.Area)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Principal causa provável: %s (confiança %d%%).", causes[0].Cause, int(math.Round(causes[0].Confidence*100)))
	if len(causes) > 1 {
		fmt.Fprintf(&b, " Fator secundário: %s.", causes[1].Cause)
	}
	return b.String()
}

func validationLinks(resolved models.Intent) []models.ValidationLink {
	if resolved.Area == models.AreaUnknown {
		return nil
	}
	links := []models.ValidationLink{
		{
			Label: fmt.Sprintf("Ver indicadores de %s", resolved.Area),
			Path:  "/dashboard/" + resolved.Area,
		},
	}
	if resolved.Metric != "" {
		links = append(links, models.ValidationLink{
			Label: fmt.Sprintf("Detalhar %s", resolved.Metric),
			Path:  fmt.Sprintf("/dashboard/%s/%s", resolved.Area, resolved.Metric),
		})
	}
	return links
}
