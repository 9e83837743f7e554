package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pulsoview/maestro-engine/internal/alerts"
	"github.com/pulsoview/maestro-engine/internal/briefing"
	"github.com/pulsoview/maestro-engine/internal/cases"
	"github.com/pulsoview/maestro-engine/internal/maestro"
	"github.com/pulsoview/maestro-engine/internal/metrics"
	"github.com/pulsoview/maestro-engine/internal/models"
	"github.com/pulsoview/maestro-engine/internal/ratelimit"
	"github.com/pulsoview/maestro-engine/internal/utils"
)

// Handlers binds the engine components to HTTP routes.
type Handlers struct {
	logger   *slog.Logger
	maestro  *maestro.Maestro
	alerts   *alerts.Store
	cases    *cases.Manager
	briefing *briefing.Generator
	limiter  *ratelimit.PerSubject
	latency  *utils.LatencyTracker
}

// NewHandlers wires the handler set. limiter may be nil to disable inbound
// rate limiting.
func NewHandlers(logger *slog.Logger, m *maestro.Maestro, alertStore *alerts.Store, caseManager *cases.Manager, briefings *briefing.Generator, limiter *ratelimit.PerSubject) *Handlers {
	return &Handlers{
		logger:   logger,
		maestro:  m,
		alerts:   alertStore,
		cases:    caseManager,
		briefing: briefings,
		limiter:  limiter,
		latency:  utils.NewLatencyTracker(512),
	}
}

// Register attaches all routes to the router.
func (h *Handlers) Register(router *mux.Router) {
	router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/ask", h.handleAsk).Methods(http.MethodPost)
	v1.HandleFunc("/alerts", h.handleListAlerts).Methods(http.MethodGet)
	v1.HandleFunc("/cases", h.handleListCases).Methods(http.MethodGet)
	v1.HandleFunc("/cases", h.handleOpenCase).Methods(http.MethodPost)
	v1.HandleFunc("/cases/validate", h.handleValidateHypothesis).Methods(http.MethodPost)
	v1.HandleFunc("/cases/{id}", h.handleGetCase).Methods(http.MethodGet)
	v1.HandleFunc("/cases/{id}/checklist", h.handleToggleChecklist).Methods(http.MethodPost)
	v1.HandleFunc("/cases/{id}/evidence", h.handleAddEvidence).Methods(http.MethodPost)
	v1.HandleFunc("/cases/{id}/resolve", h.handleResolveCase).Methods(http.MethodPost)
	v1.HandleFunc("/briefings/latest", h.handleLatestBriefing).Methods(http.MethodGet)
}

type askRequest struct {
	Question string                 `json:"question"`
	Context  models.QuestionContext `json:"context"`
}

func (h *Handlers) handleAsk(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow(subjectFor(r), 1) {
		metrics.ObserveRateLimitDenial("inbound")
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "limite de requisições atingido, tente novamente em instantes")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ObserveQuestion(0, metrics.OutcomeRejected)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	resp, err := h.maestro.Answer(r.Context(), req.Question, req.Context)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, maestro.ErrEmptyQuestion) {
			metrics.ObserveQuestion(elapsed, metrics.OutcomeRejected)
			writeError(w, http.StatusBadRequest, "question must not be empty")
			return
		}
		metrics.ObserveQuestion(elapsed, metrics.OutcomeError)
		h.logger.Error("answer failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	metrics.ObserveQuestion(elapsed, metrics.OutcomeSuccess)
	h.latency.Observe(elapsed)
	h.logger.Info("question answered",
		slog.String("response", resp.ID),
		slog.Int("confidence", resp.Confidence),
		slog.Duration("elapsed", elapsed),
		slog.Duration("p95", h.latency.Percentile(95)))
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	filter := alerts.Filter{
		Severity: models.Severity(r.URL.Query().Get("severity")),
		Query:    r.URL.Query().Get("q"),
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := utils.ParseRFC3339(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.Since = since
	}
	writeJSON(w, http.StatusOK, h.alerts.List(filter))
}

func (h *Handlers) handleListCases(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cases.List())
}

func (h *Handlers) handleGetCase(w http.ResponseWriter, r *http.Request) {
	c, err := h.cases.Get(mux.Vars(r)["id"])
	if err != nil {
		writeCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type openCaseRequest struct {
	Title   string            `json:"title"`
	Source  models.CaseSource `json:"source"`
	AlertID string            `json:"alert_id"`
}

func (h *Handlers) handleOpenCase(w http.ResponseWriter, r *http.Request) {
	var req openCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := h.cases.Open(cases.OpenRequest{
		Title:   req.Title,
		Source:  req.Source,
		AlertID: req.AlertID,
	})
	if err != nil {
		if errors.Is(err, alerts.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type validateRequest struct {
	CaseID       string `json:"case_id"`
	HypothesisID string `json:"hypothesis_id"`
	Confirmed    bool   `json:"confirmed"`
}

func (h *Handlers) handleValidateHypothesis(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := h.cases.ValidateHypothesis(req.CaseID, req.HypothesisID, req.Confirmed)
	if err != nil {
		writeCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type checklistRequest struct {
	ItemID string `json:"item_id"`
	Done   bool   `json:"done"`
}

func (h *Handlers) handleToggleChecklist(w http.ResponseWriter, r *http.Request) {
	var req checklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := h.cases.ToggleChecklist(mux.Vars(r)["id"], req.ItemID, req.Done)
	if err != nil {
		writeCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type evidenceRequest struct {
	Description string  `json:"description"`
	Metric      string  `json:"metric"`
	Value       float64 `json:"value"`
}

func (h *Handlers) handleAddEvidence(w http.ResponseWriter, r *http.Request) {
	var req evidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := h.cases.AddEvidence(mux.Vars(r)["id"], models.EvidenceItem{
		Description: req.Description,
		Metric:      req.Metric,
		Value:       req.Value,
	})
	if err != nil {
		writeCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) handleResolveCase(w http.ResponseWriter, r *http.Request) {
	c, err := h.cases.Resolve(mux.Vars(r)["id"])
	if err != nil {
		writeCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) handleLatestBriefing(w http.ResponseWriter, r *http.Request) {
	b, ok := h.briefing.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no briefing generated yet")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// subjectFor picks the rate-limit key: the dashboard session when present,
// the remote address otherwise.
func subjectFor(r *http.Request) string {
	if session := r.Header.Get("X-Session-ID"); session != "" {
		return session
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeCaseError(w http.ResponseWriter, err error) {
	if errors.Is(err, cases.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusConflict, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
