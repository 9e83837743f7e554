package kpi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pulsoview/maestro-engine/internal/models"
	"github.com/pulsoview/maestro-engine/internal/utils"
)

func TestHTTPGatewayQuery(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"unit": "%",
			"series": [
				{"timestamp": "2026-03-10T10:00:00Z", "value": 30.5},
				{"timestamp": "2026-03-10T11:00:00Z", "value": 29.8}
			]
		}`))
	}))
	defer server.Close()

	gateway := NewHTTPGateway(server.URL, "/api/v1/kpis/query", 2*time.Second)
	window := models.TimeWindow{
		Start: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	series, err := gateway.Query(context.Background(), "financeiro", "margem_bruta", window)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if gotPath != "/api/v1/kpis/query" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotPayload["area"] != "financeiro" || gotPayload["metric"] != "margem_bruta" {
		t.Fatalf("unexpected payload %+v", gotPayload)
	}
	if series.Unit != "%" || len(series.Points) != 2 {
		t.Fatalf("unexpected series %+v", series)
	}
	if series.Points[1].Value != 29.8 {
		t.Fatalf("unexpected point %+v", series.Points[1])
	}
}

func TestHTTPGatewayErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	gateway := NewHTTPGateway(server.URL, "", time.Second)
	if _, err := gateway.Query(context.Background(), "vendas", "conversao", models.TimeWindow{}); err == nil {
		t.Fatalf("non-200 response must surface as an error")
	}
}

func TestHTTPGatewayUnconfigured(t *testing.T) {
	gateway := NewHTTPGateway("", "", time.Second)
	if _, err := gateway.Query(context.Background(), "vendas", "conversao", models.TimeWindow{}); err == nil {
		t.Fatalf("unconfigured gateway must fail fast")
	}
}

func TestHTTPGatewayErrorsCarryOperation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	gateway := NewHTTPGateway(server.URL, "", time.Second)
	_, err := gateway.Query(context.Background(), "vendas", "conversao", models.TimeWindow{})

	var opErr *utils.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("gateway errors should be operation-tagged, got %v", err)
	}
	if opErr.Op != "kpi.query" {
		t.Fatalf("unexpected operation %q", opErr.Op)
	}
}
