package kpi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pulsoview/maestro-engine/internal/models"
	"github.com/pulsoview/maestro-engine/internal/utils"
)

// Gateway is the read-only KPI data source consumed by agents and the
// alert engine. Implementations are expected to be eventually consistent
// with the source of truth.
type Gateway interface {
	Query(ctx context.Context, area, metric string, window models.TimeWindow) (models.TimeSeries, error)
}

// HTTPGateway queries the KPI store over its JSON API.
type HTTPGateway struct {
	baseURL    string
	queryPath  string
	httpClient *http.Client
}

// NewHTTPGateway constructs a gateway client targeting the configured KPI store.
func NewHTTPGateway(baseURL, queryPath string, timeout time.Duration) *HTTPGateway {
	if queryPath == "" {
		queryPath = "/api/v1/kpis/query"
	}
	return &HTTPGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		queryPath: queryPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Query fetches the time series for one area/metric pair.
func (g *HTTPGateway) Query(ctx context.Context, area, metric string, window models.TimeWindow) (models.TimeSeries, error) {
	if g == nil || g.baseURL == "" {
		return models.TimeSeries{}, utils.E("kpi.query", "gateway not configured", nil)
	}

	payload := map[string]interface{}{
		"area":   area,
		"metric": metric,
		"start":  window.Start.Format(time.RFC3339),
		"end":    window.End.Format(time.RFC3339),
	}

	var response struct {
		Unit   string `json:"unit"`
		Series []struct {
			Timestamp time.Time `json:"timestamp"`
			Value     float64   `json:"value"`
		} `json:"series"`
	}

	if err := g.postJSON(ctx, g.baseURL+g.queryPath, payload, &response); err != nil {
		return models.TimeSeries{}, utils.E("kpi.query", area+"/"+metric, err)
	}

	series := models.TimeSeries{Area: area, Metric: metric, Unit: response.Unit}
	for _, point := range response.Series {
		series.Points = append(series.Points, models.MetricPoint{
			Timestamp: point.Timestamp,
			Value:     point.Value,
		})
	}
	return series, nil
}

func (g *HTTPGateway) postJSON(ctx context.Context, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
