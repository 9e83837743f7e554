package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pulsoview/maestro-engine/internal/utils"
)

// Classification is the structured output of the external language
// capability. Free-text model output never flows past this contract.
type Classification struct {
	Area       string
	Metric     string
	Entities   map[string]string
	Confidence float64
}

// Classifier is the external language capability. It may fail, time out or
// be absent entirely; callers must degrade to the heuristic matcher.
type Classifier interface {
	Classify(ctx context.Context, text, areaHint string) (Classification, error)
}

// HTTPClassifier calls the model provider's classify endpoint.
type HTTPClassifier struct {
	baseURL      string
	classifyPath string
	httpClient   *http.Client
}

// NewHTTPClassifier constructs a classifier client with a hard timeout.
func NewHTTPClassifier(baseURL, classifyPath string, timeout time.Duration) *HTTPClassifier {
	if classifyPath == "" {
		classifyPath = "/api/v1/classify"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPClassifier{
		baseURL:      strings.TrimRight(baseURL, "/"),
		classifyPath: classifyPath,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Classify posts the question text and decodes the structured intent.
func (c *HTTPClassifier) Classify(ctx context.Context, text, areaHint string) (Classification, error) {
	if c == nil || c.baseURL == "" {
		return Classification{}, utils.E("intent.classify", "model capability not configured", nil)
	}

	payload := map[string]interface{}{
		"text": text,
	}
	if areaHint != "" {
		payload["area_hint"] = areaHint
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Classification{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.classifyPath, bytes.NewReader(body))
	if err != nil {
		return Classification{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Classification{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Classification{}, utils.E("intent.classify",
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	var decoded struct {
		Intent struct {
			Area   string `json:"area"`
			Metric string `json:"metric"`
		} `json:"intent"`
		Entities   map[string]string `json:"entities"`
		Confidence float64           `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Classification{}, fmt.Errorf("decode response: %w", err)
	}

	return Classification{
		Area:       strings.ToLower(strings.TrimSpace(decoded.Intent.Area)),
		Metric:     strings.ToLower(strings.TrimSpace(decoded.Intent.Metric)),
		Entities:   decoded.Entities,
		Confidence: decoded.Confidence,
	}, nil
}
