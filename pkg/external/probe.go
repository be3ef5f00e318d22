package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cxr-report-server/internal/domain"
)

// ProbeClient calls the external linear-probe service, which maps a feature
// vector to per-feature risk predictions.
type ProbeClient struct {
	baseURL    string
	endpoint   string
	username   string
	password   string
	httpClient *http.Client
}

// NewProbeClient creates a new linear-probe client
func NewProbeClient(config domain.InferenceConfig) *ProbeClient {
	return &ProbeClient{
		baseURL:  config.BaseURL,
		endpoint: config.ProbeEndpoint,
		username: config.Username,
		password: config.Password,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Predict posts the feature vector as JSON and returns the prediction
// records.
func (c *ProbeClient) Predict(ctx context.Context, features []float64) ([]domain.PredictionRecord, error) {
	payload, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("failed to encode feature vector: %w", err)
	}

	url := c.baseURL + c.endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewUpstreamTransportError("prediction", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewUpstreamTransportError("prediction", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewUpstreamStatusError("prediction", resp.StatusCode, respBody)
	}

	var predictions []domain.PredictionRecord
	if err := json.Unmarshal(respBody, &predictions); err != nil {
		return nil, fmt.Errorf("failed to parse prediction response: %w", err)
	}

	return predictions, nil
}
