package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/cxr-report-server/internal/domain"
)

// FeatureClient calls the external feature-extraction service, which
// accepts a chest X-ray image and returns a numeric feature vector.
type FeatureClient struct {
	baseURL    string
	endpoint   string
	username   string
	password   string
	httpClient *http.Client
}

// NewFeatureClient creates a new feature-extraction client
func NewFeatureClient(config domain.InferenceConfig) *FeatureClient {
	return &FeatureClient{
		baseURL:  config.BaseURL,
		endpoint: config.FeaturesEndpoint,
		username: config.Username,
		password: config.Password,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// ExtractFeatures uploads the image as multipart form data and returns the
// extracted feature vector. A single attempt is made; failures are wrapped
// with the stage name and response context.
func (c *FeatureClient) ExtractFeatures(ctx context.Context, image []byte, filename string) ([]float64, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write image to form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	url := c.baseURL + c.endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create feature request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewUpstreamTransportError("feature extraction", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewUpstreamTransportError("feature extraction", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewUpstreamStatusError("feature extraction", resp.StatusCode, respBody)
	}

	var features []float64
	if err := json.Unmarshal(respBody, &features); err != nil {
		return nil, fmt.Errorf("failed to parse feature vector: %w", err)
	}

	return features, nil
}
