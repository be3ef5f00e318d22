package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/cxr-report-server/internal/domain"
)

// LLMClient calls the chat-completions endpoint that phrases the synopsis
// as a report draft. Requests pass through a client-side rate limiter so a
// burst of uploads cannot exhaust the completion quota.
type LLMClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewLLMClient creates a new chat-completion client
func NewLLMClient(config domain.LLMConfig) *LLMClient {
	rps := config.RateLimit
	if rps <= 0 {
		rps = 1
	}
	return &LLMClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Complete sends the prompt payload and returns the parsed response. The
// pipeline reads choices[0].message.content; responses without choices are
// the caller's problem to reject.
func (c *LLMClient) Complete(ctx context.Context, chatReq *domain.ChatRequest) (*domain.ChatResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.NewUpstreamTransportError("completion", err)
	}

	payload, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewUpstreamTransportError("completion", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewUpstreamTransportError("completion", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewUpstreamStatusError("completion", resp.StatusCode, respBody)
	}

	var chatResp domain.ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse completion response: %w", err)
	}

	return &chatResp, nil
}
