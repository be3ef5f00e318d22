package external

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/cxr-report-server/internal/domain"
)

// ResilientClient wraps the three upstream clients with circuit breakers.
// Each call remains a single attempt from the caller's perspective: an open
// breaker surfaces as an upstream error, it never retries.
type ResilientClient struct {
	features *FeatureClient
	probe    *ProbeClient
	llm      *LLMClient

	featuresBreaker *gobreaker.CircuitBreaker
	probeBreaker    *gobreaker.CircuitBreaker
	llmBreaker      *gobreaker.CircuitBreaker
}

// NewResilientClient creates circuit-breaker-wrapped clients for the
// feature-extraction, linear-probe, and completion services.
func NewResilientClient(inference domain.InferenceConfig, llm domain.LLMConfig, logger *logrus.Logger) *ResilientClient {
	newBreaker := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Circuit breaker state changed")
			},
		})
	}

	return &ResilientClient{
		features:        NewFeatureClient(inference),
		probe:           NewProbeClient(inference),
		llm:             NewLLMClient(llm),
		featuresBreaker: newBreaker("feature-extraction"),
		probeBreaker:    newBreaker("linear-probe"),
		llmBreaker:      newBreaker("completion"),
	}
}

// ExtractFeatures implements domain.FeatureExtractor with breaker
// protection.
func (r *ResilientClient) ExtractFeatures(ctx context.Context, image []byte, filename string) ([]float64, error) {
	result, err := r.featuresBreaker.Execute(func() (interface{}, error) {
		return r.features.ExtractFeatures(ctx, image, filename)
	})
	if err != nil {
		return nil, breakerError("feature extraction", err)
	}
	return result.([]float64), nil
}

// Predict implements domain.Predictor with breaker protection.
func (r *ResilientClient) Predict(ctx context.Context, features []float64) ([]domain.PredictionRecord, error) {
	result, err := r.probeBreaker.Execute(func() (interface{}, error) {
		return r.probe.Predict(ctx, features)
	})
	if err != nil {
		return nil, breakerError("prediction", err)
	}
	return result.([]domain.PredictionRecord), nil
}

// Complete implements domain.ChatCompleter with breaker protection.
func (r *ResilientClient) Complete(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	result, err := r.llmBreaker.Execute(func() (interface{}, error) {
		return r.llm.Complete(ctx, req)
	})
	if err != nil {
		return nil, breakerError("completion", err)
	}
	return result.(*domain.ChatResponse), nil
}

// breakerError keeps upstream errors intact and labels open-breaker
// rejections with the stage they belong to.
func breakerError(stage string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.NewUpstreamTransportError(stage, err)
	}
	return err
}
