package domain

import (
	"context"
)

// FeatureExtractor calls the external feature-extraction service.
type FeatureExtractor interface {
	ExtractFeatures(ctx context.Context, image []byte, filename string) ([]float64, error)
}

// Predictor calls the external linear-probe service.
type Predictor interface {
	Predict(ctx context.Context, features []float64) ([]PredictionRecord, error)
}

// ChatCompleter calls the external LLM completion endpoint and returns the
// full response; callers read choices[0].message.content.
type ChatCompleter interface {
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// MappingProvider yields the current section mapping together with its
// provenance (file or fallback).
type MappingProvider interface {
	Current() MappingResult
}

// ReportStore persists generation results as an individual file per report
// plus an append-only master index.
type ReportStore interface {
	Save(dataName, reportContent string) (individualPath, masterPath string, err error)
	GetRecent(limit int) ([]Report, error)
	Load(path string) (*Report, error)
}

// CaseStore persists one record per processed image and owns the
// verification state transitions.
type CaseStore interface {
	Create(image []byte, imageName string, features []float64, predictions []PredictionRecord, reportContent string) (string, error)
	Get(caseID string) (*Case, error)
	ListRecent(limit int) ([]CaseSummary, error)
	SetVerification(caseID string, status VerificationStatus, reason, verifiedBy string) (bool, error)
}
