package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cxr-report-server/internal/domain"
)

// ReportService runs the report-generation pipeline: extract features,
// predict risks, build the synopsis and prompt, call the completion
// endpoint, and persist the result. Each run is independent; the stores
// are the only shared state.
type ReportService struct {
	logger    *logrus.Logger
	extractor domain.FeatureExtractor
	predictor domain.Predictor
	completer domain.ChatCompleter
	mapping   domain.MappingProvider
	reports   domain.ReportStore
	cases     domain.CaseStore
	llmConfig domain.LLMConfig
}

// NewReportService creates a new report service
func NewReportService(
	logger *logrus.Logger,
	extractor domain.FeatureExtractor,
	predictor domain.Predictor,
	completer domain.ChatCompleter,
	mapping domain.MappingProvider,
	reports domain.ReportStore,
	cases domain.CaseStore,
	llmConfig domain.LLMConfig,
) *ReportService {
	return &ReportService{
		logger:    logger,
		extractor: extractor,
		predictor: predictor,
		completer: completer,
		mapping:   mapping,
		reports:   reports,
		cases:     cases,
		llmConfig: llmConfig,
	}
}

// GenerateFromImage runs the full pipeline on raw image bytes. The three
// outbound calls are strictly sequential: each stage consumes the previous
// stage's output. When saveCase is set, a case record with the features and
// predictions attached is written alongside the report.
func (s *ReportService) GenerateFromImage(ctx context.Context, image []byte, filename string, saveCase bool) (*domain.PipelineResult, error) {
	startTime := time.Now()
	s.logger.WithFields(logrus.Fields{
		"filename":   filename,
		"image_size": len(image),
	}).Info("Starting image report generation")

	features, err := s.extractor.ExtractFeatures(ctx, image, filename)
	if err != nil {
		return nil, fmt.Errorf("feature extraction stage failed: %w", err)
	}
	s.logger.WithField("dimensions", len(features)).Debug("Features extracted")

	predictions, err := s.predictor.Predict(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("prediction stage failed: %w", err)
	}
	s.logger.WithField("items", len(predictions)).Debug("Predictions received")

	result, err := s.generate(ctx, &domain.PredictionTable{Rows: predictions})
	if err != nil {
		return nil, err
	}
	result.Features = features
	result.Predictions = predictions

	s.persist(result, filename, image, saveCase)

	s.logger.WithFields(logrus.Fields{
		"filename":        filename,
		"case_id":         result.CaseID,
		"saved":           result.Saved(),
		"processing_time": time.Since(startTime),
	}).Info("Image report generation completed")

	return result, nil
}

// GenerateFromPredictions runs the pipeline starting at the synopsis stage,
// for callers that already hold a prediction payload. Validation failures
// surface before the completion call is made.
func (s *ReportService) GenerateFromPredictions(ctx context.Context, predictionsJSON, dataName string) (*domain.PipelineResult, error) {
	startTime := time.Now()

	table, err := ParsePredictions(predictionsJSON)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"data_name": dataName,
		"rows":      table.Len(),
	}).Info("Starting report generation from predictions")

	result, err := s.generate(ctx, table)
	if err != nil {
		return nil, err
	}
	result.Predictions = table.Rows

	s.persist(result, dataName, nil, false)

	s.logger.WithFields(logrus.Fields{
		"data_name":       dataName,
		"saved":           result.Saved(),
		"processing_time": time.Since(startTime),
	}).Info("Report generation completed")

	return result, nil
}

// GenerateFromFeatures runs the pipeline starting at the prediction stage,
// for callers that already hold an extracted feature vector.
func (s *ReportService) GenerateFromFeatures(ctx context.Context, features []float64, dataName string) (*domain.PipelineResult, error) {
	startTime := time.Now()

	if len(features) == 0 {
		return nil, domain.NewValidationError("features", "feature vector is empty")
	}
	s.logger.WithFields(logrus.Fields{
		"data_name":  dataName,
		"dimensions": len(features),
	}).Info("Starting report generation from features")

	predictions, err := s.predictor.Predict(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("prediction stage failed: %w", err)
	}

	result, err := s.generate(ctx, &domain.PredictionTable{Rows: predictions})
	if err != nil {
		return nil, err
	}
	result.Features = features
	result.Predictions = predictions

	s.persist(result, dataName, nil, false)

	s.logger.WithFields(logrus.Fields{
		"data_name":       dataName,
		"saved":           result.Saved(),
		"processing_time": time.Since(startTime),
	}).Info("Report generation completed")

	return result, nil
}

// GenerateFromLegacy joins an older prediction export with its feature
// description table and feeds the result through the canonical prediction
// path. All validation happens before any network call.
func (s *ReportService) GenerateFromLegacy(ctx context.Context, legacyJSON string, descriptionCSV []byte, dataName string) (*domain.PipelineResult, error) {
	if len(legacyJSON) == 0 {
		return nil, domain.NewValidationError("predictions", "legacy prediction data is empty")
	}

	var legacy []LegacyPrediction
	if err := json.Unmarshal([]byte(legacyJSON), &legacy); err != nil {
		return nil, domain.NewValidationError("predictions",
			fmt.Sprintf("legacy prediction data is not a valid JSON array: %v", err))
	}

	descriptions, err := ParseDescriptionCSV(descriptionCSV)
	if err != nil {
		return nil, err
	}

	records, err := AnnotatePredictions(legacy, descriptions)
	if err != nil {
		return nil, err
	}

	payload, err := MarshalPredictions(records)
	if err != nil {
		return nil, err
	}

	return s.GenerateFromPredictions(ctx, payload, dataName)
}

// generate builds the synopsis and prompt from a validated table and calls
// the completion endpoint.
func (s *ReportService) generate(ctx context.Context, table *domain.PredictionTable) (*domain.PipelineResult, error) {
	mapping := s.mapping.Current()
	synopsis := BuildSynopsis(table, mapping.Mapping)

	prompt := BuildPrompt(synopsis, s.llmConfig)

	resp, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("completion stage failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewUpstreamTransportError("completion", fmt.Errorf("response contains no choices"))
	}

	return &domain.PipelineResult{
		ReportContent: resp.Choices[0].Message.Content,
		Synopsis:      synopsis,
		MappingSource: mapping.Source,
		GeneratedAt:   time.Now(),
	}, nil
}

// persist writes the report (always) and the case (when requested). A
// persistence failure never discards the generated report: it is recorded
// on the result so the caller learns generation succeeded but saving did
// not.
func (s *ReportService) persist(result *domain.PipelineResult, dataName string, image []byte, saveCase bool) {
	individualPath, _, err := s.reports.Save(dataName, result.ReportContent)
	if err != nil {
		s.logger.WithError(err).Error("Report generated but could not be saved")
		result.SaveError = err.Error()
	} else {
		result.ReportPath = individualPath
	}

	if saveCase && image != nil {
		caseID, err := s.cases.Create(image, dataName, result.Features, result.Predictions, result.ReportContent)
		if err != nil {
			s.logger.WithError(err).Error("Report generated but case could not be saved")
			if result.SaveError == "" {
				result.SaveError = err.Error()
			} else {
				result.SaveError = result.SaveError + "; " + err.Error()
			}
			return
		}
		result.CaseID = caseID
	}
}

// MarshalPredictions renders prediction records back to the canonical JSON
// array form consumed by ParsePredictions.
func MarshalPredictions(records []domain.PredictionRecord) (string, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("marshaling predictions: %w", err)
	}
	return string(data), nil
}
