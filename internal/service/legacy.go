package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/cxr-report-server/internal/domain"
)

// LegacyPrediction is one row of the older prediction export, which carries
// only the risk result; item names live in a separate description table.
type LegacyPrediction struct {
	Result domain.RiskLevel `json:"Result"`
	Value  float64          `json:"value,omitempty"`
}

// FeatureDescription names one feature. Numbering is positional, starting
// at 1, matching the row order of the description table.
type FeatureDescription struct {
	Number int
	Name   string
}

// ParseDescriptionCSV reads a feature-description table. The CSV must have
// a header row containing a "name" column; other columns are ignored.
func ParseDescriptionCSV(data []byte) ([]FeatureDescription, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, domain.NewValidationError("description", fmt.Sprintf("description CSV is malformed: %v", err))
	}
	if len(records) < 2 {
		return nil, domain.NewValidationError("description", "description CSV has no data rows")
	}

	nameCol := -1
	for i, header := range records[0] {
		if strings.EqualFold(strings.TrimSpace(header), "name") {
			nameCol = i
			break
		}
	}
	if nameCol < 0 {
		return nil, domain.NewValidationError("description", "description CSV has no 'name' column")
	}

	descriptions := make([]FeatureDescription, 0, len(records)-1)
	for i, record := range records[1:] {
		if nameCol >= len(record) {
			return nil, domain.NewValidationError("description", fmt.Sprintf("description CSV row %d is short", i+2))
		}
		descriptions = append(descriptions, FeatureDescription{
			Number: i + 1,
			Name:   strings.TrimSpace(record[nameCol]),
		})
	}

	return descriptions, nil
}

// AnnotatePredictions joins legacy prediction rows with the description
// table by position, producing records that satisfy the standard loader
// contract. This is the input adapter for the older export format, not a
// second pipeline: its output feeds the same synopsis builder.
func AnnotatePredictions(predictions []LegacyPrediction, descriptions []FeatureDescription) ([]domain.PredictionRecord, error) {
	if len(predictions) == 0 {
		return nil, domain.NewValidationError("predictions", "legacy prediction set is empty")
	}
	if len(predictions) > len(descriptions) {
		return nil, domain.NewValidationError("predictions",
			fmt.Sprintf("description table has %d rows but predictions have %d", len(descriptions), len(predictions)))
	}

	records := make([]domain.PredictionRecord, 0, len(predictions))
	for i, p := range predictions {
		records = append(records, domain.PredictionRecord{
			UID:   descriptions[i].Number,
			Item:  descriptions[i].Name,
			Value: p.Value,
			Risk:  p.Result,
		})
	}

	return records, nil
}
