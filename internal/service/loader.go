package service

import (
	"encoding/json"
	"fmt"

	"github.com/cxr-report-server/internal/domain"
)

// requiredColumns are the fields every prediction payload must carry. The
// check is explicit rather than inferred from unmarshal zero values so a
// payload of the wrong shape fails loudly instead of producing empty rows.
var requiredColumns = []string{"uid", "item", "risk"}

// ParsePredictions converts a JSON-encoded array of prediction objects into
// a validated table. It performs no network or disk I/O and the same input
// always yields the same table.
func ParsePredictions(jsonData string) (*domain.PredictionTable, error) {
	if len(jsonData) == 0 {
		return nil, domain.NewValidationError("data", "prediction data is empty")
	}

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonData), &raw); err != nil {
		return nil, domain.NewValidationError("data", fmt.Sprintf("prediction data is not a valid JSON array: %v", err))
	}

	// Column-presence check: a required column must appear in every record.
	for _, column := range requiredColumns {
		for _, record := range raw {
			if _, ok := record[column]; !ok {
				return nil, &domain.SchemaError{Column: column}
			}
		}
	}

	var rows []domain.PredictionRecord
	if err := json.Unmarshal([]byte(jsonData), &rows); err != nil {
		return nil, domain.NewValidationError("data", fmt.Sprintf("prediction records have malformed values: %v", err))
	}

	return &domain.PredictionTable{Rows: rows}, nil
}
