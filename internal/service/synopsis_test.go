package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxr-report-server/internal/domain"
)

func row(uid int, item string, risk domain.RiskLevel) domain.PredictionRecord {
	return domain.PredictionRecord{UID: uid, Item: item, Risk: risk}
}

func TestFilterSort(t *testing.T) {
	tests := []struct {
		name       string
		rows       []domain.PredictionRecord
		featureIDs []int
		wantItems  []string
	}{
		{
			name: "reorders to match id list",
			rows: []domain.PredictionRecord{
				row(3, "c", domain.RiskLow),
				row(1, "a", domain.RiskLow),
				row(2, "b", domain.RiskLow),
			},
			featureIDs: []int{1, 2, 3},
			wantItems:  []string{"a", "b", "c"},
		},
		{
			name: "table missing an id yields partial order",
			rows: []domain.PredictionRecord{
				row(3, "c", domain.RiskLow),
				row(1, "a", domain.RiskLow),
			},
			featureIDs: []int{1, 2, 3},
			wantItems:  []string{"a", "c"},
		},
		{
			name: "rows outside the id list are dropped",
			rows: []domain.PredictionRecord{
				row(1, "a", domain.RiskLow),
				row(99, "stray", domain.RiskHigh),
			},
			featureIDs: []int{1},
			wantItems:  []string{"a"},
		},
		{
			name: "duplicate uids keep input order",
			rows: []domain.PredictionRecord{
				row(2, "b-first", domain.RiskLow),
				row(1, "a", domain.RiskLow),
				row(2, "b-second", domain.RiskLow),
			},
			featureIDs: []int{2, 1},
			wantItems:  []string{"b-first", "b-second", "a"},
		},
		{
			name:       "empty table",
			rows:       nil,
			featureIDs: []int{1, 2},
			wantItems:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterSort(&domain.PredictionTable{Rows: tt.rows}, tt.featureIDs)

			var items []string
			for _, r := range got {
				items = append(items, r.Item)
			}
			assert.Equal(t, tt.wantItems, items)
		})
	}
}

func TestBuildSynopsis(t *testing.T) {
	mapping := domain.SectionMapping{
		{Name: "Lung", FeatureIDs: []int{8, 2}},
		{Name: "Cardiac Silhouette", FeatureIDs: []int{14}},
	}
	table := &domain.PredictionTable{Rows: []domain.PredictionRecord{
		row(2, "consolidation", domain.RiskMiddle),
		row(8, "nodule", domain.RiskHigh),
		row(14, "cardiomegaly", domain.RiskLow),
	}}

	got := BuildSynopsis(table, mapping)

	want := "Lung:\n" +
		"nodule  high\n" +
		"consolidation  middle\n" +
		"\n" +
		"Cardiac Silhouette:\n" +
		"cardiomegaly  low\n" +
		"\n"
	assert.Equal(t, want, got)
}

func TestBuildSynopsis_EmptySectionKeepsHeader(t *testing.T) {
	mapping := domain.SectionMapping{
		{Name: "Lung", FeatureIDs: []int{8}},
		{Name: "Bone", FeatureIDs: []int{20}},
	}
	table := &domain.PredictionTable{Rows: []domain.PredictionRecord{
		row(8, "nodule", domain.RiskLow),
	}}

	got := BuildSynopsis(table, mapping)

	assert.Contains(t, got, "Bone:\n\n")
	assert.Contains(t, got, "Lung:\nnodule  low\n\n")
}

func TestBuildSynopsis_SectionOrderFollowsMapping(t *testing.T) {
	mapping := domain.SectionMapping{
		{Name: "Diagnosis", FeatureIDs: []int{7}},
		{Name: "Lung", FeatureIDs: []int{8}},
	}
	table := &domain.PredictionTable{Rows: []domain.PredictionRecord{
		row(8, "nodule", domain.RiskLow),
		row(7, "effusion", domain.RiskLow),
	}}

	got := BuildSynopsis(table, mapping)

	diagIdx := indexOf(t, got, "Diagnosis:")
	lungIdx := indexOf(t, got, "Lung:")
	assert.Less(t, diagIdx, lungIdx)
}

func indexOf(t *testing.T, s, sub string) int {
	t.Helper()
	idx := strings.Index(s, sub)
	require.GreaterOrEqual(t, idx, 0, "%q not found in synopsis", sub)
	return idx
}
