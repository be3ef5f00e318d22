package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cxr-report-server/internal/domain"
)

// FilterSort returns the rows whose uid appears in featureIDs, reordered to
// match the id list exactly. The id list is treated as a total order and
// rows are sorted by their rank in it; rows with ids absent from the table
// are simply missing from the output, and duplicate-uid rows keep their
// original relative order.
func FilterSort(table *domain.PredictionTable, featureIDs []int) []domain.PredictionRecord {
	rank := make(map[int]int, len(featureIDs))
	for i, id := range featureIDs {
		if _, seen := rank[id]; !seen {
			rank[id] = i
		}
	}

	var filtered []domain.PredictionRecord
	for _, row := range table.Rows {
		if _, ok := rank[row.UID]; ok {
			filtered = append(filtered, row)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return rank[filtered[i].UID] < rank[filtered[j].UID]
	})

	return filtered
}

// BuildSynopsis renders the section-grouped plain-text synopsis of a
// prediction table. Sections appear in mapping order; each contributes a
// header line, one "item  risk" line per matching row, and a trailing blank
// line. A section with no matching rows still emits its header.
func BuildSynopsis(table *domain.PredictionTable, mapping domain.SectionMapping) string {
	var b strings.Builder

	for _, section := range mapping {
		fmt.Fprintf(&b, "%s:\n", section.Name)
		for _, row := range FilterSort(table, section.FeatureIDs) {
			fmt.Fprintf(&b, "%s  %s\n", row.Item, row.Risk)
		}
		b.WriteString("\n")
	}

	return b.String()
}
