package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxr-report-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

const validMappingYAML = `sections:
  - name: Lung
    features: [8, 2, 3]
  - name: Cardiac Silhouette
    features: [14]
`

func TestMappingLoader_LoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sections.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validMappingYAML), 0o644))

	loader := NewMappingLoader(path, testLogger())
	result := loader.Current()

	assert.Equal(t, domain.MappingSourceFile, result.Source)
	require.Len(t, result.Mapping, 2)
	assert.Equal(t, "Lung", result.Mapping[0].Name)
	assert.Equal(t, []int{8, 2, 3}, result.Mapping[0].FeatureIDs)
	assert.Equal(t, "Cardiac Silhouette", result.Mapping[1].Name)
}

func TestMappingLoader_FallsBack(t *testing.T) {
	tests := []struct {
		name    string
		content string
		missing bool
	}{
		{name: "missing file", missing: true},
		{name: "invalid yaml", content: "sections: [unclosed"},
		{name: "no sections", content: "sections: []"},
		{name: "unnamed section", content: "sections:\n  - features: [1, 2]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sections.yaml")
			if !tt.missing {
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			}

			loader := NewMappingLoader(path, testLogger())
			result := loader.Current()

			assert.Equal(t, domain.MappingSourceFallback, result.Source)
			require.NotEmpty(t, result.Mapping)
			assert.Equal(t, "Lung", result.Mapping[0].Name)
		})
	}
}

func TestMappingLoader_FallbackMatchesShippedTaxonomy(t *testing.T) {
	loader := NewMappingLoader(filepath.Join(t.TempDir(), "nope.yaml"), testLogger())
	mapping := loader.Current().Mapping

	require.Len(t, mapping, 6)
	assert.Equal(t, "Lung", mapping[0].Name)
	assert.Equal(t, []int{8, 2, 3, 9, 10, 1, 5, 6}, mapping[0].FeatureIDs)
	assert.Equal(t, "Catheter/Implant", mapping[5].Name)
	assert.Equal(t, []int{14}, mapping[3].FeatureIDs)
}

func TestMappingLoader_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sections.yaml")
	loader := NewMappingLoader(path, testLogger())
	require.Equal(t, domain.MappingSourceFallback, loader.Current().Source)

	require.NoError(t, os.WriteFile(path, []byte(validMappingYAML), 0o644))
	loader.reload()

	result := loader.Current()
	assert.Equal(t, domain.MappingSourceFile, result.Source)
	assert.Len(t, result.Mapping, 2)
}
