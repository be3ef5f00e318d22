package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxr-report-server/internal/domain"
)

func testLLMConfig() domain.LLMConfig {
	return domain.LLMConfig{
		Model:       "gpt-4o-mini",
		Temperature: 0.15,
		TopP:        0.15,
		MaxTokens:   1000,
	}
}

func TestBuildPrompt_RequestShape(t *testing.T) {
	req := BuildPrompt("Lung:\nnodule  high\n\n", testLLMConfig())

	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.InDelta(t, 0.15, req.Temperature, 1e-9)
	assert.InDelta(t, 0.15, req.TopP, 1e-9)
	assert.Equal(t, 1000, req.MaxTokens)
	assert.False(t, req.Stream)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "user", req.Messages[1].Role)
}

func TestBuildPrompt_EmbedsSynopsisVerbatim(t *testing.T) {
	synopsis := "Lung:\nnodule  high\nconsolidation  middle\n\nBone:\n\n"
	req := BuildPrompt(synopsis, testLLMConfig())

	assert.Contains(t, req.Messages[1].Content, synopsis)
}

func TestBuildPrompt_IsPure(t *testing.T) {
	a := BuildPrompt("Lung:\n\n", testLLMConfig())
	b := BuildPrompt("Lung:\n\n", testLLMConfig())
	assert.Equal(t, a, b)
}

func TestBuildPrompt_InstructionContent(t *testing.T) {
	req := BuildPrompt("synopsis", testLLMConfig())
	user := req.Messages[1].Content

	// Per-section standard sentences must survive verbatim; downstream
	// reports quote them exactly.
	standardSentences := []string{
		"No significant abnormality (no focal nodule/mass or consolidation) in both lungs could be seen.",
		"The mediastinum shows normal appearance without evidence of focal bulging or widening.",
		"No definite fracture line or focal nodule in bone structures could be seen.",
		"The cardiovascular silhouette is within normal limit.",
		"No evidence of pleural effusion or pneumothorax.",
		"No iatrogenic catheter or implant is noted.",
		"No significant abnormality of the chest radiography could be identified.",
	}
	for _, sentence := range standardSentences {
		assert.Contains(t, user, sentence)
	}

	assert.Contains(t, user, "Do not use the terms 'low risk', 'middle risk', or 'high risk'")
	assert.Contains(t, user, "For low-risk items, do not mention them in the report.")
	assert.Contains(t, user, "Report Template 1")
	assert.Contains(t, user, "Report Template 2")

	system := req.Messages[0].Content
	assert.Contains(t, system, "radiologist")
	assert.False(t, strings.Contains(system, "%s"), "system prompt must not contain format verbs")
}
