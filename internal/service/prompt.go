package service

import (
	"fmt"

	"github.com/cxr-report-server/internal/domain"
)

// systemPrompt frames the model as a radiologist rephrasing the synopsis.
const systemPrompt = "You are an experienced and detail-oriented radiologist interpreting chest X-ray (CXR) images based on the AI-analyzed results. " +
	"Produce a concise, objective CXR report using short sentences and standard reporting conventions. " +
	"Read and digest the content of the AI-analyzed CXR report section by section before writing the corresponding section of your report."

// allLowSentence is the single-sentence report used when every item across
// all sections is low risk.
const allLowSentence = "No significant abnormality of the chest radiography could be identified."

// userPromptTemplate wraps the synopsis in the full instruction set. The
// wording is load-bearing: the completion endpoint is steered entirely by
// these instructions, so edits change report text for identical inputs.
const userPromptTemplate = `Given: AI-analyzed report with risk levels (low, middle, high) for various features.
[AI analyzed CXR report] %s

Instructions:
1. Read and understand the each feature section of the AI-analyzed report before writing the corresponding section of your report.
2. Use typical CXR terminology and follow the feature order in the report.
3. Write one short, clear sentence per line for better readability.
4. Do not use the terms 'low risk', 'middle risk', or 'high risk' in the report.
5. For low-risk items, do not mention them in the report.
6. For middle-risk items, mention the item in report and suggest further investigation.
7. For high-risk items, mention the item in report and use definitive language.
8. When items in a categories are all low risk, use only the provided standard sentence.
9. Omit 'patient' as a subject, omit the report title, and omit explanations.
10. Use 'No' for negative findings.
11. If Lung section contains middle risk or high risk features, directly report these features and omit the summary sentence (e.g., "No significant abnormality...").

Reporting guidelines:
- If there is a mix of risk levels across the categories, summarize and report the findings according to the instructions for low-risk, middle-risk, and high-risk items.
- Lung features: If all low risk, use 'No significant abnormality (no focal nodule/mass or consolidation) in both lungs could be seen.'
- Mediastinum: If all low risk, use 'The mediastinum shows normal appearance without evidence of focal bulging or widening.'
- Bones: If all low risk, use 'No definite fracture line or focal nodule in bone structures could be seen.'
- Cardiac silhouette: If low risk, use 'The cardiovascular silhouette is within normal limit.'
- Diagnosis: If all low risk, use 'No evidence of pleural effusion or pneumothorax.'
- Catheter and Implant: If all low risk, use 'No iatrogenic catheter or implant is noted.'
- If all items across all categories are low risk, write only '` + allLowSentence + `'

Report Template 1 (all items across all categories are low risk):
` + allLowSentence + `

1. **Organ**

    **Lung:**
    No significant abnormality (no focal nodule/mass or consolidation) in both lungs could be seen.

    **Mediastinum:**
    The mediastinum shows normal appearance without evidence of focal bulging or widening.

    **Bones:**
    No definite fracture line or focal nodule in bone structures could be seen.

    **Cardiac silhouette:**
    The cardiovascular silhouette is within normal limit.

2. **Diagnosis**

    No evidence of pleural effusion or pneumothorax.

3. **Catheter and Implant**

    No iatrogenic catheter or implant is noted.

Report Template 2 (mix of risk levels across the categories):
1. **Organ**

    **Lung:**
    Minimal {middle risk feature} in {right/left/bilateral} lungs.
    Mild {middle risk feature} over {right/left/bilateral} {upper/middle/lower} lung.
    {middle risk feature} is suspected.
    {high risk feature} in {right/left/bilateral} lungs.
    {high risk feature} over {right/left/bilateral} {upper/middle/lower} lung.
    {high risk feature} is noted.

    **Mediastinum**
    {middle risk feature} is suspected.
    {high risk feature} is noted.

    **Bones:**
    {middle risk feature} is suspected.
    {high risk feature} is noted.

    **Cardiac silhouette:**
    {high risk feature}.
    {middle risk feature}.

2. **Diagnosis**

    {high risk feature} is identified.
    {middle risk feature} is suspected.

3. **Catheter and Implant**

    S/P {high risk feature}
`

// BuildPrompt embeds the synopsis verbatim into the fixed two-message
// instruction template. It is a pure function of the synopsis text and the
// LLM configuration; stream is always false because the pipeline needs the
// complete text before persisting.
func BuildPrompt(synopsis string, cfg domain.LLMConfig) *domain.ChatRequest {
	return &domain.ChatRequest{
		Model: cfg.Model,
		Messages: []domain.ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userPromptTemplate, synopsis)},
		},
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
		Stream:      false,
	}
}
