package domain

import (
	"time"
)

// RiskLevel is the ordinal category assigned to a feature by the
// linear-probe model.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMiddle RiskLevel = "middle"
	RiskHigh   RiskLevel = "high"
)

// PredictionRecord represents one row of model output for one clinical
// feature. Records are constructed fresh from each prediction response and
// never mutated afterwards.
type PredictionRecord struct {
	UID      int       `json:"uid"`
	Item     string    `json:"item"`
	Value    float64   `json:"value"`
	Risk     RiskLevel `json:"risk"`
	Category string    `json:"category,omitempty"`
}

// PredictionTable is the validated tabular form of a prediction payload.
// Row order matches the input payload.
type PredictionTable struct {
	Rows []PredictionRecord
}

// Len returns the number of rows in the table.
func (t *PredictionTable) Len() int {
	return len(t.Rows)
}

// AllLow reports whether every row in the table carries low risk.
func (t *PredictionTable) AllLow() bool {
	for _, row := range t.Rows {
		if row.Risk != RiskLow {
			return false
		}
	}
	return true
}

// SectionEntry names one report section and the ordered feature ids that
// belong to it. The id order defines both membership and display order.
type SectionEntry struct {
	Name       string `yaml:"name" json:"name"`
	FeatureIDs []int  `yaml:"features" json:"features"`
}

// SectionMapping is the ordered list of report sections. Entry order is
// significant and dictates synopsis output order.
type SectionMapping []SectionEntry

// MappingSource identifies where a section mapping came from.
type MappingSource string

const (
	MappingSourceFile     MappingSource = "file"
	MappingSourceFallback MappingSource = "fallback"
)

// MappingResult carries a loaded mapping together with its provenance so
// callers can tell when the hard-coded fallback was substituted.
type MappingResult struct {
	Mapping SectionMapping
	Source  MappingSource
}

// ChatMessage is one role/content pair in a chat-completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the complete LLM request payload. Construction is a pure
// function of the synopsis text and the LLM configuration.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// ChatChoice is one completion alternative in a chat response.
type ChatChoice struct {
	Index   int         `json:"index"`
	Message ChatMessage `json:"message"`
}

// ChatResponse is the subset of the completion endpoint's response the
// pipeline consumes.
type ChatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model,omitempty"`
	Choices []ChatChoice `json:"choices"`
}

// Report is a persisted generation result. Once written its fields are
// immutable; corrections are new Reports, not edits.
type Report struct {
	DataName      string `json:"data_name"`
	ReportContent string `json:"report_content"`
	CreatedAt     int64  `json:"created_at"`
	CreatedAtStr  string `json:"created_at_str"`
}

// VerificationStatus is the radiologist's post-hoc judgment on a report.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFlagged  VerificationStatus = "flagged"
)

// ValidStatus reports whether s is one of the recognized verification
// statuses that SetVerification accepts.
func ValidStatus(s VerificationStatus) bool {
	return s == VerificationPending || s == VerificationVerified || s == VerificationFlagged
}

// Verification records the current judgment on a case. Each transition
// overwrites the previous one; no history is kept.
type Verification struct {
	Status     VerificationStatus `json:"status"`
	Timestamp  string             `json:"timestamp"`
	VerifiedBy string             `json:"verified_by,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

// CaseImage holds the stored image's metadata. Hash is the SHA-256 of the
// bytes at save time, available for external integrity checks.
type CaseImage struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// CaseReport wraps the report content attached to a case.
type CaseReport struct {
	Content string `json:"content"`
}

// Case links one processed image to its full pipeline output. CaseID is
// assigned once at creation and is the sole lookup key.
type Case struct {
	CaseID       string             `json:"case_id"`
	Timestamp    string             `json:"timestamp"`
	Image        CaseImage          `json:"image"`
	Features     []float64          `json:"features"`
	Predictions  []PredictionRecord `json:"predictions"`
	Report       CaseReport         `json:"report"`
	Verification *Verification      `json:"verification,omitempty"`
}

// Status returns the case's verification status, treating the absence of a
// verification record as pending.
func (c *Case) Status() VerificationStatus {
	if c.Verification == nil {
		return VerificationPending
	}
	return c.Verification.Status
}

// CaseSummary is the listing view of a case.
type CaseSummary struct {
	CaseID    string `json:"case_id"`
	Timestamp string `json:"timestamp"`
	ImageName string `json:"image_name"`
}

// PipelineResult is the outcome of one report-generation run. A generated
// report that failed to persist is still returned, with SaveError noting
// the persistence failure.
type PipelineResult struct {
	ReportContent string             `json:"report_content"`
	Synopsis      string             `json:"synopsis"`
	Predictions   []PredictionRecord `json:"predictions,omitempty"`
	Features      []float64          `json:"features,omitempty"`
	CaseID        string             `json:"case_id,omitempty"`
	ReportPath    string             `json:"report_path,omitempty"`
	MappingSource MappingSource      `json:"mapping_source"`
	SaveError     string             `json:"save_error,omitempty"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// Saved reports whether persistence succeeded for this run.
func (r *PipelineResult) Saved() bool {
	return r.SaveError == ""
}
