package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RunViolations is the JSONB column holding a run's violations
type RunViolations []Violation

// Value implements driver.Valuer for JSONB
func (v RunViolations) Value() (driver.Value, error) {
	if v == nil {
		return json.Marshal([]Violation{})
	}
	return json.Marshal([]Violation(v))
}

// Scan implements sql.Scanner for JSONB
func (v *RunViolations) Scan(value interface{}) error {
	if value == nil {
		*v = make(RunViolations, 0)
		return nil
	}

	// pgx may hand back JSONB as bytes or text
	var bytes []byte
	switch val := value.(type) {
	case []byte:
		bytes = val
	case string:
		bytes = []byte(val)
	default:
		*v = make(RunViolations, 0)
		return nil
	}

	if len(bytes) == 0 {
		*v = make(RunViolations, 0)
		return nil
	}

	return json.Unmarshal(bytes, v)
}

// AnalysisRun is the persisted audit record of one analysis.
// The document itself is never stored, only its hash.
type AnalysisRun struct {
	ID            uuid.UUID     `json:"id"`
	Jurisdiction  string        `json:"jurisdiction"`
	DocumentHash  string        `json:"document_hash"`
	DocumentChars int           `json:"document_chars"`
	LayersUsed    []string      `json:"layers_used"`
	Violations    RunViolations `json:"violations"`
	IsCompliant   bool          `json:"is_compliant"`
	OverallRisk   RiskLevel     `json:"overall_risk"`
	ConfidenceAvg float64       `json:"confidence_avg"`
	DurationMS    int64         `json:"duration_ms"`
	CreatedAt     time.Time     `json:"created_at"`
}

// NewAnalysisRun builds the audit record for a finished analysis
func NewAnalysisRun(r *AnalysisResult, documentHash string, documentChars int) *AnalysisRun {
	layers := make([]string, 0, len(r.LayersUsed))
	for _, l := range r.LayersUsed {
		layers = append(layers, string(l))
	}
	return &AnalysisRun{
		ID:            r.ID,
		Jurisdiction:  r.Jurisdiction,
		DocumentHash:  documentHash,
		DocumentChars: documentChars,
		LayersUsed:    layers,
		Violations:    RunViolations(r.Violations),
		IsCompliant:   r.IsCompliant,
		OverallRisk:   r.OverallRisk,
		ConfidenceAvg: r.ConfidenceAvg,
		DurationMS:    r.Duration.Milliseconds(),
		CreatedAt:     r.AnalyzedAt,
	}
}
