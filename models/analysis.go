package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisResult is the report for one analyzed document
type AnalysisResult struct {
	ID            uuid.UUID
	Jurisdiction  string
	Violations    []Violation
	LayersUsed    []Layer
	IsCompliant   bool
	OverallRisk   RiskLevel
	ConfidenceAvg float64
	AnalyzedAt    time.Time
	Duration      time.Duration
}

// HasLayer reports whether layer contributed to the report
func (r *AnalysisResult) HasLayer(layer Layer) bool {
	for _, l := range r.LayersUsed {
		if l == layer {
			return true
		}
	}
	return false
}

// AnalysisOptions are the per-request tuning knobs
type AnalysisOptions struct {
	MinConfidence *float64 `json:"min_confidence"`
}

// AnalysisRequest is the body of an analysis call
type AnalysisRequest struct {
	DocumentText string          `json:"document_text"`
	Jurisdiction string          `json:"jurisdiction"`
	Options      AnalysisOptions `json:"options"`
}

// AnalysisSummary is the compliance summary block of a response
type AnalysisSummary struct {
	IsCompliant   bool      `json:"is_compliant"`
	OverallRisk   RiskLevel `json:"overall_risk"`
	ConfidenceAvg float64   `json:"confidence_avg"`
}

// AnalysisResponse is the wire shape of an AnalysisResult
type AnalysisResponse struct {
	AnalysisID      uuid.UUID       `json:"analysis_id"`
	Jurisdiction    string          `json:"jurisdiction"`
	LayersUsed      []Layer         `json:"layers_used"`
	TotalViolations int             `json:"total_violations"`
	Violations      []Violation     `json:"violations"`
	Summary         AnalysisSummary `json:"summary"`
}

// NewAnalysisResponse converts a report to its wire shape
func NewAnalysisResponse(r *AnalysisResult) AnalysisResponse {
	violations := r.Violations
	if violations == nil {
		violations = []Violation{}
	}
	layers := r.LayersUsed
	if layers == nil {
		layers = []Layer{}
	}
	return AnalysisResponse{
		AnalysisID:      r.ID,
		Jurisdiction:    r.Jurisdiction,
		LayersUsed:      layers,
		TotalViolations: len(violations),
		Violations:      violations,
		Summary: AnalysisSummary{
			IsCompliant:   r.IsCompliant,
			OverallRisk:   r.OverallRisk,
			ConfidenceAvg: r.ConfidenceAvg,
		},
	}
}
