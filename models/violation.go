package models

// Severity represents the seriousness of a violation (info < warning < error)
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rank orders severities; unknown values rank below info
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the known severities
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Layer identifies an analysis layer
type Layer string

const (
	LayerPattern   Layer = "pattern"
	LayerRetrieval Layer = "retrieval"
	LayerLLM       Layer = "llm"
)

// layerOrder is the canonical ordering used for layers_used
var layerOrder = []Layer{LayerPattern, LayerRetrieval, LayerLLM}

// SortLayers returns the distinct layers in canonical order
func SortLayers(layers []Layer) []Layer {
	seen := make(map[Layer]bool, len(layers))
	for _, l := range layers {
		seen[l] = true
	}
	sorted := make([]Layer, 0, len(seen))
	for _, l := range layerOrder {
		if seen[l] {
			sorted = append(sorted, l)
		}
	}
	return sorted
}

// Validation describes how a final violation was confirmed
type Validation string

const (
	ValidationPatternOnly    Validation = "pattern_only"
	ValidationLLMOnly        Validation = "llm_only"
	ValidationCrossValidated Validation = "cross_validated"
)

// RiskLevel is the aggregate risk of a report
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ViolationCandidate is a finding produced by a single detection layer
// before reconciliation
type ViolationCandidate struct {
	Topic        string   `json:"topic"`
	Severity     Severity `json:"severity"`
	Confidence   float64  `json:"confidence"`
	Explanation  string   `json:"explanation"`
	Citation     *string  `json:"citation"`
	EvidenceText *string  `json:"evidence_text"`
	SourceLayer  Layer    `json:"source_layer"`
}

// Violation is a reconciled finding as returned to callers
type Violation struct {
	Topic        string     `json:"topic"`
	Severity     Severity   `json:"severity"`
	Confidence   float64    `json:"confidence"`
	Validation   Validation `json:"validation"`
	Explanation  string     `json:"explanation"`
	Citation     *string    `json:"citation"`
	EvidenceText *string    `json:"evidence_text"`
}

// StringPtr returns nil for an empty string, otherwise a pointer to s
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences p, treating nil as ""
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
