package service

import (
	"math"
	"sort"

	"offerguard-backend/models"
)

const (
	DefaultBoostFactor   = 1.2
	DefaultMinConfidence = 0.70
)

// CrossValidator merges the pattern and LLM layers per topic. Agreement
// between the layers boosts the LLM's confidence.
type CrossValidator struct {
	boost float64
}

// NewCrossValidator creates a validator. A boost below 1 is raised to 1 so
// agreement never lowers confidence.
func NewCrossValidator(boost float64) *CrossValidator {
	if boost < 1 {
		boost = 1
	}
	return &CrossValidator{boost: boost}
}

// Reconcile implements Reconciler
func (v *CrossValidator) Reconcile(pattern, llm []models.ViolationCandidate, minConfidence float64) []models.Violation {
	patternByTopic := strongestByTopic(pattern)
	llmByTopic := strongestByTopic(llm)

	violations := make([]models.Violation, 0, len(patternByTopic)+len(llmByTopic))
	for topic, l := range llmByTopic {
		p, both := patternByTopic[topic]
		if !both {
			violations = append(violations, toViolation(l, models.ValidationLLMOnly))
			continue
		}

		merged := toViolation(l, models.ValidationCrossValidated)
		merged.Confidence = math.Min(1, l.Confidence*v.boost)
		if p.Severity.Rank() > merged.Severity.Rank() {
			merged.Severity = p.Severity
		}
		if merged.Citation == nil {
			merged.Citation = p.Citation
		}
		if merged.EvidenceText == nil {
			merged.EvidenceText = p.EvidenceText
		}
		violations = append(violations, merged)
	}
	for topic, p := range patternByTopic {
		if _, both := llmByTopic[topic]; both {
			continue
		}
		violations = append(violations, toViolation(p, models.ValidationPatternOnly))
	}

	kept := violations[:0]
	for _, vi := range violations {
		if vi.Confidence >= minConfidence {
			kept = append(kept, vi)
		}
	}

	sort.Slice(kept, func(a, b int) bool {
		if ra, rb := kept[a].Severity.Rank(), kept[b].Severity.Rank(); ra != rb {
			return ra > rb
		}
		if kept[a].Confidence != kept[b].Confidence {
			return kept[a].Confidence > kept[b].Confidence
		}
		return kept[a].Topic < kept[b].Topic
	})
	return kept
}

// Summarize derives the compliance summary of a violation list
func Summarize(violations []models.Violation) (isCompliant bool, risk models.RiskLevel, confidenceAvg float64) {
	risk = models.RiskLow
	hasError := false
	total := 0.0
	for _, v := range violations {
		switch v.Severity {
		case models.SeverityError:
			hasError = true
			risk = models.RiskHigh
		case models.SeverityWarning:
			if risk == models.RiskLow {
				risk = models.RiskMedium
			}
		}
		total += v.Confidence
	}
	if len(violations) > 0 {
		confidenceAvg = total / float64(len(violations))
	}
	return !hasError, risk, confidenceAvg
}

// strongestByTopic keeps the highest-confidence candidate per topic
func strongestByTopic(candidates []models.ViolationCandidate) map[string]models.ViolationCandidate {
	out := make(map[string]models.ViolationCandidate, len(candidates))
	for _, c := range candidates {
		c.Topic = models.NormalizeTopic(c.Topic)
		c.Confidence = clamp01(c.Confidence)
		if prev, ok := out[c.Topic]; ok && prev.Confidence >= c.Confidence {
			continue
		}
		out[c.Topic] = c
	}
	return out
}

func toViolation(c models.ViolationCandidate, validation models.Validation) models.Violation {
	return models.Violation{
		Topic:        c.Topic,
		Severity:     c.Severity,
		Confidence:   c.Confidence,
		Validation:   validation,
		Explanation:  c.Explanation,
		Citation:     c.Citation,
		EvidenceText: c.EvidenceText,
	}
}
