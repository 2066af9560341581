package service

import (
	"context"
	"sort"
	"strings"

	"offerguard-backend/models"
)

const maxEvidenceChars = 300

// PatternMatcher is the rule-based detection layer. It is deterministic,
// needs no network and never fails.
type PatternMatcher struct {
	rules *RuleSet
}

// NewPatternMatcher creates a matcher over rules
func NewPatternMatcher(rules *RuleSet) *PatternMatcher {
	return &PatternMatcher{rules: rules}
}

// Match scans the document with the jurisdiction's rules and returns at most
// one candidate per topic, ordered by topic
func (m *PatternMatcher) Match(documentText, jurisdiction string) []models.ViolationCandidate {
	rules := m.rules.Rules(jurisdiction)
	if len(rules) == 0 || strings.TrimSpace(documentText) == "" {
		return []models.ViolationCandidate{}
	}

	text := normalizeText(documentText)

	type hit struct {
		rule *Rule
		loc  []int
	}
	best := make(map[string]hit)
	for i := range rules {
		rule := &rules[i]
		loc, ok := rule.firstMatch(text)
		if !ok {
			continue
		}
		if prev, seen := best[rule.Topic]; seen && prev.rule.Confidence >= rule.Confidence {
			continue
		}
		best[rule.Topic] = hit{rule: rule, loc: loc}
	}

	candidates := make([]models.ViolationCandidate, 0, len(best))
	for topic, h := range best {
		candidates = append(candidates, models.ViolationCandidate{
			Topic:        topic,
			Severity:     h.rule.Severity,
			Confidence:   h.rule.Confidence,
			Explanation:  h.rule.Explanation,
			Citation:     h.rule.Citation,
			EvidenceText: models.StringPtr(evidenceSpan(text, h.loc[0], h.loc[1])),
			SourceLayer:  models.LayerPattern,
		})
	}
	sort.Slice(candidates, func(a, b int) bool {
		return candidates[a].Topic < candidates[b].Topic
	})
	return candidates
}

// Detect implements Detector
func (m *PatternMatcher) Detect(ctx context.Context, in DetectionInput) DetectionResult {
	return DetectionResult{
		Layer:      models.LayerPattern,
		Candidates: m.Match(in.DocumentText, in.Jurisdiction),
		Available:  true,
	}
}

// evidenceSpan widens a match to its enclosing sentence or line
func evidenceSpan(text string, start, end int) string {
	from := strings.LastIndexAny(text[:start], ".!?\n")
	from++
	to := strings.IndexAny(text[end:], ".!?\n")
	if to < 0 {
		to = len(text)
	} else {
		to = end + to + 1
	}

	span := strings.Join(strings.Fields(text[from:to]), " ")
	if len([]rune(span)) > maxEvidenceChars {
		matched := strings.Join(strings.Fields(text[start:end]), " ")
		if len([]rune(matched)) <= maxEvidenceChars {
			return matched
		}
		return truncateRunes(matched, maxEvidenceChars)
	}
	return span
}
