package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"offerguard-backend/models"
)

// judgeEntry is one element of the judge's JSON array. Pointer fields
// distinguish a missing key from a zero value.
type judgeEntry struct {
	Topic        *string  `json:"topic"`
	Severity     *string  `json:"severity"`
	Confidence   *float64 `json:"confidence"`
	Explanation  *string  `json:"explanation"`
	Citation     *string  `json:"citation"`
	EvidenceText *string  `json:"evidence_text"`
}

var (
	codeFenceRe     = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)
)

// ParseJudgeResponse validates the judge's raw output against the candidate
// schema. Invalid entries are dropped individually; a response that is not
// a JSON array even after one repair pass is ErrJudgeMalformedResponse.
// Citations are grounded in laws where possible.
func ParseJudgeResponse(raw string, laws []models.RetrievalResult) ([]models.ViolationCandidate, error) {
	entries, ok := decodeEntries(raw)
	if !ok {
		entries, ok = decodeEntries(repairJSON(raw))
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJudgeMalformedResponse, truncate(raw, 200))
	}

	byTopic := make(map[string]int)
	candidates := make([]models.ViolationCandidate, 0, len(entries))
	for _, msg := range entries {
		c, ok := parseEntry(msg)
		if !ok {
			continue
		}
		groundCitation(&c, laws)

		if i, seen := byTopic[c.Topic]; seen {
			if c.Confidence > candidates[i].Confidence {
				candidates[i] = c
			}
			continue
		}
		byTopic[c.Topic] = len(candidates)
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func decodeEntries(s string) ([]json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(s), &arr); err == nil {
		return arr, true
	}
	var wrapped struct {
		Violations *[]json.RawMessage `json:"violations"`
	}
	if err := json.Unmarshal([]byte(s), &wrapped); err == nil && wrapped.Violations != nil {
		return *wrapped.Violations, true
	}
	return nil, false
}

// repairJSON fixes the usual ways a model wraps or corrupts a JSON array
func repairJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "[")
		end := strings.LastIndex(s, "]")
		if start >= 0 && end > start {
			s = s[start : end+1]
		}
	}
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

func parseEntry(msg json.RawMessage) (models.ViolationCandidate, bool) {
	var e judgeEntry
	if err := json.Unmarshal(msg, &e); err != nil {
		return models.ViolationCandidate{}, false
	}
	if e.Topic == nil || e.Severity == nil || e.Confidence == nil || e.Explanation == nil {
		return models.ViolationCandidate{}, false
	}

	topic := models.NormalizeTopic(*e.Topic)
	severity := models.Severity(strings.ToLower(strings.TrimSpace(*e.Severity)))
	explanation := strings.TrimSpace(*e.Explanation)
	if topic == "" || !severity.Valid() || explanation == "" {
		return models.ViolationCandidate{}, false
	}

	return models.ViolationCandidate{
		Topic:        topic,
		Severity:     severity,
		Confidence:   clamp01(*e.Confidence),
		Explanation:  explanation,
		Citation:     models.StringPtr(strings.TrimSpace(models.StringValue(e.Citation))),
		EvidenceText: models.StringPtr(strings.TrimSpace(models.StringValue(e.EvidenceText))),
		SourceLayer:  models.LayerLLM,
	}, true
}

// groundCitation replaces a citation that is not among the provided laws,
// or fills a missing one, with the provided law on the same topic
func groundCitation(c *models.ViolationCandidate, laws []models.RetrievalResult) {
	if len(laws) == 0 {
		return
	}
	var sameTopic *models.LawRecord
	for _, r := range laws {
		if c.Citation != nil && sameCitation(*c.Citation, r.Law.Citation) {
			citation := r.Law.Citation
			c.Citation = &citation
			return
		}
		if sameTopic == nil && r.Law.Topic == c.Topic {
			sameTopic = r.Law
		}
	}
	if sameTopic != nil {
		citation := sameTopic.Citation
		c.Citation = &citation
	}
}

func sameCitation(a, b string) bool {
	return strings.EqualFold(strings.Join(strings.Fields(a), " "), strings.Join(strings.Fields(b), " "))
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return truncateRunes(s, n) + "..."
}
