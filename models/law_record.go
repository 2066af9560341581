package models

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// lawRecordNamespace seeds deterministic LawRecord IDs
var lawRecordNamespace = uuid.MustParse("6f1c2a4e-9b7d-4c51-8e2a-3d5f0b9c7a11")

// Known statute topics
const (
	TopicNonCompete      = "non-compete"
	TopicNonSolicitation = "non-solicitation"
	TopicSalaryHistory   = "salary-history"
	TopicPayTransparency = "pay-transparency"
	TopicBackgroundCheck = "background-check"
	TopicDrugScreening   = "drug-screening"
	TopicAtWill          = "at-will"
	TopicArbitration     = "arbitration"
	TopicChoiceOfLaw     = "choice-of-law"
	TopicFinalPay        = "final-pay"
	TopicTrainingRepay   = "training-repayment"
)

// LawRecord represents one statutory provision in the corpus
type LawRecord struct {
	ID            uuid.UUID `json:"id"`
	Jurisdiction  string    `json:"jurisdiction"`
	Topic         string    `json:"topic"`
	Summary       string    `json:"summary"`
	Citation      string    `json:"citation"`
	FullText      string    `json:"full_text,omitempty"`
	EffectiveDate string    `json:"effective_date,omitempty"`
	SourceURL     string    `json:"source_url,omitempty"`
	Keywords      []string  `json:"keywords,omitempty"`
	Embedding     []float64 `json:"-"` // Precomputed once at load time
}

// EmbeddingInput returns the text the record's embedding is computed from
func (l LawRecord) EmbeddingInput() string {
	if l.FullText == "" {
		return l.Summary
	}
	return l.Summary + "\n\n" + l.FullText
}

// IngestionRecord is one entry of the statute ingestion format
type IngestionRecord struct {
	Jurisdiction  string    `json:"jurisdiction"`
	Topic         string    `json:"topic"`
	Summary       string    `json:"summary"`
	Citation      string    `json:"citation"`
	FullText      string    `json:"full_text"`
	EffectiveDate string    `json:"effective_date"`
	SourceURL     string    `json:"source_url"`
	Keywords      []string  `json:"keywords,omitempty"`
	Embedding     []float64 `json:"embedding,omitempty"`
}

var ErrInvalidIngestionRecord = errors.New("invalid ingestion record")

// ToLawRecord validates the ingestion entry and converts it to a LawRecord
func (r IngestionRecord) ToLawRecord() (LawRecord, error) {
	jurisdiction := NormalizeJurisdiction(r.Jurisdiction)
	topic := NormalizeTopic(r.Topic)
	summary := strings.TrimSpace(r.Summary)
	citation := strings.TrimSpace(r.Citation)

	switch {
	case jurisdiction == "":
		return LawRecord{}, errors.Join(ErrInvalidIngestionRecord, errors.New("jurisdiction is required"))
	case topic == "":
		return LawRecord{}, errors.Join(ErrInvalidIngestionRecord, errors.New("topic is required"))
	case summary == "":
		return LawRecord{}, errors.Join(ErrInvalidIngestionRecord, errors.New("summary is required"))
	case citation == "":
		return LawRecord{}, errors.Join(ErrInvalidIngestionRecord, errors.New("citation is required"))
	}

	keywords := make([]string, 0, len(r.Keywords))
	for _, k := range r.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}

	return LawRecord{
		ID:            LawRecordID(jurisdiction, topic, citation),
		Jurisdiction:  jurisdiction,
		Topic:         topic,
		Summary:       summary,
		Citation:      citation,
		FullText:      strings.TrimSpace(r.FullText),
		EffectiveDate: strings.TrimSpace(r.EffectiveDate),
		SourceURL:     strings.TrimSpace(r.SourceURL),
		Keywords:      keywords,
		Embedding:     r.Embedding,
	}, nil
}

// LawRecordID derives a stable ID so re-ingesting the same provision upserts
func LawRecordID(jurisdiction, topic, citation string) uuid.UUID {
	return uuid.NewSHA1(lawRecordNamespace, []byte(jurisdiction+"|"+topic+"|"+citation))
}

// NormalizeJurisdiction upper-cases and trims a jurisdiction code
func NormalizeJurisdiction(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var topicAliases = map[string]string{
	"noncompete":              TopicNonCompete,
	"non-competition":         TopicNonCompete,
	"covenant-not-to-compete": TopicNonCompete,
	"nonsolicitation":         TopicNonSolicitation,
	"non-solicit":             TopicNonSolicitation,
	"salary-history-ban":      TopicSalaryHistory,
	"pay-history":             TopicSalaryHistory,
	"salary-range":            TopicPayTransparency,
	"pay-range":               TopicPayTransparency,
	"criminal-history":        TopicBackgroundCheck,
	"ban-the-box":             TopicBackgroundCheck,
	"drug-testing":            TopicDrugScreening,
	"drug-test":               TopicDrugScreening,
	"at-will-employment":      TopicAtWill,
	"mandatory-arbitration":   TopicArbitration,
	"forum-selection":         TopicChoiceOfLaw,
}

// NormalizeTopic lower-cases a topic tag, folds separators to hyphens and
// resolves common aliases ("non_compete", "noncompete" -> "non-compete")
func NormalizeTopic(topic string) string {
	t := strings.ToLower(strings.TrimSpace(topic))
	t = strings.NewReplacer("_", "-", " ", "-").Replace(t)
	for strings.Contains(t, "--") {
		t = strings.ReplaceAll(t, "--", "-")
	}
	t = strings.Trim(t, "-")
	if canonical, ok := topicAliases[t]; ok {
		return canonical
	}
	return t
}

// RetrievalResult is one ranked statute for a single query. Never persisted.
type RetrievalResult struct {
	Law        *LawRecord `json:"law"`
	Similarity float64    `json:"similarity"` // Blended score in [0,1]
	Semantic   float64    `json:"semantic"`
	Lexical    float64    `json:"lexical"`
}
