package service

import (
	"context"
	"log"
	"math"
	"sort"

	"offerguard-backend/corpus"
	"offerguard-backend/embedding"
	"offerguard-backend/models"
)

// RetrieverConfig tunes hybrid retrieval
type RetrieverConfig struct {
	TopK           int     `mapstructure:"top_k"`
	MinSimilarity  float64 `mapstructure:"min_similarity"`
	SemanticWeight float64 `mapstructure:"semantic_weight"`
	MaxQueryChars  int     `mapstructure:"max_query_chars"`
}

// DefaultRetrieverConfig returns the calibrated defaults. The floor is low
// because statute summaries are terse; cross-validation restores precision.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		TopK:           8,
		MinSimilarity:  0.10,
		SemanticWeight: 0.7,
		MaxQueryChars:  8000,
	}
}

// topicKeywords are the lexical cues for each topic, in lexicalText form
var topicKeywords = map[string][]string{
	models.TopicNonCompete:      {"non-compete", "noncompete", "not to compete", "compete", "competitor", "competing business", "restrictive covenant"},
	models.TopicNonSolicitation: {"solicit", "non-solicitation", "nonsolicitation", "customers", "clients"},
	models.TopicSalaryHistory:   {"salary history", "prior salary", "previous salary", "current salary", "pay history", "compensation history", "wage history"},
	models.TopicPayTransparency: {"salary range", "pay range", "pay scale", "wage scale", "compensation range"},
	models.TopicBackgroundCheck: {"background check", "criminal history", "criminal record", "conviction", "arrest"},
	models.TopicDrugScreening:   {"drug test", "drug screening", "drug screen", "cannabis", "marijuana", "thc"},
	models.TopicAtWill:          {"at-will", "at will"},
	models.TopicArbitration:     {"arbitration", "arbitrate", "class action waiver", "jury trial"},
	models.TopicChoiceOfLaw:     {"governed by the laws", "choice of law", "venue", "exclusive jurisdiction", "forum"},
	models.TopicFinalPay:        {"final paycheck", "final pay", "last paycheck", "final wages", "withhold"},
	models.TopicTrainingRepay:   {"training repayment", "repay", "reimburse the company", "training costs"},
}

// LawKeywords returns the lexical cues for a law: its topic's built-in
// keywords plus the record's own, deduplicated
func LawKeywords(law *models.LawRecord) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(k string) {
		k = lexicalText(k)
		if k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range topicKeywords[law.Topic] {
		add(k)
	}
	for _, k := range law.Keywords {
		add(k)
	}
	return out
}

// LexicalScore is the fraction of keywords found in text. text must be in
// lexicalText form.
func LexicalScore(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	hits := 0
	for _, k := range keywords {
		if containsTerm(text, k) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

// HybridRetriever ranks a jurisdiction's statutes by a blend of embedding
// similarity and keyword overlap
type HybridRetriever struct {
	corpus   *corpus.Corpus
	embedder embedding.Embedder
	cfg      RetrieverConfig
}

// NewHybridRetriever creates a retriever over c using the corpus embedder
func NewHybridRetriever(c *corpus.Corpus, cfg RetrieverConfig) *HybridRetriever {
	defaults := DefaultRetrieverConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = defaults.TopK
	}
	if cfg.MaxQueryChars <= 0 {
		cfg.MaxQueryChars = defaults.MaxQueryChars
	}
	return &HybridRetriever{
		corpus:   c,
		embedder: c.Embedder(),
		cfg:      cfg,
	}
}

// Score blends a semantic and lexical score into the ranking score
func (r *HybridRetriever) Score(semantic, lexical float64) float64 {
	w := r.cfg.SemanticWeight
	return w*math.Max(0, semantic) + (1-w)*lexical
}

// Retrieve returns the statutes scoring at or above the floor, best first.
// An empty result means no relevant law was found and is not an error.
func (r *HybridRetriever) Retrieve(ctx context.Context, documentText, jurisdiction string) ([]models.RetrievalResult, error) {
	laws, err := r.corpus.Load(jurisdiction)
	if err != nil {
		return nil, err
	}

	query := truncateRunes(normalizeText(documentText), r.cfg.MaxQueryChars)
	queryVec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("Warning: query embedding failed, using lexical scoring only: %v", err)
		queryVec = nil
	}

	text := lexicalText(documentText)
	results := make([]models.RetrievalResult, 0, len(laws))
	for i := range laws {
		law := &laws[i]
		semantic := 0.0
		if queryVec != nil {
			semantic = math.Max(0, corpus.Cosine(queryVec, law.Embedding))
		}
		lexical := LexicalScore(text, LawKeywords(law))
		score := r.Score(semantic, lexical)
		if score < r.cfg.MinSimilarity {
			continue
		}
		results = append(results, models.RetrievalResult{
			Law:        law,
			Similarity: score,
			Semantic:   semantic,
			Lexical:    lexical,
		})
	}

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Similarity != results[b].Similarity {
			return results[a].Similarity > results[b].Similarity
		}
		return results[a].Law.Citation < results[b].Law.Citation
	})

	if len(results) > r.cfg.TopK {
		results = results[:r.cfg.TopK]
	}
	return results, nil
}
