package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic local embedder based on feature hashing of
// unigrams and bigrams. It needs no network and is used offline and in tests.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hashing embedder with the given dimensionality
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Model returns the embedder's cache identity
func (h *HashEmbedder) Model() string { return "local-hash-v1" }

// Dimensions returns the vector length
func (h *HashEmbedder) Dimensions() int { return h.dimensions }

// EmbedQuery embeds a single text
func (h *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.embed(text), nil
}

// EmbedDocuments embeds each text independently
func (h *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(text)
	}
	return out, nil
}

func (h *HashEmbedder) embed(text string) []float64 {
	vec := make([]float64, h.dimensions)
	tokens := Tokenize(text)

	for i, tok := range tokens {
		h.add(vec, tok, 1.0)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	Normalize(vec)
	return vec
}

func (h *HashEmbedder) add(vec []float64, feature string, weight float64) {
	hasher := fnv.New64a()
	hasher.Write([]byte(feature))
	sum := hasher.Sum64()

	idx := int(sum % uint64(h.dimensions))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// Tokenize lower-cases text and splits it on anything that is not a letter
// or digit. Very short tokens and a few stop words are dropped.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

var stopWords = map[string]bool{
	"the": true, "and": true, "of": true, "to": true, "in": true, "a": true,
	"for": true, "or": true, "on": true, "by": true, "with": true, "is": true,
	"be": true, "as": true, "an": true, "at": true, "any": true, "this": true,
	"that": true, "are": true, "you": true, "your": true, "will": true,
}
