// Package embedding turns text into fixed-length vectors for statute retrieval.
package embedding

import (
	"context"
	"errors"
	"math"
)

// ErrEmbeddingFailed is returned when no embedding could be produced
var ErrEmbeddingFailed = errors.New("failed to generate embedding")

// Embedder produces embeddings. Implementations are safe for concurrent use;
// one process-wide instance is shared by the corpus and the retriever.
type Embedder interface {
	// EmbedQuery embeds a retrieval query (the document under analysis)
	EmbedQuery(ctx context.Context, text string) ([]float64, error)

	// EmbedDocuments embeds corpus entries, preserving input order
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)

	// Model identifies the embedding model; it keys the embedding cache
	Model() string

	// Dimensions is the length of every returned vector
	Dimensions() int
}

// Normalize scales v to unit length in place. Zero vectors are left as is.
func Normalize(v []float64) {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
}
