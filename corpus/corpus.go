// Package corpus holds the per-jurisdiction statute corpus used for
// retrieval. The corpus is read-only at query time; an administrative reload
// builds a complete new snapshot and swaps it in atomically, so in-flight
// requests keep reading the snapshot they started with.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"offerguard-backend/embedding"
	"offerguard-backend/models"
)

var (
	ErrUnknownJurisdiction = errors.New("unknown jurisdiction")
	ErrEmptyCorpus         = errors.New("corpus source returned no records")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
)

// Source supplies the full set of law records for a (re)load
type Source interface {
	LoadAll(ctx context.Context) ([]models.LawRecord, error)
}

// Stats describes the active snapshot
type Stats struct {
	Records       int            `json:"records"`
	Jurisdictions map[string]int `json:"jurisdictions"`
	Dimensions    int            `json:"dimensions"`
	Model         string         `json:"model"`
	LoadedAt      time.Time      `json:"loaded_at"`
}

type snapshot struct {
	byJurisdiction map[string][]models.LawRecord
	dimensions     int
	total          int
	loadedAt       time.Time
}

// Corpus is the in-memory statute index
type Corpus struct {
	source   Source
	embedder embedding.Embedder
	cache    CacheStore

	current  atomic.Pointer[snapshot]
	reloadMu sync.Mutex // serializes reloads; readers never take it
}

// Option is a functional option for Corpus
type Option func(*Corpus)

// WithCache sets where computed embeddings are cached between loads
func WithCache(cache CacheStore) Option {
	return func(c *Corpus) {
		c.cache = cache
	}
}

// New creates an empty corpus. Call Reload before serving queries.
func New(source Source, embedder embedding.Embedder, opts ...Option) *Corpus {
	c := &Corpus{
		source:   source,
		embedder: embedder,
	}
	if cache, ok := source.(CacheStore); ok {
		c.cache = cache
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reload loads every record from the source, fills missing embeddings and
// atomically replaces the active snapshot. On error the previous snapshot
// stays active.
func (c *Corpus) Reload(ctx context.Context) error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	records, err := c.source.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}
	if len(records) == 0 {
		return ErrEmptyCorpus
	}

	if err := c.embedMissing(ctx, records); err != nil {
		return fmt.Errorf("failed to embed corpus: %w", err)
	}

	snap, err := buildSnapshot(records, c.embedder.Dimensions())
	if err != nil {
		return err
	}

	c.current.Store(snap)
	log.Printf("Corpus loaded: %d records across %d jurisdictions (%d dims)", snap.total, len(snap.byJurisdiction), snap.dimensions)
	return nil
}

func buildSnapshot(records []models.LawRecord, dimensions int) (*snapshot, error) {
	snap := &snapshot{
		byJurisdiction: make(map[string][]models.LawRecord),
		dimensions:     dimensions,
		loadedAt:       time.Now().UTC(),
	}

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if len(rec.Embedding) != dimensions {
			return nil, fmt.Errorf("%w: %s has %d dimensions, expected %d", ErrDimensionMismatch, rec.Citation, len(rec.Embedding), dimensions)
		}
		if seen[rec.ID.String()] {
			log.Printf("Warning: duplicate law record %s (%s %s), keeping first", rec.ID, rec.Jurisdiction, rec.Citation)
			continue
		}
		seen[rec.ID.String()] = true

		j := models.NormalizeJurisdiction(rec.Jurisdiction)
		rec.Jurisdiction = j
		snap.byJurisdiction[j] = append(snap.byJurisdiction[j], rec)
		snap.total++
	}

	for _, recs := range snap.byJurisdiction {
		sort.SliceStable(recs, func(a, b int) bool {
			if recs[a].Topic != recs[b].Topic {
				return recs[a].Topic < recs[b].Topic
			}
			return recs[a].Citation < recs[b].Citation
		})
	}
	return snap, nil
}

// embedMissing fills records without an embedding, consulting the cache first
func (c *Corpus) embedMissing(ctx context.Context, records []models.LawRecord) error {
	model := c.embedder.Model()
	dims := c.embedder.Dimensions()

	cache := make(map[string][]float64)
	if c.cache != nil {
		loaded, err := c.cache.LoadCache(ctx)
		if err != nil {
			log.Printf("Warning: Failed to load embedding cache: %v. Recomputing embeddings.", err)
		} else if loaded != nil {
			cache = loaded
		}
	}

	var pending []int
	var texts []string
	for i := range records {
		if len(records[i].Embedding) > 0 {
			continue
		}
		key := CacheKey(model, records[i].EmbeddingInput())
		if vec, ok := cache[key]; ok && len(vec) == dims {
			records[i].Embedding = append([]float64(nil), vec...)
			continue
		}
		pending = append(pending, i)
		texts = append(texts, records[i].EmbeddingInput())
	}

	if len(pending) == 0 {
		return nil
	}

	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(pending) {
		return fmt.Errorf("embedder returned %d vectors for %d records", len(vectors), len(pending))
	}

	for n, i := range pending {
		records[i].Embedding = vectors[n]
		cache[CacheKey(model, texts[n])] = vectors[n]
	}

	if c.cache != nil {
		if err := c.cache.SaveCache(ctx, cache); err != nil {
			log.Printf("Warning: Failed to save embedding cache: %v", err)
		}
	}
	return nil
}

// Load returns the records for a jurisdiction. The returned records share
// embedding storage with the snapshot and must not be modified.
func (c *Corpus) Load(jurisdiction string) ([]models.LawRecord, error) {
	j := models.NormalizeJurisdiction(jurisdiction)
	snap := c.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: %s (corpus not loaded)", ErrUnknownJurisdiction, j)
	}
	recs, ok := snap.byJurisdiction[j]
	if !ok || len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJurisdiction, j)
	}
	return append([]models.LawRecord(nil), recs...), nil
}

// Search ranks a jurisdiction's records by cosine similarity to the query
// embedding, descending, ties broken by citation
func (c *Corpus) Search(jurisdiction string, query []float64, topK int) ([]models.RetrievalResult, error) {
	recs, err := c.Load(jurisdiction)
	if err != nil {
		return nil, err
	}

	results := make([]models.RetrievalResult, 0, len(recs))
	for i := range recs {
		sim := Cosine(query, recs[i].Embedding)
		results = append(results, models.RetrievalResult{
			Law:        &recs[i],
			Similarity: sim,
			Semantic:   sim,
		})
	}

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Similarity != results[b].Similarity {
			return results[a].Similarity > results[b].Similarity
		}
		return results[a].Law.Citation < results[b].Law.Citation
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Has reports whether a jurisdiction has any records loaded
func (c *Corpus) Has(jurisdiction string) bool {
	_, err := c.Load(jurisdiction)
	return err == nil
}

// Jurisdictions lists the loaded jurisdiction codes in sorted order
func (c *Corpus) Jurisdictions() []string {
	snap := c.current.Load()
	if snap == nil {
		return []string{}
	}
	codes := make([]string, 0, len(snap.byJurisdiction))
	for code := range snap.byJurisdiction {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Stats describes the active snapshot
func (c *Corpus) Stats() Stats {
	stats := Stats{Model: c.embedder.Model(), Jurisdictions: map[string]int{}}
	snap := c.current.Load()
	if snap == nil {
		return stats
	}
	stats.Records = snap.total
	stats.Dimensions = snap.dimensions
	stats.LoadedAt = snap.loadedAt
	for code, recs := range snap.byJurisdiction {
		stats.Jurisdictions[code] = len(recs)
	}
	return stats
}

// Embedder returns the corpus embedding model so queries use the same space
func (c *Corpus) Embedder() embedding.Embedder {
	return c.embedder
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or with zero norm have similarity 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Guard against rounding pushing the value just outside [-1,1]
	return math.Max(-1, math.Min(1, sim))
}
