package corpus

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"offerguard-backend/embedding"
	"offerguard-backend/models"
	"offerguard-backend/storage"
)

func testRecords() []models.LawRecord {
	mk := func(j, topic, citation, summary string) models.LawRecord {
		return models.LawRecord{
			ID:           models.LawRecordID(j, topic, citation),
			Jurisdiction: j,
			Topic:        topic,
			Citation:     citation,
			Summary:      summary,
		}
	}
	return []models.LawRecord{
		mk("CA", models.TopicNonCompete, "Cal. Bus. & Prof. Code § 16600", "non-compete agreements are void; employee may work for any competitor"),
		mk("CA", models.TopicSalaryHistory, "Cal. Lab. Code § 432.3", "employer may not ask applicant about salary history or prior compensation"),
		mk("NY", models.TopicPayTransparency, "N.Y. Lab. Law § 194-b", "job postings must include a good faith salary range"),
	}
}

// countingEmbedder wraps the hash embedder and counts embedded documents
type countingEmbedder struct {
	*embedding.HashEmbedder
	embedded int
	fail     bool
}

func (e *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	if e.fail {
		return nil, embedding.ErrEmbeddingFailed
	}
	e.embedded += len(texts)
	return e.HashEmbedder.EmbedDocuments(ctx, texts)
}

func newTestCorpus(t *testing.T) *Corpus {
	t.Helper()
	c := New(StaticSource(testRecords()), embedding.NewHashEmbedder(1024))
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return c
}

func TestLoadUnknownJurisdiction(t *testing.T) {
	c := newTestCorpus(t)

	if _, err := c.Load("ZZ"); !errors.Is(err, ErrUnknownJurisdiction) {
		t.Fatalf("expected ErrUnknownJurisdiction, got %v", err)
	}

	recs, err := c.Load(" ca ")
	if err != nil {
		t.Fatalf("load CA: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 CA records, got %d", len(recs))
	}
	// sorted by topic
	if recs[0].Topic != models.TopicNonCompete || recs[1].Topic != models.TopicSalaryHistory {
		t.Fatalf("unexpected order: %s, %s", recs[0].Topic, recs[1].Topic)
	}
}

func TestLoadBeforeReload(t *testing.T) {
	c := New(StaticSource(testRecords()), embedding.NewHashEmbedder(64))
	if _, err := c.Load("CA"); !errors.Is(err, ErrUnknownJurisdiction) {
		t.Fatalf("expected ErrUnknownJurisdiction before load, got %v", err)
	}
	if got := c.Jurisdictions(); len(got) != 0 {
		t.Fatalf("expected no jurisdictions, got %v", got)
	}
}

func TestSearchOrdering(t *testing.T) {
	c := newTestCorpus(t)
	emb := c.Embedder()

	query, err := emb.EmbedQuery(context.Background(), "The employee shall not work for a competitor; this non-compete lasts two years")
	if err != nil {
		t.Fatalf("embed query: %v", err)
	}

	results, err := c.Search("CA", query, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Law.Topic != models.TopicNonCompete {
		t.Fatalf("expected non-compete first, got %s", results[0].Law.Topic)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Fatalf("results not sorted: %.3f < %.3f", results[0].Similarity, results[1].Similarity)
	}

	top1, err := c.Search("CA", query, 1)
	if err != nil {
		t.Fatalf("search top1: %v", err)
	}
	if len(top1) != 1 {
		t.Fatalf("expected topK to cut results, got %d", len(top1))
	}
}

func TestSearchTiesBrokenByCitation(t *testing.T) {
	vec := []float64{1, 0}
	recs := []models.LawRecord{
		{ID: models.LawRecordID("CA", "at-will", "B"), Jurisdiction: "CA", Topic: "at-will", Citation: "B", Summary: "b", Embedding: vec},
		{ID: models.LawRecordID("CA", "at-will", "A"), Jurisdiction: "CA", Topic: "at-will", Citation: "A", Summary: "a", Embedding: vec},
	}
	c := New(StaticSource(recs), embedding.NewHashEmbedder(2))
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	results, err := c.Search("CA", []float64{1, 0}, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].Law.Citation != "A" || results[1].Law.Citation != "B" {
		t.Fatalf("expected citation order A, B; got %s, %s", results[0].Law.Citation, results[1].Law.Citation)
	}
}

func TestFailedReloadKeepsSnapshot(t *testing.T) {
	emb := &countingEmbedder{HashEmbedder: embedding.NewHashEmbedder(128)}
	c := New(StaticSource(testRecords()), emb)
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	emb.fail = true
	if err := c.Reload(context.Background()); err == nil {
		t.Fatal("expected reload to fail")
	}

	if !c.Has("CA") || !c.Has("NY") {
		t.Fatalf("previous snapshot lost: %v", c.Jurisdictions())
	}
	if got := c.Stats().Records; got != 3 {
		t.Fatalf("expected 3 records, got %d", got)
	}
}

func TestReloadEmptySource(t *testing.T) {
	c := New(StaticSource(nil), embedding.NewHashEmbedder(64))
	if err := c.Reload(context.Background()); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
}

func TestReloadDimensionMismatch(t *testing.T) {
	recs := testRecords()
	recs[0].Embedding = []float64{1, 0, 0}
	c := New(StaticSource(recs), embedding.NewHashEmbedder(64))
	if err := c.Reload(context.Background()); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEmbeddingCacheReuse(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	ctx := context.Background()
	if err := store.Put(ctx, "statutes.json", bytesReader(SeedIngestion())); err != nil {
		t.Fatalf("put seed: %v", err)
	}
	src := NewFileSource(store, "statutes.json")

	first := &countingEmbedder{HashEmbedder: embedding.NewHashEmbedder(256)}
	if err := New(src, first).Reload(ctx); err != nil {
		t.Fatalf("first reload: %v", err)
	}
	if first.embedded == 0 {
		t.Fatal("expected first reload to embed records")
	}

	second := &countingEmbedder{HashEmbedder: embedding.NewHashEmbedder(256)}
	c := New(src, second)
	if err := c.Reload(ctx); err != nil {
		t.Fatalf("second reload: %v", err)
	}
	if second.embedded != 0 {
		t.Fatalf("expected cached embeddings to be reused, embedded %d", second.embedded)
	}
	if c.Stats().Records != first.embedded {
		t.Fatalf("expected %d records, got %d", first.embedded, c.Stats().Records)
	}
}

func TestSeedCorpusDecodes(t *testing.T) {
	recs, err := SeedSource{}.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("decode seed: %v", err)
	}
	if len(recs) < 20 {
		t.Fatalf("expected a populated seed corpus, got %d records", len(recs))
	}

	c := New(SeedSource{}, embedding.NewHashEmbedder(256))
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("reload seed: %v", err)
	}
	for _, j := range []string{"CA", "NY", "WA", "MA", "IL", "MN"} {
		if !c.Has(j) {
			t.Errorf("seed corpus missing %s", j)
		}
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"length mismatch", []float64{1, 0}, []float64{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheKeyDependsOnModel(t *testing.T) {
	if CacheKey("a", "text") == CacheKey("b", "text") {
		t.Fatal("cache key should include the model")
	}
	if CacheKey("a", "text") != CacheKey("a", "text") {
		t.Fatal("cache key should be deterministic")
	}
}

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }
