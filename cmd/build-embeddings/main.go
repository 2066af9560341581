package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"offerguard-backend/config"
	"offerguard-backend/corpus"
	"offerguard-backend/embedding"
	"offerguard-backend/models"
	"offerguard-backend/repository"
	"offerguard-backend/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

// batchSize is the number of records upserted per round trip
const batchSize = 50

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Embedding.Dimensions != repository.EmbeddingDimensions {
		log.Fatalf("embedding.dimensions must be %d to match the law_records table, got %d",
			repository.EmbeddingDimensions, cfg.Embedding.Dimensions)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Verify table exists
	var tableExists bool
	err = pool.QueryRow(ctx, "SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'law_records')").Scan(&tableExists)
	if err != nil {
		log.Fatalf("Failed to check table existence: %v", err)
	}
	if !tableExists {
		log.Fatal("law_records table does not exist. Please run: go run cmd/create-schema/main.go")
	}

	fileStorage, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	source, err := ingestionSource(cfg, fileStorage)
	if err != nil {
		log.Fatalf("Failed to open ingestion file: %v", err)
	}

	var embedder embedding.Embedder
	if cfg.UseGeminiEmbeddings() {
		embedder = embedding.NewGeminiEmbedder(cfg.LLM.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	} else {
		log.Println("   ⚠️  Warning: no Gemini API key, storing local hash embeddings")
		embedder = embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
	}
	log.Printf("📐 Embedding model: %s (%d dims)", embedder.Model(), embedder.Dimensions())

	// Reuse the corpus loader so cached vectors are not recomputed
	statutes := corpus.New(source, embedder)
	if err := statutes.Reload(ctx); err != nil {
		log.Fatalf("Failed to embed statutes: %v", err)
	}

	lawRepo := repository.NewLawRepository(pool)
	total := 0
	for _, jurisdiction := range statutes.Jurisdictions() {
		records, err := statutes.Load(jurisdiction)
		if err != nil {
			log.Fatalf("Failed to read %s statutes: %v", jurisdiction, err)
		}
		log.Printf("\n📄 Processing: %s (%d statutes)", jurisdiction, len(records))

		for start := 0; start < len(records); start += batchSize {
			end := min(start+batchSize, len(records))
			if err := lawRepo.UpsertBatch(ctx, records[start:end]); err != nil {
				log.Fatalf("❌ Failed to store %s statutes: %v", jurisdiction, err)
			}
		}
		total += len(records)

		verifySearch(ctx, lawRepo, jurisdiction, records[0])
	}

	counts, err := lawRepo.CountByJurisdiction(ctx)
	if err != nil {
		log.Printf("Warning: Failed to count stored statutes: %v", err)
	}

	fmt.Printf("\n✅ Stored %d statutes with embeddings\n", total)
	for jurisdiction, n := range counts {
		fmt.Printf("   %s: %d\n", jurisdiction, n)
	}
}

// verifySearch checks that a stored statute is its own nearest neighbour,
// which catches a broken vector round trip or a missing pgvector index
func verifySearch(ctx context.Context, lawRepo *repository.LawRepository, jurisdiction string, probe models.LawRecord) {
	results, err := lawRepo.SearchByEmbedding(ctx, jurisdiction, probe.Embedding, 1)
	if err != nil {
		log.Printf("   ⚠️  Warning: search check failed for %s: %v", jurisdiction, err)
		return
	}
	if len(results) == 0 || results[0].Law.ID != probe.ID {
		log.Printf("   ⚠️  Warning: %s is not its own nearest neighbour in %s", probe.Citation, jurisdiction)
		return
	}
	log.Printf("   ✓ Search check passed (similarity %.3f)", results[0].Similarity)
}

// ingestionSource picks the file named by INGESTION_FILE, the configured
// storage key, or the built-in seed corpus
func ingestionSource(cfg *config.Config, store storage.Storage) (corpus.Source, error) {
	if path := os.Getenv("INGESTION_FILE"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		records, err := corpus.DecodeIngestion(f)
		if err != nil {
			return nil, err
		}
		log.Printf("📥 Read %d statutes from %s", len(records), path)
		return corpus.StaticSource(records), nil
	}
	if cfg.Corpus.Source == "file" {
		log.Printf("📥 Reading statutes from storage key %s", cfg.Corpus.Key)
		return corpus.NewFileSource(store, cfg.Corpus.Key), nil
	}
	log.Println("📥 Using built-in seed statutes")
	return corpus.SeedSource{}, nil
}
