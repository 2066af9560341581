package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"offerguard-backend/config"
	"offerguard-backend/corpus"
	"offerguard-backend/embedding"
	"offerguard-backend/handlers"
	"offerguard-backend/llm"
	"offerguard-backend/repository"
	"offerguard-backend/service"
	"offerguard-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// seedCacheKey is where embeddings of the built-in corpus are cached
const seedCacheKey = "seed.embeddings.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	// Initialize database connection only when something needs it
	var db *pgxpool.Pool
	if cfg.Corpus.Source == "postgres" || cfg.PersistRuns {
		db, err = initPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to initialize Postgres:", err)
		}
		defer db.Close()
	}

	// Initialize storage
	fileStorage, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Printf("Storage initialized (%s)", cfg.Storage.Type)

	// Load the statute corpus
	statutes := corpus.New(corpusSource(cfg, db, fileStorage), initEmbedder(cfg), corpusOptions(cfg, fileStorage)...)
	if err := statutes.Reload(ctx); err != nil {
		log.Fatalf("Failed to load statute corpus: %v", err)
	}

	rules, err := loadRules(cfg.RulesPath)
	if err != nil {
		log.Fatalf("Failed to load detection rules: %v", err)
	}
	log.Printf("Loaded %d detection rules", rules.Len())

	// Initialize services
	opts := []service.ComplianceServiceOption{
		service.ComplianceWithCorpus(statutes),
		service.ComplianceWithRetriever(service.NewHybridRetriever(statutes, cfg.Retrieval)),
		service.ComplianceWithPatternDetector(service.NewPatternMatcher(rules)),
		service.ComplianceWithReconciler(service.NewCrossValidator(cfg.Analysis.BoostFactor)),
		service.ComplianceWithMinConfidence(cfg.Analysis.MinConfidence),
		service.ComplianceWithMaxDocumentChars(cfg.Analysis.MaxDocumentChars),
	}

	if cfg.JudgeEnabled() {
		client, err := llm.New(ctx, cfg.LLM)
		if err != nil {
			log.Printf("Warning: LLM judge disabled: %v", err)
		} else {
			if closer, ok := client.(io.Closer); ok {
				defer closer.Close()
			}
			opts = append(opts, service.ComplianceWithJudge(service.NewLLMJudge(client, cfg.Judge)))
			log.Printf("LLM judge initialized (%s transport)", cfg.LLM.Transport)
		}
	} else {
		log.Println("Warning: LLM judge disabled, analysis runs on pattern matching only")
	}

	if cfg.PersistRuns {
		opts = append(opts, service.ComplianceWithRunRepository(repository.NewAnalysisRunRepository(db)))
	}

	complianceService := service.NewComplianceService(opts...)

	// Setup Gin router
	r := gin.Default()
	handlers.RegisterRoutes(r, complianceService, cfg.AdminToken)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: Server shutdown did not complete: %v", err)
	}
}

func initPostgres(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Println("Postgres connection established")
	return pool, nil
}

func initEmbedder(cfg *config.Config) embedding.Embedder {
	if cfg.UseGeminiEmbeddings() {
		log.Printf("Using Gemini embeddings (%s, %d dims)", cfg.Embedding.Model, cfg.Embedding.Dimensions)
		return embedding.NewGeminiEmbedder(cfg.LLM.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}
	log.Printf("Using local hash embeddings (%d dims)", cfg.Embedding.Dimensions)
	return embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
}

func corpusSource(cfg *config.Config, db *pgxpool.Pool, store storage.Storage) corpus.Source {
	switch cfg.Corpus.Source {
	case "postgres":
		log.Println("Loading statutes from Postgres")
		return repository.NewLawRepository(db)
	case "file":
		log.Printf("Loading statutes from storage key %s", cfg.Corpus.Key)
		return corpus.NewFileSource(store, cfg.Corpus.Key)
	default:
		log.Println("Loading built-in statute corpus")
		return corpus.SeedSource{}
	}
}

func corpusOptions(cfg *config.Config, store storage.Storage) []corpus.Option {
	if cfg.Corpus.Source != "seed" {
		return nil
	}
	return []corpus.Option{corpus.WithCache(corpus.NewStorageCache(store, seedCacheKey))}
}

func loadRules(path string) (*service.RuleSet, error) {
	if path == "" {
		return service.DefaultRules()
	}
	log.Printf("Loading detection rules from %s", path)
	return service.LoadRulesFile(path)
}
