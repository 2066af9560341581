package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"offerguard-backend/config"
	"offerguard-backend/corpus"
	"offerguard-backend/embedding"
	"offerguard-backend/llm"
	"offerguard-backend/service"
	"offerguard-backend/storage"
)

// engine bundles a ready compliance service with its cleanup
type engine struct {
	service *service.ComplianceService
	closers []io.Closer
}

func (e *engine) Close() {
	for _, c := range e.closers {
		c.Close()
	}
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFile(cfgFile)
	}
	return config.Load()
}

// newEngine builds the analysis pipeline the same way the server does,
// minus run persistence
func newEngine(ctx context.Context, withJudge bool) (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var embedder embedding.Embedder = embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
	if !offline && cfg.UseGeminiEmbeddings() {
		embedder = embedding.NewGeminiEmbedder(cfg.LLM.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}

	var source corpus.Source = corpus.SeedSource{}
	if cfg.Corpus.Source == "file" {
		store, err := storage.NewStorage(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		source = corpus.NewFileSource(store, cfg.Corpus.Key)
	} else if cfg.Corpus.Source == "postgres" {
		log.Println("Warning: the CLI does not read statutes from Postgres, using the built-in corpus")
	}

	statutes := corpus.New(source, embedder)
	if err := statutes.Reload(ctx); err != nil {
		return nil, err
	}

	var rules *service.RuleSet
	if cfg.RulesPath != "" {
		rules, err = service.LoadRulesFile(cfg.RulesPath)
	} else {
		rules, err = service.DefaultRules()
	}
	if err != nil {
		return nil, err
	}

	e := &engine{}
	opts := []service.ComplianceServiceOption{
		service.ComplianceWithCorpus(statutes),
		service.ComplianceWithRetriever(service.NewHybridRetriever(statutes, cfg.Retrieval)),
		service.ComplianceWithPatternDetector(service.NewPatternMatcher(rules)),
		service.ComplianceWithReconciler(service.NewCrossValidator(cfg.Analysis.BoostFactor)),
		service.ComplianceWithMinConfidence(cfg.Analysis.MinConfidence),
		service.ComplianceWithMaxDocumentChars(cfg.Analysis.MaxDocumentChars),
	}
	if withJudge && !offline && cfg.JudgeEnabled() {
		client, err := llm.New(ctx, cfg.LLM)
		if err != nil {
			log.Printf("Warning: LLM judge disabled: %v", err)
		} else {
			if closer, ok := client.(io.Closer); ok {
				e.closers = append(e.closers, closer)
			}
			opts = append(opts, service.ComplianceWithJudge(service.NewLLMJudge(client, cfg.Judge)))
		}
	}

	e.service = service.NewComplianceService(opts...)
	return e, nil
}
