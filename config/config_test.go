package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Port)
	}
	if cfg.Retrieval.MinSimilarity != 0.10 || cfg.Retrieval.SemanticWeight != 0.7 || cfg.Retrieval.TopK != 8 {
		t.Errorf("unexpected retrieval defaults %+v", cfg.Retrieval)
	}
	if cfg.Analysis.MinConfidence != 0.70 || cfg.Analysis.BoostFactor != 1.2 {
		t.Errorf("unexpected analysis defaults %+v", cfg.Analysis)
	}
	if cfg.Judge.Timeout != 20*time.Second || cfg.Judge.RetryTimeout != 10*time.Second {
		t.Errorf("unexpected judge timeouts %+v", cfg.Judge)
	}
	if cfg.Corpus.Source != "seed" || cfg.Storage.Type != "local" {
		t.Errorf("unexpected backends %+v %+v", cfg.Corpus, cfg.Storage)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("JUDGE_TIMEOUT", "30s")
	t.Setenv("RETRIEVAL_MIN_SIMILARITY", "0.2")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("JUDGE_TRANSPORT", "rest")
	t.Setenv("AWS_S3_BUCKET", "statutes")
	t.Setenv("PORT", "9090")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Judge.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.Judge.Timeout)
	}
	if cfg.Retrieval.MinSimilarity != 0.2 {
		t.Errorf("expected min similarity 0.2, got %v", cfg.Retrieval.MinSimilarity)
	}
	if cfg.LLM.APIKey != "secret" || cfg.LLM.Transport != "rest" {
		t.Errorf("unexpected llm config %+v", cfg.LLM)
	}
	if cfg.Storage.S3Bucket != "statutes" {
		t.Errorf("expected bucket from AWS_S3_BUCKET, got %q", cfg.Storage.S3Bucket)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if !cfg.JudgeEnabled() || !cfg.UseGeminiEmbeddings() {
		t.Error("expected judge and gemini embeddings to be enabled with an API key")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offerguard.yaml")
	content := `
corpus:
  source: file
  key: corpus/statutes.json
analysis:
  min_confidence: 0.8
retrieval:
  top_k: 5
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Corpus.Source != "file" || cfg.Corpus.Key != "corpus/statutes.json" {
		t.Errorf("unexpected corpus config %+v", cfg.Corpus)
	}
	if cfg.Analysis.MinConfidence != 0.8 || cfg.Retrieval.TopK != 5 {
		t.Errorf("file values not applied: %+v %+v", cfg.Analysis, cfg.Retrieval)
	}
	if cfg.Retrieval.SemanticWeight != 0.7 {
		t.Errorf("defaults should fill unset keys, got %v", cfg.Retrieval.SemanticWeight)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"RETRIEVAL_SEMANTIC_WEIGHT": "1.5",
		"ANALYSIS_MIN_CONFIDENCE":   "-0.1",
		"ANALYSIS_BOOST_FACTOR":     "0.5",
		"CORPUS_SOURCE":             "ftp",
		"LLM_TRANSPORT":             "carrier-pigeon",
		"JUDGE_RETRY_TIMEOUT":       "1m",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := LoadFile(""); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestUseGeminiEmbeddings(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{Provider: "auto"}}
	if cfg.UseGeminiEmbeddings() {
		t.Error("auto without an API key should use the local embedder")
	}
	cfg.Embedding.Provider = "hash"
	cfg.LLM.APIKey = "k"
	if cfg.UseGeminiEmbeddings() {
		t.Error("hash provider should never use Gemini")
	}
}
