package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"offerguard-backend/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

const lawRecordsSQL = `
CREATE TABLE IF NOT EXISTS law_records (
    id UUID PRIMARY KEY,

    -- Statute identification
    jurisdiction VARCHAR(8) NOT NULL,
    topic VARCHAR(64) NOT NULL,
    citation TEXT NOT NULL,

    -- Content
    summary TEXT NOT NULL,
    full_text TEXT NOT NULL DEFAULT '',
    effective_date TEXT NOT NULL DEFAULT '',
    source_url TEXT NOT NULL DEFAULT '',
    keywords TEXT[] NOT NULL DEFAULT '{}',

    -- Document embedding of summary + full text
    embedding vector(768),

    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW(),

    CONSTRAINT law_record_unique UNIQUE (jurisdiction, topic, citation)
);`

const analysisRunsSQL = `
CREATE TABLE IF NOT EXISTS analysis_runs (
    id UUID PRIMARY KEY,
    jurisdiction VARCHAR(8) NOT NULL,

    -- The document itself is never stored
    document_hash CHAR(64) NOT NULL,
    document_chars INTEGER NOT NULL,

    layers_used TEXT[] NOT NULL DEFAULT '{}',
    violations JSONB NOT NULL DEFAULT '[]'::jsonb,
    is_compliant BOOLEAN NOT NULL,
    overall_risk VARCHAR(16) NOT NULL CHECK (overall_risk IN ('LOW', 'MEDIUM', 'HIGH')),
    confidence_avg DOUBLE PRECISION NOT NULL DEFAULT 0,
    duration_ms BIGINT NOT NULL DEFAULT 0,

    created_at TIMESTAMPTZ DEFAULT NOW()
);`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Enable pgvector extension
	_, err = pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		log.Printf("Warning: Failed to create pgvector extension: %v", err)
		log.Println("This may be normal if extension is already installed or requires superuser privileges")
	} else {
		log.Println("✓ pgvector extension enabled")
	}

	// Drop tables only when explicitly asked (development)
	if os.Getenv("RESET_SCHEMA") == "true" {
		for _, table := range []string{"analysis_runs", "law_records"} {
			if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
				log.Fatalf("Failed to drop table %s: %v", table, err)
			}
			log.Printf("✓ Dropped existing %s table (if any)", table)
		}
	}

	tables := []struct {
		name string
		sql  string
	}{
		{name: "law_records", sql: lawRecordsSQL},
		{name: "analysis_runs", sql: analysisRunsSQL},
	}
	for _, table := range tables {
		if _, err := pool.Exec(ctx, table.sql); err != nil {
			log.Fatalf("Failed to create %s table: %v", table.name, err)
		}
		log.Printf("✓ Created %s table", table.name)
	}

	// Create indexes
	indexes := []struct {
		name string
		sql  string
	}{
		{
			name: "Vector similarity search (HNSW)",
			sql: `CREATE INDEX IF NOT EXISTS idx_law_embedding_hnsw ON law_records
USING hnsw (embedding vector_cosine_ops)
WITH (m = 16, ef_construction = 64);`,
		},
		{
			name: "Jurisdiction filtering",
			sql:  "CREATE INDEX IF NOT EXISTS idx_law_jurisdiction ON law_records(jurisdiction);",
		},
		{
			name: "Composite: jurisdiction and topic",
			sql:  "CREATE INDEX IF NOT EXISTS idx_law_jurisdiction_topic ON law_records(jurisdiction, topic);",
		},
		{
			name: "Keyword filtering",
			sql:  "CREATE INDEX IF NOT EXISTS idx_law_keywords ON law_records USING gin (keywords);",
		},
		{
			name: "Runs by jurisdiction and time",
			sql:  "CREATE INDEX IF NOT EXISTS idx_runs_jurisdiction_created ON analysis_runs(jurisdiction, created_at DESC);",
		},
		{
			name: "Runs by document hash",
			sql:  "CREATE INDEX IF NOT EXISTS idx_runs_document_hash ON analysis_runs(document_hash);",
		},
	}

	for _, idx := range indexes {
		_, err = pool.Exec(ctx, idx.sql)
		if err != nil {
			log.Printf("Warning: Failed to create index %s: %v", idx.name, err)
		} else {
			log.Printf("✓ Created index: %s", idx.name)
		}
	}

	fmt.Println("\n✅ Database schema created successfully!")
	fmt.Println("   Tables: law_records, analysis_runs")
	fmt.Printf("   Indexes: %d indexes\n", len(indexes))
}
