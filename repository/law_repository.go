package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"offerguard-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EmbeddingDimensions is the width of the law_records.embedding column
const EmbeddingDimensions = 768

// LawRepository handles database operations for law records. It also serves
// as a corpus source.
type LawRepository struct {
	db *pgxpool.Pool
}

// NewLawRepository creates a new law repository
func NewLawRepository(db *pgxpool.Pool) *LawRepository {
	return &LawRepository{db: db}
}

// formatVector formats an embedding vector as a pgvector literal
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, 0, len(embedding))
	for _, v := range embedding {
		parts = append(parts, strconv.FormatFloat(v, 'f', 6, 64))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseVector parses a pgvector text literal
func parseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("malformed vector literal %q", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, nil
	}
	fields := strings.Split(body, ",")
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed vector element %q: %w", f, err)
		}
		out[i] = v
	}
	return out, nil
}

// nullableVector returns nil for an empty embedding so the column stays NULL
func nullableVector(embedding []float64) *string {
	if len(embedding) == 0 {
		return nil
	}
	s := formatVector(embedding)
	return &s
}

const upsertLawQuery = `
	INSERT INTO law_records (
		id, jurisdiction, topic, summary, citation, full_text,
		effective_date, source_url, keywords, embedding
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector)
	ON CONFLICT (id) DO UPDATE SET
		summary = EXCLUDED.summary,
		full_text = EXCLUDED.full_text,
		effective_date = EXCLUDED.effective_date,
		source_url = EXCLUDED.source_url,
		keywords = EXCLUDED.keywords,
		embedding = COALESCE(EXCLUDED.embedding, law_records.embedding),
		updated_at = NOW()`

func upsertArgs(rec *models.LawRecord) []interface{} {
	keywords := rec.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return []interface{}{
		rec.ID,
		rec.Jurisdiction,
		rec.Topic,
		rec.Summary,
		rec.Citation,
		rec.FullText,
		rec.EffectiveDate,
		rec.SourceURL,
		keywords,
		nullableVector(rec.Embedding),
	}
}

func checkDimensions(rec *models.LawRecord) error {
	if len(rec.Embedding) != 0 && len(rec.Embedding) != EmbeddingDimensions {
		return fmt.Errorf("embedding for %s must be %d dimensions, got %d", rec.Citation, EmbeddingDimensions, len(rec.Embedding))
	}
	return nil
}

// UpsertBatch upserts many records in one round trip
func (r *LawRepository) UpsertBatch(ctx context.Context, recs []models.LawRecord) error {
	batch := &pgx.Batch{}
	for i := range recs {
		if err := checkDimensions(&recs[i]); err != nil {
			return err
		}
		batch.Queue(upsertLawQuery, upsertArgs(&recs[i])...)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range recs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert law record %s: %w", recs[i].Citation, err)
		}
	}
	return nil
}

// LoadAll returns every law record; it implements corpus.Source
func (r *LawRepository) LoadAll(ctx context.Context) ([]models.LawRecord, error) {
	query := `
		SELECT id, jurisdiction, topic, summary, citation, full_text,
			effective_date, source_url, keywords, embedding::text
		FROM law_records
		ORDER BY jurisdiction, topic, citation`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query law records: %w", err)
	}
	defer rows.Close()

	var records []models.LawRecord
	for rows.Next() {
		var rec models.LawRecord
		var embedding *string
		err := rows.Scan(
			&rec.ID,
			&rec.Jurisdiction,
			&rec.Topic,
			&rec.Summary,
			&rec.Citation,
			&rec.FullText,
			&rec.EffectiveDate,
			&rec.SourceURL,
			&rec.Keywords,
			&embedding,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan law record: %w", err)
		}
		if embedding != nil {
			if rec.Embedding, err = parseVector(*embedding); err != nil {
				return nil, fmt.Errorf("law record %s: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating law records: %w", err)
	}

	return records, nil
}

// SearchByEmbedding performs a pgvector cosine search within a jurisdiction
func (r *LawRepository) SearchByEmbedding(
	ctx context.Context,
	jurisdiction string,
	embedding []float64,
	limit int,
) ([]models.RetrievalResult, error) {
	if len(embedding) != EmbeddingDimensions {
		return nil, fmt.Errorf("embedding must be %d dimensions, got %d", EmbeddingDimensions, len(embedding))
	}

	query := `
		SELECT
			id, jurisdiction, topic, summary, citation, full_text,
			effective_date, source_url, keywords,
			1 - (embedding <=> $1::vector) AS similarity
		FROM law_records
		WHERE
			jurisdiction = $2
			AND embedding IS NOT NULL
		ORDER BY
			embedding <=> $1::vector,
			citation
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, formatVector(embedding), models.NormalizeJurisdiction(jurisdiction), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search law records: %w", err)
	}
	defer rows.Close()

	var results []models.RetrievalResult
	for rows.Next() {
		rec := &models.LawRecord{}
		var similarity float64
		err := rows.Scan(
			&rec.ID,
			&rec.Jurisdiction,
			&rec.Topic,
			&rec.Summary,
			&rec.Citation,
			&rec.FullText,
			&rec.EffectiveDate,
			&rec.SourceURL,
			&rec.Keywords,
			&similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan law record: %w", err)
		}
		results = append(results, models.RetrievalResult{Law: rec, Similarity: similarity, Semantic: similarity})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating law records: %w", err)
	}

	return results, nil
}

// CountByJurisdiction returns the number of records per jurisdiction
func (r *LawRepository) CountByJurisdiction(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `SELECT jurisdiction, COUNT(*) FROM law_records GROUP BY jurisdiction`)
	if err != nil {
		return nil, fmt.Errorf("failed to count law records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[code] = n
	}
	return counts, rows.Err()
}
