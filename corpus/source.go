package corpus

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"offerguard-backend/models"
	"offerguard-backend/storage"
)

//go:embed seed/statutes.json
var seedStatutes []byte

// DecodeIngestion reads a JSON array in the statute ingestion format.
// Invalid entries are logged and skipped.
func DecodeIngestion(r io.Reader) ([]models.LawRecord, error) {
	var raw []models.IngestionRecord
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode ingestion records: %w", err)
	}

	records := make([]models.LawRecord, 0, len(raw))
	for i, entry := range raw {
		rec, err := entry.ToLawRecord()
		if err != nil {
			log.Printf("Warning: skipping ingestion record %d: %v", i, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// SeedSource serves the statute set compiled into the binary
type SeedSource struct{}

// LoadAll decodes the embedded seed corpus
func (SeedSource) LoadAll(ctx context.Context) ([]models.LawRecord, error) {
	return DecodeIngestion(bytes.NewReader(seedStatutes))
}

// SeedIngestion returns the raw embedded seed file
func SeedIngestion() []byte {
	return append([]byte(nil), seedStatutes...)
}

// StaticSource serves a fixed set of records
type StaticSource []models.LawRecord

// LoadAll returns a copy of the records
func (s StaticSource) LoadAll(ctx context.Context) ([]models.LawRecord, error) {
	return append([]models.LawRecord(nil), s...), nil
}

// FileSource reads an ingestion file from blob storage and keeps its
// embedding cache next to it
type FileSource struct {
	store storage.Storage
	key   string
}

// NewFileSource creates a source for the ingestion file at key
func NewFileSource(store storage.Storage, key string) *FileSource {
	return &FileSource{store: store, key: key}
}

// LoadAll reads and decodes the ingestion file
func (s *FileSource) LoadAll(ctx context.Context) ([]models.LawRecord, error) {
	rc, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return DecodeIngestion(rc)
}

// CacheKey returns the storage key of the embedding cache
func (s *FileSource) CacheKey() string {
	return s.key + ".embeddings.json"
}

// LoadCache implements CacheStore
func (s *FileSource) LoadCache(ctx context.Context) (map[string][]float64, error) {
	return loadCache(ctx, s.store, s.CacheKey())
}

// SaveCache implements CacheStore
func (s *FileSource) SaveCache(ctx context.Context, cache map[string][]float64) error {
	return saveCache(ctx, s.store, s.CacheKey(), cache)
}
