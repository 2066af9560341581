package corpus

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"offerguard-backend/storage"

	"golang.org/x/crypto/blake2b"
)

// CacheStore persists computed embeddings so reloads only embed new text
type CacheStore interface {
	LoadCache(ctx context.Context) (map[string][]float64, error)
	SaveCache(ctx context.Context, cache map[string][]float64) error
}

type cacheFile struct {
	Vectors map[string][]float64 `json:"vectors"`
}

// CacheKey identifies an embedding by model and input text
func CacheKey(model, text string) string {
	sum := blake2b.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// StorageCache keeps the embedding cache as a JSON object in blob storage
type StorageCache struct {
	store storage.Storage
	key   string
}

// NewStorageCache creates a cache stored at key
func NewStorageCache(store storage.Storage, key string) *StorageCache {
	return &StorageCache{store: store, key: key}
}

// LoadCache implements CacheStore
func (c *StorageCache) LoadCache(ctx context.Context) (map[string][]float64, error) {
	return loadCache(ctx, c.store, c.key)
}

// SaveCache implements CacheStore
func (c *StorageCache) SaveCache(ctx context.Context, cache map[string][]float64) error {
	return saveCache(ctx, c.store, c.key, cache)
}

func loadCache(ctx context.Context, store storage.Storage, key string) (map[string][]float64, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return map[string][]float64{}, nil
		}
		return nil, err
	}
	defer rc.Close()

	var file cacheFile
	if err := json.NewDecoder(rc).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode embedding cache: %w", err)
	}
	if file.Vectors == nil {
		file.Vectors = map[string][]float64{}
	}
	return file.Vectors, nil
}

func saveCache(ctx context.Context, store storage.Storage, key string, cache map[string][]float64) error {
	data, err := json.Marshal(cacheFile{Vectors: cache})
	if err != nil {
		return fmt.Errorf("failed to encode embedding cache: %w", err)
	}
	return store.Put(ctx, key, bytes.NewReader(data))
}
