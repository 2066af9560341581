package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned when a key does not exist
var ErrNotFound = errors.New("object not found")

// Storage interface for corpus blob operations
type Storage interface {
	// Put stores data under key, replacing any previous object
	Put(ctx context.Context, key string, data io.Reader) error

	// Get retrieves an object by key
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object by key
	Delete(ctx context.Context, key string) error
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type         StorageType `mapstructure:"type"`
	LocalPath    string      `mapstructure:"local_path"` // For local storage
	S3Bucket     string      `mapstructure:"s3_bucket"`  // For S3 storage
	S3Region     string      `mapstructure:"s3_region"`  // For S3 storage
	S3Prefix     string      `mapstructure:"s3_prefix"`
	AWSAccessKey string      `mapstructure:"aws_access_key"`
	AWSSecretKey string      `mapstructure:"aws_secret_key"`
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal, "":
		localPath := cfg.LocalPath
		if localPath == "" {
			localPath = "./data/corpus" // Default local storage path
		}
		return NewLocalStorage(localPath)
	case StorageTypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("s3 bucket is required for S3 storage")
		}
		if cfg.S3Region == "" {
			cfg.S3Region = "us-east-1" // Default region
		}
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// cleanKey rejects keys that would escape the storage root
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", errors.New("storage key is required")
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	return cleaned, nil
}
