package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotFound is returned by a RecordStore when no record exists under a key
var ErrNotFound = errors.New("record not found")

// RecordStore is the local durable record store. Records are opaque byte
// blobs addressed by string keys.
type RecordStore interface {
	// Get returns the record stored under key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data under key, replacing any previous record
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes the record under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the backend
	Close() error
}

// SerializationError reports a stored record that could not be parsed
type SerializationError struct {
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error: %s: %v", e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal  StorageType = "local"
	StorageTypeSQLite StorageType = "sqlite"
	StorageTypeRedis  StorageType = "redis"
	StorageTypeS3     StorageType = "s3"
	StorageTypeMinio  StorageType = "minio"
	StorageTypeMemory StorageType = "memory"
)

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type          StorageType `yaml:"type"`
	LocalPath     string      `yaml:"local_path"`     // For local storage
	SQLitePath    string      `yaml:"sqlite_path"`    // For sqlite storage
	RedisURL      string      `yaml:"redis_url"`      // For redis storage
	KeyPrefix     string      `yaml:"key_prefix"`     // For redis and S3 storage
	S3Bucket      string      `yaml:"s3_bucket"`      // For S3 storage
	S3Region      string      `yaml:"s3_region"`      // For S3 storage
	MinioEndpoint string      `yaml:"minio_endpoint"` // For minio storage, shares S3Bucket and credentials
	MinioSecure   bool        `yaml:"minio_secure"`
	AWSAccessKey  string      `yaml:"-"`
	AWSSecretKey  string      `yaml:"-"`
}

// NewStorage creates a new record store based on configuration
func NewStorage(cfg StorageConfig) (RecordStore, error) {
	var (
		store RecordStore
		err   error
	)

	switch cfg.Type {
	case StorageTypeLocal:
		store, err = asRecordStore(NewLocalStorage(cfg.LocalPath))
	case StorageTypeSQLite:
		store, err = asRecordStore(NewSQLiteStorage(cfg.SQLitePath))
	case StorageTypeRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("redis url is required for redis storage")
		}
		store, err = asRecordStore(NewRedisStorage(cfg.RedisURL, cfg.KeyPrefix))
	case StorageTypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("s3 bucket is required for S3 storage")
		}
		store, err = asRecordStore(NewS3Storage(cfg))
	case StorageTypeMinio:
		if cfg.MinioEndpoint == "" || cfg.S3Bucket == "" {
			return nil, errors.New("minio endpoint and bucket are required for minio storage")
		}
		store, err = asRecordStore(NewMinioStorage(cfg))
	case StorageTypeMemory:
		store = NewMemoryStorage()
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}

	if err != nil {
		return nil, err
	}
	return store, nil
}

// asRecordStore drops typed nil pointers so failed constructors yield a nil interface
func asRecordStore[T RecordStore](store T, err error) (RecordStore, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}

// escapeKey maps a record key one-to-one onto a string usable as a file
// name or object key. Distinct keys never share a name.
func escapeKey(key string) string {
	return strings.ReplaceAll(url.PathEscape(key), ":", "%3A")
}
