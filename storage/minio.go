package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage implements RecordStore on an S3-compatible MinIO server
type MinioStorage struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStorage creates a new MinIO storage instance
func NewMinioStorage(cfg StorageConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AWSAccessKey, cfg.AWSSecretKey, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioStorage{
		client: client,
		bucket: cfg.S3Bucket,
		prefix: cfg.KeyPrefix,
	}, nil
}

func (s *MinioStorage) objectKey(key string) string {
	return s.prefix + escapeKey(key) + ".json"
}

// Get retrieves a record from MinIO
func (s *MinioStorage) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download from minio: %w", err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on first read
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read minio object: %w", err)
	}
	return data, nil
}

// Put stores a record in MinIO
func (s *MinioStorage) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(key), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to upload to minio: %w", err)
	}
	return nil
}

// Delete removes a record from MinIO
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(key), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete from minio: %w", err)
	}
	return nil
}

// Close is a no-op for MinIO storage
func (s *MinioStorage) Close() error {
	return nil
}
