// Package storage provides the object-store capability used for raw uploaded
// files: store a blob, retrieve a blob, and produce a time-limited download
// URL. The production implementation targets MinIO (or any S3-compatible
// endpoint).
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/supportdesk/go-kb-backend/internal/config"
)

// ObjectStore is the abstract object-storage capability consumed by the
// document service and the ingestion pipeline.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ObjectStore interface {
	// Put stores data under key with the given content type.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get retrieves the blob stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// PresignedURL returns a time-limited download URL for key.
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// MinIOStore implements ObjectStore over a MinIO/S3 bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore connects to the configured endpoint and ensures the bucket
// exists, creating it when absent.
func NewMinIOStore(ctx context.Context, cfg config.StorageConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &MinIOStore{client: client, bucket: cfg.Bucket}, nil
}

// Put stores data under key.
func (s *MinIOStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Get retrieves the blob stored under key.
func (s *MinIOStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return data, nil
}

// PresignedURL returns a time-limited GET URL for key.
func (s *MinIOStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %q: %w", key, err)
	}
	return u.String(), nil
}

var _ ObjectStore = (*MinIOStore)(nil)
