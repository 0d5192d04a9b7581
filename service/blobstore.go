package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/config"
)

// BlobStore holds the original uploaded PDFs. Keys are opaque paths like
// documents/{documentID}.pdf. Implementations that cannot presign return an
// empty URL from PresignedURL.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Fetch(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string) (string, error)
}

// MinioStore is the object-storage BlobStore.
type MinioStore struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewMinioStore(cfg *config.MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return TransientErr("blobstore", fmt.Errorf("failed to upload object: %w", err))
	}

	return nil
}

func (s *MinioStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, TransientErr("blobstore", fmt.Errorf("failed to get object: %w", err))
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, NotFoundErr("object not found")
		}
		return nil, TransientErr("blobstore", fmt.Errorf("failed to read object: %w", err))
	}

	return data, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return TransientErr("blobstore", fmt.Errorf("failed to delete object: %w", err))
	}

	return nil
}

// PresignedURL generates a download URL that expires after the configured
// number of days.
func (s *MinioStore) PresignedURL(ctx context.Context, key string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", TransientErr("blobstore", fmt.Errorf("failed to generate presigned URL: %w", err))
	}

	return url.String(), nil
}

// PublicURL returns a public URL for the object (if bucket policy allows)
func (s *MinioStore) PublicURL(key string) string {
	protocol := "http"
	if s.config.UseSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, s.config.Endpoint, s.bucket, key)
}

// MemoryBlobStore keeps uploads in memory for the single-process mode.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	s.objects[key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryBlobStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, NotFoundErr("object not found")
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryBlobStore) PresignedURL(ctx context.Context, key string) (string, error) {
	return "", nil
}
