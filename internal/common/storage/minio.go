package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"merchant-onboarding/internal/common/config"
	"merchant-onboarding/internal/common/logger"
)

// MinIOStore keeps contracts in a single bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
	logger logger.Logger
}

// NewMinIOStore connects to MinIO and creates the bucket if missing.
func NewMinIOStore(ctx context.Context, cfg config.MinIOConfig, log logger.Logger) (*MinIOStore, error) {
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	store := &MinIOStore{
		client: client,
		bucket: cfg.Bucket,
		logger: log.WithFields(map[string]interface{}{"component": "contract-store", "bucket": cfg.Bucket}),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *MinIOStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("error creating bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("created contract bucket", nil)
	return nil
}

func (s *MinIOStore) Put(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload %s to bucket %s: %w", name, s.bucket, err)
	}
	return nil
}

func (s *MinIOStore) Get(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	info, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, 0, ErrObjectNotFound
		}
		return nil, 0, fmt.Errorf("failed to stat %s: %w", name, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get %s: %w", name, err)
	}
	return obj, info.Size, nil
}

func (s *MinIOStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	return true, nil
}

func (s *MinIOStore) Mode() string { return "minio" }

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
