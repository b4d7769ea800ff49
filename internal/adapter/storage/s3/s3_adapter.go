package s3

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mototrade/trade-service/internal/app/config"
	"github.com/mototrade/trade-service/internal/platform/logger"
)

// MediaStorage holds listing photos. URLs returned from Upload are stored
// on the listing record; Remove takes those same URLs back.
type MediaStorage interface {
	Upload(ctx context.Context, originalFileName string, data []byte) (string, error)
	Remove(ctx context.Context, urls []string) error
}

type s3Storage struct {
	client *minio.Client
	bucket string
	log    logger.Logger
}

func NewMediaStorage(cfg config.MinioConfig, log logger.Logger) (MediaStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for endpoint %s: %w", cfg.Endpoint, err)
	}

	err = client.MakeBucket(context.Background(), cfg.Bucket, minio.MakeBucketOptions{})
	if err != nil {
		exists, errExists := client.BucketExists(context.Background(), cfg.Bucket)
		if errExists != nil || !exists {
			return nil, fmt.Errorf("failed to make/verify bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &s3Storage{client: client, bucket: cfg.Bucket, log: log}, nil
}

func (s *s3Storage) Upload(ctx context.Context, originalFileName string, data []byte) (string, error) {
	ext := filepath.Ext(originalFileName)
	objectKey := fmt.Sprintf("photos/%s%s", uuid.New().String(), ext)

	_, err := s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", objectKey, s.bucket, err)
	}

	url := fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucket, objectKey)
	s.log.Infof("Uploaded listing photo %s (%d bytes)", objectKey, len(data))
	return url, nil
}

func (s *s3Storage) Remove(ctx context.Context, urls []string) error {
	for _, url := range urls {
		key := s.objectKeyFromURL(url)
		if key == "" {
			s.log.Warnf("Skipping media removal for unrecognized URL %s", url)
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to remove media object %s: %w", key, err)
		}
	}
	return nil
}

// objectKeyFromURL recovers "photos/<name>" from a stored URL, mirroring
// how Upload shapes it.
func (s *s3Storage) objectKeyFromURL(url string) string {
	parts := strings.Split(url, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1]
}
