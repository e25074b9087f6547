package service

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rrealai/invoice/config"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// ArchiveService keeps a copy of each invoice image in a MinIO bucket so the
// filed task can link to it.
type ArchiveService struct {
	client *minio.Client
	bucket string
	config *config.ArchiveConfig
	now    func() time.Time
}

func NewArchiveService(cfg *config.ArchiveConfig) (*ArchiveService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ArchiveService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
		now:    time.Now,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *ArchiveService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.config.Region})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// ObjectName places an image under <location-tag>/<yyyy>/<mm>/<uuid><ext>.
func (s *ArchiveService) ObjectName(location, contentType string) string {
	ext, ok := imageExtensions[contentType]
	if !ok {
		ext = ".img"
	}
	day := s.now().UTC()
	return path.Join(LocationTag(location), day.Format("2006"), day.Format("01"), uuid.New().String()+ext)
}

// Store uploads the image and returns a presigned URL valid for the
// configured number of days.
func (s *ArchiveService) Store(ctx context.Context, location string, image []byte, contentType string) (string, error) {
	objectName := s.ObjectName(location, contentType)

	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(image), int64(len(image)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload invoice image: %w", err)
	}

	return s.PresignedURL(ctx, objectName)
}

// PresignedURL signs a GET for objectName. Signing happens locally.
func (s *ArchiveService) PresignedURL(ctx context.Context, objectName string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}
