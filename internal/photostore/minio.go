package photostore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds connection settings for an S3-compatible bucket.
type MinIOConfig struct {
	Endpoint string
	User     string
	Password string
	Bucket   string
	UseSSL   bool
}

// MinIO stores photos in a MinIO (or any S3-compatible) bucket.
type MinIO struct {
	client   *minio.Client
	bucket   string
	endpoint string
}

// NewMinIO connects and makes sure the bucket exists.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.User, cfg.Password, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return &MinIO{client: client, bucket: cfg.Bucket, endpoint: fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)}, nil
}

// Put uploads data and returns its public URL.
func (m *MinIO) Put(ctx context.Context, folder string, data []byte, contentType string) (string, error) {
	contentType, ext, err := Check(data, contentType)
	if err != nil {
		return "", err
	}
	name := objectName(folder, ext)
	_, err = m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", m.endpoint, m.bucket, name), nil
}
