package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/floresloli/pedidos-factura-service/internal/models"
)

// PresignTTL is how long download links stay valid
const PresignTTL = 24 * time.Hour

// MinioStore keeps documents in a MinIO/S3 bucket under an optional prefix
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStore connects and makes sure the bucket exists
func NewMinioStore(ctx context.Context, cfg models.MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("bucket %s does not exist and could not be created: %w", cfg.Bucket, err)
		}
	}

	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *MinioStore) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Save uploads the document
func (s *MinioStore) Save(ctx context.Context, name string, r io.Reader, size int64) error {
	name, err := CleanName(name)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, s.bucket, s.objectName(name), r, size, minio.PutObjectOptions{
		ContentType: ContentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return nil
}

// List returns the stored PDFs, newest first
func (s *MinioStore) List(ctx context.Context) ([]models.StoredFile, error) {
	opts := minio.ListObjectsOptions{Recursive: true}
	if s.prefix != "" {
		opts.Prefix = s.prefix + "/"
	}

	files := []models.StoredFile{}
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list invoices: %w", obj.Err)
		}
		name := path.Base(obj.Key)
		if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
			continue
		}
		files = append(files, models.StoredFile{
			Name:      name,
			Size:      obj.Size,
			CreatedAt: obj.LastModified,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].Name > files[j].Name
		}
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

// Open streams the document
func (s *MinioStore) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	name, err := CleanName(name)
	if err != nil {
		return nil, 0, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, s.mapError(name, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, 0, s.mapError(name, err)
	}
	return obj, info.Size, nil
}

// Delete removes the document
func (s *MinioStore) Delete(ctx context.Context, name string) error {
	name, err := CleanName(name)
	if err != nil {
		return err
	}

	// RemoveObject succeeds on missing keys
	if _, err := s.client.StatObject(ctx, s.bucket, s.objectName(name), minio.StatObjectOptions{}); err != nil {
		return s.mapError(name, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, s.objectName(name), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// URL generates a presigned download link
func (s *MinioStore) URL(ctx context.Context, name string) (string, error) {
	name, err := CleanName(name)
	if err != nil {
		return "", err
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, s.objectName(name), PresignTTL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u.String(), nil
}

func (s *MinioStore) mapError(name string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return notFound(name)
	}
	return fmt.Errorf("failed to read %s: %w", name, err)
}
