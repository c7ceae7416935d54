// Package minio stores image bytes in a MinIO bucket through minio-go.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

// Config options for the MinIO backend
type Config struct {
	Endpoint  string // host:port of the MinIO server
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	PublicURL string // Optional base for object URLs; defaults to the endpoint
}

// Backend is a MinIO implementation of the simplenotes.BlobStore interface
type Backend struct {
	client *minio.Client
	bucket string
	config Config
}

// New creates a MinIO client. No request is made until Initialize.
func New(config Config) (*Backend, error) {
	if config.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Backend{client: client, bucket: config.Bucket, config: config}, nil
}

// Initialize creates the bucket when it is missing
func (b *Backend) Initialize(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	err = b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: b.config.Region})
	if err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (b *Backend) Put(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to minio: %w", err)
	}
	return nil
}

// Get stats the object before handing out the reader, since GetObject is
// lazy and would otherwise report a missing key on first Read.
func (b *Backend) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	object, err := b.client.GetObject(ctx, b.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, b.mapError(err, "failed to download from minio")
	}

	if _, err := object.Stat(); err != nil {
		object.Close()
		return nil, b.mapError(err, "failed to download from minio")
	}
	return object, nil
}

// Delete removes the object. MinIO reports success for missing keys.
func (b *Backend) Delete(ctx context.Context, objectName string) error {
	err := b.client.RemoveObject(ctx, b.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("failed to delete from minio: %w", err)
	}
	return nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]simplenotes.ObjectInfo, error) {
	infos := make([]simplenotes.ObjectInfo, 0)
	for object := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list minio objects: %w", object.Err)
		}
		infos = append(infos, simplenotes.ObjectInfo{
			Name:        object.Key,
			Size:        object.Size,
			ContentType: object.ContentType,
			UpdatedAt:   object.LastModified.UTC(),
		})
	}
	return infos, nil
}

// ObjectURL returns the path-style URL of the object
func (b *Backend) ObjectURL(ctx context.Context, objectName string) (string, error) {
	base := b.config.PublicURL
	if base == "" {
		scheme := "http"
		if b.config.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + b.config.Endpoint
	}

	parts := strings.Split(objectName, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), b.bucket, strings.Join(parts, "/")), nil
}

func (b *Backend) mapError(err error, msg string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return simplenotes.ErrObjectNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
