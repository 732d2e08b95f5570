// Package media stores uploaded images (covers, banners) in an
// S3-compatible object store via MinIO.
package media

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"curator/api/internal/util"
)

// MaxUploadSize caps a single media upload at 8 MiB.
const MaxUploadSize = 8 << 20

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ErrUnsupportedType is returned for content types outside the image allowlist.
var ErrUnsupportedType = fmt.Errorf("media: unsupported content type")

// Store uploads media objects to a bucket and hands back public URLs.
type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewStore connects to the object store and ensures the bucket exists.
// An empty endpoint disables media uploads; callers get a nil Store.
func NewStore(ctx context.Context, endpoint, accessKey, secretKey, bucket, publicURL string, useSSL bool) (*Store, error) {
	if endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("media: connect %s: %w", endpoint, err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("media: check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("media: create bucket %s: %w", bucket, err)
		}
		log.Printf("media: created bucket %s", bucket)
	}

	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket)
	}

	return &Store{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Upload streams an object into the bucket under a generated key and
// returns its public URL. The kind (cover, banner) becomes the key prefix.
func (s *Store) Upload(ctx context.Context, kind, contentType string, r io.Reader, size int64) (string, error) {
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}
	if size > MaxUploadSize {
		return "", fmt.Errorf("media: object exceeds %d bytes", MaxUploadSize)
	}

	key := path.Join(kind, util.NewID("img")+ext)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("media: put %s: %w", key, err)
	}

	return s.publicURL + "/" + key, nil
}

// Remove deletes an object by key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("media: remove %s: %w", key, err)
	}
	return nil
}
