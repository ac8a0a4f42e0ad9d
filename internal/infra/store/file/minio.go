package filestore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	mio "github.com/you-humble/videovault/internal/libs/minio"

	"github.com/minio/minio-go/v7"
)

type minioStore struct {
	db     *minio.Client
	bucket string
}

func NewMinIOStore(ctx context.Context, cfg mio.Config) (*minioStore, error) {
	mioClient, err := mio.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &minioStore{
		db:     mioClient,
		bucket: cfg.Bucket,
	}, nil
}

func (s *minioStore) Save(ctx context.Context, reader io.Reader, key string, size int64) (int64, error) {
	objectName, err := s.objectName(key)
	if err != nil {
		return 0, err
	}

	putSize := size
	if putSize <= 0 {
		putSize = -1
	}

	info, err := s.db.PutObject(ctx, s.bucket, objectName, reader, putSize, minio.PutObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("put object: %w", err)
	}

	return info.Size, nil
}

func (s *minioStore) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	objectName, err := s.objectName(key)
	if err != nil {
		return nil, 0, err
	}

	obj, err := s.db.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("get object: %w", err)
	}

	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		if resp := minio.ToErrorResponse(err); resp.Code == minio.NoSuchKey {
			return nil, 0, fmt.Errorf("file not found: %w", err)
		}
		return nil, 0, fmt.Errorf("stat object: %w", err)
	}

	return obj, st.Size, nil
}

func (s *minioStore) Delete(ctx context.Context, key string) error {
	objectName, err := s.objectName(key)
	if err != nil {
		return err
	}

	if err := s.db.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// PresignedURL lets the HTTP layer answer file requests with a redirect to
// the object store instead of proxying the bytes.
func (s *minioStore) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	objectName, err := s.objectName(key)
	if err != nil {
		return "", err
	}

	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition",
		fmt.Sprintf(`attachment; filename=%q`, path.Base(objectName)))

	u, err := s.db.PresignedGetObject(ctx, s.bucket, objectName, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}

func (s *minioStore) CleanupOlderThan(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	for obj := range s.db.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("list objects: %w", obj.Err)
		}
		if obj.LastModified.Before(cutoff) {
			if err := s.db.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
				return fmt.Errorf("remove object %s: %w", obj.Key, err)
			}
		}
	}
	return nil
}

func (s *minioStore) objectName(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}

	clean := path.Clean(key)
	if strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid key: %s", key)
	}

	return strings.TrimLeft(clean, "/"), nil
}
