package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"traitor/internal/config"
)

// GCSBackend reads objects from a Google Cloud Storage (Firebase) bucket.
type GCSBackend struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
}

// NewGCSBackend authenticates with the service-account JSON and binds the bucket.
func NewGCSBackend(ctx context.Context, bucket string, credentialsJSON []byte) (*GCSBackend, error) {
	client, err := gcs.NewClient(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSBackend{client: client, bucket: client.Bucket(bucket)}, nil
}

func (b *GCSBackend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	r, err := b.bucket.Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	return r, nil
}

// Close releases the storage client.
func (b *GCSBackend) Close() error {
	return b.client.Close()
}

// LocalBackend serves objects from a directory laid out like the bucket.
type LocalBackend struct {
	root *os.Root
}

// NewLocalBackend opens dir as the storage root. Paths cannot leave it.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open local storage %s: %w", dir, err)
	}
	return &LocalBackend{root: root}, nil
}

func (b *LocalBackend) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := b.root.Open(filepath.FromSlash(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

// Close releases the root directory handle.
func (b *LocalBackend) Close() error {
	return b.root.Close()
}

// Open builds the backend selected by storage.provider. The returned close
// function releases it.
func Open(ctx context.Context, cfg *config.Config) (Backend, func() error, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		creds, err := cfg.StorageCredentials()
		if err != nil {
			return nil, nil, err
		}
		backend, err := NewGCSBackend(ctx, cfg.Storage.Bucket, creds)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("storage: using bucket %s", cfg.Storage.Bucket)
		return backend, backend.Close, nil
	case "local":
		backend, err := NewLocalBackend(cfg.LocalDir())
		if err != nil {
			return nil, nil, err
		}
		log.Printf("storage: using local directory %s", cfg.LocalDir())
		return backend, backend.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage provider: %s", cfg.Storage.Provider)
	}
}
