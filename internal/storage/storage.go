// Package storage selects the blob backend that receives run output.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/JakeFAU/realtime-news-scraper/internal/config"
	"github.com/JakeFAU/realtime-news-scraper/internal/storage/gcs"
	"github.com/JakeFAU/realtime-news-scraper/internal/storage/local"
	"github.com/JakeFAU/realtime-news-scraper/internal/storage/memory"
)

// BlobStore persists one object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Open builds the backend named by cfg.Backend. The returned close func is
// never nil.
func Open(ctx context.Context, cfg config.StorageConfig) (BlobStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.StorageMemory:
		return memory.NewBlobStore(), noop, nil
	case config.StorageLocal:
		store, err := local.New(local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, noop, fmt.Errorf("open local storage: %w", err)
		}
		return store, noop, nil
	case config.StorageGCS:
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, noop, fmt.Errorf("open gcs storage: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
