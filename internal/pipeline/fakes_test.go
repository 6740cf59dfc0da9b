package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"syscall"

	"github.com/JakeFAU/realtime-news-scraper/internal/scraper"
)

type stubRenderer struct {
	links   map[string][]string
	release chan struct{}
}

func (r *stubRenderer) RenderLinks(ctx context.Context, site string) ([]string, error) {
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	links, ok := r.links[site]
	if !ok {
		return nil, errors.New("navigation failed")
	}
	return links, nil
}

type stubFetcher struct {
	pages map[string]string
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) (scraper.Page, error) {
	body, ok := f.pages[rawURL]
	if !ok {
		return scraper.Page{}, fmt.Errorf("dial %s: %w", rawURL, syscall.ECONNREFUSED)
	}
	return scraper.Page{URL: rawURL, FinalURL: rawURL, StatusCode: 200, Body: []byte(body)}, nil
}

type failingBlobStore struct{}

func (failingBlobStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket not found")
}

type recordingStore struct {
	mu      sync.Mutex
	batches []Batch
	err     error
}

func (s *recordingStore) StoreArticles(_ context.Context, batch Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *recordingStore) Batches() []Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Batch(nil), s.batches...)
}
